package embedurl

import "errors"

// Sentinel errors. Every error returned by this module wraps exactly one
// of them, with the underlying cause kept in the chain.
var (
	// ErrInvalidURL is returned when a URL does not parse or is not absolute.
	ErrInvalidURL = errors.New("embedurl: invalid URL")

	// ErrUnsupportedScheme is returned for any scheme other than http or https.
	ErrUnsupportedScheme = errors.New("embedurl: unsupported URL scheme")

	// ErrNetwork is returned when fetching a resource fails.
	ErrNetwork = errors.New("embedurl: network error")

	// ErrIO is returned when encoding or persisting a cache entry fails.
	ErrIO = errors.New("embedurl: I/O error")

	// ErrValidation is returned when content fails a structural check.
	ErrValidation = errors.New("embedurl: validation error")

	// ErrTypeMismatch is returned when structurally valid content does not
	// match the shape expected by the call site.
	ErrTypeMismatch = errors.New("embedurl: type mismatch")
)

// errorKind names the sentinel wrapped by err, for logs and metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrUnsupportedScheme):
		return "unsupported_scheme"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	default:
		return "unknown"
	}
}
