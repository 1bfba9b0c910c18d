package embedurl

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL parses raw and checks that it is an absolute http or https
// URL. It performs no I/O. A URL without "//", such as http:example.com,
// has no host and is rejected.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q: missing scheme", ErrInvalidURL, raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: %q: only http and https are supported", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidURL, raw)
	}
	return u, nil
}
