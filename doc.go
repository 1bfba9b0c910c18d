// Package embedurl fetches remote resources once and keeps them in a
// content-addressed cache, so code generators can embed them in a build
// without hitting the network on every run.
//
// A request is the triple (namespace, URL, encoding). The namespace names
// the consuming build unit (for go generate, usually $GOPACKAGE), so
// unrelated packages sharing a cache root never share entries. The
// encoding selects an optional compression transform applied before the
// entry is written.
//
// # Quick Start
//
//	store, err := embedurl.New("/var/cache/embedurl")
//	if err != nil {
//	    return err
//	}
//	path, err := store.FetchOrCache(ctx, "assets",
//	    "https://example.com/data.json", embedurl.EncodingNone)
//
// The first call for a triple validates the URL, fetches it, encodes the
// body and writes the entry atomically; later calls return the same path
// without network access. Entries never expire: to pick up new content,
// change the URL or the encoding, or clear the cache root.
//
// # Structured Payloads
//
// [ValidateStructured] checks that cached bytes are well-formed JSON before
// a generator attempts a typed decode. See the gen subpackage for turning a
// cache entry into Go source.
//
// # Errors
//
// Errors returned by [Store] methods and the validators wrap one of
// [ErrInvalidURL], [ErrUnsupportedScheme], [ErrNetwork], [ErrIO],
// [ErrValidation] or [ErrTypeMismatch]. Option and name parsing errors
// are plain.
package embedurl
