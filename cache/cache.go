// Package cache defines the storage contract behind the content-addressed
// store.
//
// Entries are addressed by a digest derived from the request that produced
// them, not from their content. An entry is written once and never mutated;
// a committed entry is treated as valid forever.
package cache

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// Cache stores immutable entries addressed by digest.
//
// Implementations must be safe for concurrent use, and must never expose a
// partially written entry to Lookup, Get or the returned paths.
type Cache interface {
	// Path returns the location an entry for key occupies once committed.
	// The entry need not exist.
	Path(key digest.Digest) (string, error)

	// Lookup returns the path of a committed entry for key.
	// Returns "", false if no entry exists.
	Lookup(key digest.Digest) (string, bool)

	// Get returns the content of a committed entry.
	// Returns nil, false if no entry exists.
	Get(key digest.Digest) ([]byte, bool)

	// Writer returns a Writer for streaming an entry into the cache.
	Writer(key digest.Digest) (Writer, error)
}

// Writer streams content into the cache.
//
// Content is written via Write calls. After all content is written:
//   - Call Commit to publish the entry
//   - Call Discard if an error occurred upstream
//
// Implementations buffer writes to a temporary location and only make the
// content visible after Commit.
type Writer interface {
	io.Writer

	// Commit publishes the entry and returns its path.
	Commit() (string, error)

	// Discard aborts the write and removes temporary data.
	Discard() error
}
