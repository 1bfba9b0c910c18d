// Package disk provides a disk-backed cache implementation.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/embedurl/cache"
)

const (
	defaultShardPrefixLen = 0
	defaultDirPerm        = 0o755
	defaultFilePerm       = 0o644

	tempPattern = ".tmp-*"
)

// Interface compliance.
var _ cache.Cache = (*Cache)(nil)

// Cache implements cache.Cache using the local filesystem. Each entry is a
// single file named by the hex part of its digest.
type Cache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	filePerm       os.FileMode
}

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of hex characters used for sharding
// entries into subdirectories. Defaults to 0 (a flat directory).
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithFilePerm sets the permissions of committed entries.
func WithFilePerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.filePerm = mode
	}
}

// New creates a disk-backed cache rooted at dir, creating dir if absent.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	c := &Cache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
		filePerm:       defaultFilePerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the file path for key.
func (c *Cache) Path(key digest.Digest) (string, error) {
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("cache key %q: %w", key, err)
	}
	hexKey := key.Encoded()
	if c.shardPrefixLen <= 0 {
		return filepath.Join(c.dir, hexKey), nil
	}
	prefixLen := min(c.shardPrefixLen, len(hexKey))
	return filepath.Join(c.dir, hexKey[:prefixLen], hexKey), nil
}

// Lookup returns the path of the entry for key if it exists as a regular file.
func (c *Cache) Lookup(key digest.Digest) (string, bool) {
	path, err := c.Path(key)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

// Get retrieves the content stored under key.
func (c *Cache) Get(key digest.Digest) ([]byte, bool) {
	path, err := c.Path(key)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a digest, not user input
	if err != nil {
		return nil, false
	}
	return data, true
}

// Writer opens a streaming cache writer for key. If the entry already
// exists the returned writer discards its input and Commit reports the
// existing path.
func (c *Cache) Writer(key digest.Digest) (cache.Writer, error) {
	if path, ok := c.Lookup(key); ok {
		return &noopWriter{path: path}, nil
	}
	return c.newWriter(key)
}

func (c *Cache) newWriter(key digest.Digest) (*diskWriter, error) {
	path, err := c.Path(key)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return nil, err
	}
	return &diskWriter{
		file:      tmp,
		tmpPath:   tmp.Name(),
		finalPath: path,
		perm:      c.filePerm,
	}, nil
}

type diskWriter struct {
	file      *os.File
	tmpPath   string
	finalPath string
	perm      os.FileMode
}

func (w *diskWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

// Commit closes the temporary file and renames it into place. Losing a
// rename race to another writer of the same key is not an error: entries
// for a key are interchangeable.
func (w *diskWriter) Commit() (string, error) {
	if err := w.file.Chmod(w.perm); err != nil {
		w.file.Close()
		_ = os.Remove(w.tmpPath)
		return "", err
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return "", err
	}
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		if _, statErr := os.Stat(w.finalPath); statErr == nil {
			_ = os.Remove(w.tmpPath)
			return w.finalPath, nil
		}
		_ = os.Remove(w.tmpPath)
		return "", err
	}
	return w.finalPath, nil
}

func (w *diskWriter) Discard() error {
	if w.file != nil {
		_ = w.file.Close()
	}
	return os.Remove(w.tmpPath)
}

type noopWriter struct {
	path string
}

func (w *noopWriter) Write(p []byte) (int, error) { return len(p), nil }
func (w *noopWriter) Commit() (string, error)     { return w.path, nil }
func (w *noopWriter) Discard() error              { return nil }

func isTemp(name string) bool {
	return strings.HasPrefix(name, ".tmp-")
}
