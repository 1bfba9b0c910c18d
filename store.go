package embedurl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/embedurl/cache"
	"github.com/meigma/embedurl/cache/disk"
	"github.com/meigma/embedurl/codec"
	embedhttp "github.com/meigma/embedurl/http"
	"github.com/meigma/embedurl/internal/metrics"
)

// Fetcher retrieves the body of a validated URL.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, u *url.URL) ([]byte, error)

// Fetch calls f(ctx, u).
func (f FetcherFunc) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	return f(ctx, u)
}

// Store is a content-addressed cache of remote resources.
//
// Each (namespace, URL, encoding) triple maps to exactly one entry under the
// cache root. The first request for a triple fetches the URL, encodes the
// body and persists it; every later request returns the same entry without
// touching the network. Entries never expire.
//
// A Store is safe for concurrent use. Concurrent requests for the same
// triple share one fetch.
type Store struct {
	dir      string
	cache    cache.Cache
	fetcher  Fetcher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	diskOpts []disk.Option
	group    singleflight.Group
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:    dir,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.fetcher == nil {
		s.fetcher = embedhttp.NewFetcher()
	}
	if s.cache == nil {
		c, err := disk.New(dir, s.diskOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: create cache root: %w", ErrIO, err)
		}
		s.cache = c
	}
	return s, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns where the entry for a request lives, whether or not it
// has been created yet.
func (s *Store) Path(namespace, rawURL string, enc Encoding) (string, error) {
	path, err := s.cache.Path(DeriveKey(namespace, rawURL, enc))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	return path, nil
}

// FetchOrCache returns the path of the cache entry for rawURL under
// namespace and enc, fetching and persisting it on a miss.
//
// The URL is validated before anything else, so a malformed or non-HTTP
// URL fails without network access. On any failure no entry is created.
func (s *Store) FetchOrCache(ctx context.Context, namespace, rawURL string, enc Encoding) (string, error) {
	path, err := s.fetchOrCache(ctx, namespace, rawURL, enc)
	if err != nil {
		s.metrics.Failed(errorKind(err))
		s.logger.Warn("resource unavailable",
			slog.String("url", rawURL),
			slog.String("encoding", enc.String()),
			slog.Any("error", err))
		return "", err
	}
	return path, nil
}

func (s *Store) fetchOrCache(ctx context.Context, namespace, rawURL string, enc Encoding) (string, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return "", err
	}
	if !enc.Valid() {
		return "", fmt.Errorf("%w: unsupported encoding %s", ErrIO, enc)
	}

	key := DeriveKey(namespace, rawURL, enc)
	if path, ok := s.cache.Lookup(key); ok {
		s.metrics.Hit()
		s.logger.Debug("cache hit",
			slog.String("url", u.Redacted()),
			slog.String("key", key.Encoded()))
		return path, nil
	}

	// The shared fetch outlives any single caller; each caller only stops
	// waiting when its own context is done.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key.String(), func() (any, error) {
		// Another caller may have committed the entry while we waited.
		if path, ok := s.cache.Lookup(key); ok {
			s.metrics.Hit()
			return path, nil
		}
		s.metrics.Miss()
		return s.create(shared, key, u, enc)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrNetwork, context.Cause(ctx))
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		path, _ := res.Val.(string) //nolint:errcheck // always a string when Err is nil
		return path, nil
	}
}

func (s *Store) create(ctx context.Context, key Key, u *url.URL, enc Encoding) (string, error) {
	body, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	s.metrics.Fetched(len(body))

	w, err := s.cache.Writer(key)
	if err != nil {
		return "", fmt.Errorf("%w: open cache entry: %w", ErrIO, err)
	}
	n, err := encodeTo(w, body, enc)
	if err != nil {
		_ = w.Discard()
		return "", fmt.Errorf("%w: encode %s: %w", ErrIO, enc, err)
	}
	path, err := w.Commit()
	if err != nil {
		return "", fmt.Errorf("%w: commit cache entry: %w", ErrIO, err)
	}

	s.metrics.Stored(enc.String(), n)
	s.logger.Info("cached resource",
		slog.String("url", u.Redacted()),
		slog.String("encoding", enc.String()),
		slog.Int("fetched_bytes", len(body)),
		slog.Int("stored_bytes", n),
		slog.String("path", path))
	return path, nil
}

// encodeTo writes body encoded with enc to w and returns the number of
// bytes that reached w.
func encodeTo(w io.Writer, body []byte, enc Encoding) (int, error) {
	cw := &countingWriter{w: w}
	ew, err := codec.NewWriter(cw, enc)
	if err != nil {
		return 0, err
	}
	if _, err := ew.Write(body); err != nil {
		_ = ew.Close()
		return 0, err
	}
	if err := ew.Close(); err != nil {
		return 0, err
	}
	return cw.n, nil
}

// ReadFile returns the raw bytes of the entry for a request, fetching it
// first if needed. For a compressing encoding the bytes are still encoded.
func (s *Store) ReadFile(ctx context.Context, namespace, rawURL string, enc Encoding) ([]byte, error) {
	path, err := s.FetchOrCache(ctx, namespace, rawURL, enc)
	if err != nil {
		return nil, err
	}
	data, ok := s.cache.Get(DeriveKey(namespace, rawURL, enc))
	if !ok {
		return nil, fmt.Errorf("%w: read cache entry %s", ErrIO, path)
	}
	return data, nil
}

// Load returns the decoded content of the entry for a request, fetching it
// first if needed. The result equals the body served by the origin.
func (s *Store) Load(ctx context.Context, namespace, rawURL string, enc Encoding) ([]byte, error) {
	data, err := s.ReadFile(ctx, namespace, rawURL, enc)
	if err != nil {
		return nil, err
	}
	decoded, err := codec.Decode(data, enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return decoded, nil
}

// Usage reports entry count and size for a disk-backed store.
func (s *Store) Usage() (disk.Usage, error) {
	dc, ok := s.cache.(*disk.Cache)
	if !ok {
		return disk.Usage{}, fmt.Errorf("%w: usage is only available for disk caches", ErrIO)
	}
	u, err := dc.Usage()
	if err != nil {
		return disk.Usage{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return u, nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
