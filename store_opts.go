package embedurl

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meigma/embedurl/cache"
	"github.com/meigma/embedurl/cache/disk"
	embedhttp "github.com/meigma/embedurl/http"
	"github.com/meigma/embedurl/internal/metrics"
)

// Option configures a Store.
type Option func(*Store) error

// --- Fetching Options ---

// WithFetcher replaces the HTTP fetcher used on cache misses.
func WithFetcher(f Fetcher) Option {
	return func(s *Store) error {
		if f == nil {
			return errors.New("embedurl: nil fetcher")
		}
		s.fetcher = f
		return nil
	}
}

// WithHTTPOptions configures the default HTTP fetcher, for example to set a
// custom client or extra headers. Ignored if WithFetcher is also used.
func WithHTTPOptions(opts ...embedhttp.Option) Option {
	return func(s *Store) error {
		if s.fetcher == nil {
			s.fetcher = embedhttp.NewFetcher(opts...)
		}
		return nil
	}
}

// --- Storage Options ---

// WithCache replaces the disk cache rooted at the store directory.
func WithCache(c cache.Cache) Option {
	return func(s *Store) error {
		if c == nil {
			return errors.New("embedurl: nil cache")
		}
		s.cache = c
		return nil
	}
}

// WithDirPerm sets the permissions used when creating cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(s *Store) error {
		s.diskOpts = append(s.diskOpts, disk.WithDirPerm(mode))
		return nil
	}
}

// WithFilePerm sets the permissions of cache entries.
func WithFilePerm(mode os.FileMode) Option {
	return func(s *Store) error {
		s.diskOpts = append(s.diskOpts, disk.WithFilePerm(mode))
		return nil
	}
}

// --- Observability Options ---

// WithLogger sets the logger. Defaults to discarding all output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics registers store metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Store) error {
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("embedurl: register metrics: %w", err)
		}
		s.metrics = m
		return nil
	}
}
