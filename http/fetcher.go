// Package http fetches remote resources over HTTP(S) for the cache.
package http

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
)

// DefaultUserAgent identifies embedurl to origin servers.
const DefaultUserAgent = "embedurl"

// StatusError is returned when the origin answers with a non-2xx status.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Fetcher retrieves the body of a URL with a single GET request.
// Redirects, timeouts and proxies are whatever the configured client does.
type Fetcher struct {
	client    *nethttp.Client
	headers   nethttp.Header
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(f *Fetcher) {
		if headers == nil {
			return
		}
		f.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		if f.headers == nil {
			f.headers = make(nethttp.Header)
		}
		f.headers.Set(key, value)
	}
}

// WithUserAgent overrides the User-Agent header. Defaults to DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    nethttp.DefaultClient,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = nethttp.DefaultClient
	}
	return f
}

// Fetch performs one GET against u and returns the full response body.
// The caller is responsible for validating u.
func (f *Fetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := f.newRequest(ctx, u)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: u.Redacted(), Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body from %s: %w", u.Redacted(), err)
	}
	return body, nil
}

func (f *Fetcher) newRequest(ctx context.Context, u *url.URL) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, values := range f.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	// Cache the representation as stored by the origin.
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	return req, nil
}
