// Package testutil provides helpers shared by tests across packages.
package testutil

import (
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// Origin is an in-process HTTP server serving fixed bodies by path and
// counting every request it receives.
type Origin struct {
	Server *httptest.Server

	mu        sync.RWMutex
	bodies    map[string][]byte
	statuses  map[string]int
	requests  atomic.Int64
	userAgent atomic.Value
	gate      chan struct{}
}

// NewOrigin starts an Origin that is closed when the test ends.
func NewOrigin(t testing.TB) *Origin {
	t.Helper()
	o := &Origin{
		bodies:   make(map[string][]byte),
		statuses: make(map[string]int),
	}
	o.Server = httptest.NewServer(nethttp.HandlerFunc(o.serve))
	t.Cleanup(o.Server.Close)
	return o
}

// Set serves body with status 200 for GET path.
func (o *Origin) Set(path string, body []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bodies[path] = body
	delete(o.statuses, path)
}

// SetStatus serves an empty body with status code for path.
func (o *Origin) SetStatus(path string, code int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses[path] = code
}

// Gate blocks every request until Release is called.
func (o *Origin) Gate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gate = make(chan struct{})
}

// Release unblocks requests held by Gate.
func (o *Origin) Release() {
	o.mu.RLock()
	defer o.mu.RUnlock()
	close(o.gate)
}

// URL returns the absolute URL of path on the origin.
func (o *Origin) URL(path string) string {
	return o.Server.URL + path
}

// Requests returns the number of requests served so far.
func (o *Origin) Requests() int {
	return int(o.requests.Load())
}

// LastUserAgent returns the User-Agent header of the latest request.
func (o *Origin) LastUserAgent() string {
	ua, _ := o.userAgent.Load().(string)
	return ua
}

func (o *Origin) serve(w nethttp.ResponseWriter, r *nethttp.Request) {
	o.requests.Add(1)
	o.userAgent.Store(r.Header.Get("User-Agent"))
	o.mu.RLock()
	gate := o.gate
	o.mu.RUnlock()
	if gate != nil {
		<-gate
	}

	if r.Method != nethttp.MethodGet {
		w.WriteHeader(nethttp.StatusMethodNotAllowed)
		return
	}

	o.mu.RLock()
	code, hasStatus := o.statuses[r.URL.Path]
	body, ok := o.bodies[r.URL.Path]
	o.mu.RUnlock()

	switch {
	case hasStatus:
		w.WriteHeader(code)
	case !ok:
		nethttp.NotFound(w, r)
	default:
		_, _ = w.Write(body)
	}
}
