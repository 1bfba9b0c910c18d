// Package metrics holds the Prometheus collectors exported by the store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "embedurl"

// Metrics counts store activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	lookups      *prometheus.CounterVec
	failures     *prometheus.CounterVec
	fetchedBytes prometheus.Counter
	storedBytes  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result (hit or miss).",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed requests by error kind.",
		}, []string{"kind"}),
		fetchedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_bytes_total",
			Help:      "Bytes received from origins.",
		}),
		storedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Bytes written to the cache by encoding.",
		}, []string{"encoding"}),
	}
	for _, c := range []prometheus.Collector{m.lookups, m.failures, m.fetchedBytes, m.storedBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hit records a cache hit.
func (m *Metrics) Hit() {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues("hit").Inc()
}

// Miss records a cache miss.
func (m *Metrics) Miss() {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues("miss").Inc()
}

// Fetched records n bytes received from an origin.
func (m *Metrics) Fetched(n int) {
	if m == nil {
		return
	}
	m.fetchedBytes.Add(float64(n))
}

// Stored records n bytes persisted with the named encoding.
func (m *Metrics) Stored(encoding string, n int) {
	if m == nil {
		return
	}
	m.storedBytes.WithLabelValues(encoding).Add(float64(n))
}

// Failed records a failure of the given kind.
func (m *Metrics) Failed(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}
