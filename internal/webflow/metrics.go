package webflow

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"wording-sync/internal/infra/logx"
)

// Metrics counts Data API traffic seen by the transport.
type Metrics struct {
	TotalRequests     atomic.Int64
	TotalRetries      atomic.Int64
	TotalBackoffNanos atomic.Int64

	// DOM reads are GETs, DOM writes are POSTs.
	ReadRequests  atomic.Int64
	WriteRequests atomic.Int64

	mu         sync.Mutex
	hostCounts map[string]int64
	status2xx  int64
	status4xx  int64
	status429  int64
	status5xx  int64
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics { return &Metrics{hostCounts: make(map[string]int64)} }

// IncRequest counts one logical request, retries excluded.
func (m *Metrics) IncRequest(host, method string) {
	m.TotalRequests.Add(1)
	switch strings.ToUpper(method) {
	case http.MethodGet:
		m.ReadRequests.Add(1)
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		m.WriteRequests.Add(1)
	}
	m.mu.Lock()
	m.hostCounts[host]++
	m.mu.Unlock()
}

func (m *Metrics) IncRetry() { m.TotalRetries.Add(1) }

func (m *Metrics) AddBackoff(d time.Duration) { m.TotalBackoffNanos.Add(d.Nanoseconds()) }

// IncStatus buckets a response status. 429 has its own bucket.
func (m *Metrics) IncStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case code == http.StatusTooManyRequests:
		m.status429++
	case code >= 200 && code < 300:
		m.status2xx++
	case code >= 400 && code < 500:
		m.status4xx++
	case code >= 500:
		m.status5xx++
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	TotalRequests int64
	TotalRetries  int64
	TotalBackoff  time.Duration
	ReadRequests  int64
	WriteRequests int64
	HostCounts    map[string]int64
	Status2xx     int64
	Status4xx     int64
	Status429     int64
	Status5xx     int64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	hosts := make(map[string]int64, len(m.hostCounts))
	for k, v := range m.hostCounts {
		hosts[k] = v
	}
	return MetricsSnapshot{
		TotalRequests: m.TotalRequests.Load(),
		TotalRetries:  m.TotalRetries.Load(),
		TotalBackoff:  time.Duration(m.TotalBackoffNanos.Load()),
		ReadRequests:  m.ReadRequests.Load(),
		WriteRequests: m.WriteRequests.Load(),
		HostCounts:    hosts,
		Status2xx:     m.status2xx,
		Status4xx:     m.status4xx,
		Status429:     m.status429,
		Status5xx:     m.status5xx,
	}
}

// LogFields renders the snapshot for a logx event.
func (s MetricsSnapshot) LogFields() logx.Fields {
	return logx.Fields{
		"requests":   s.TotalRequests,
		"reads":      s.ReadRequests,
		"writes":     s.WriteRequests,
		"retries":    s.TotalRetries,
		"backoff_ms": s.TotalBackoff.Milliseconds(),
		"status_2xx": s.Status2xx,
		"status_4xx": s.Status4xx,
		"status_429": s.Status429,
		"status_5xx": s.Status5xx,
	}
}
