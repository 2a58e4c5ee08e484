// Package health tracks per-provider success/failure counters and latency
// for ops tooling. Records accumulate for the process lifetime and are never
// reset.
package health

import (
	"sync"
	"time"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/observability"
)

// Record is a point-in-time copy of one provider's running counters.
type Record struct {
	Provider          string     `json:"provider"`
	TotalRequests     int64      `json:"totalRequests"`
	Successes         int64      `json:"successes"`
	Failures          int64      `json:"failures"`
	CumulativeLatency int64      `json:"cumulativeLatencyMs"`
	LastErrorMessage  string     `json:"lastError,omitempty"`
	LastSuccessAt     *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt     *time.Time `json:"lastFailureAt,omitempty"`
}

// AvgLatencyMs returns the mean recorded call latency in milliseconds.
func (r Record) AvgLatencyMs() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return float64(r.CumulativeLatency) / float64(r.TotalRequests)
}

// SuccessRate returns the fraction of calls that succeeded, 0–1.
func (r Record) SuccessRate() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.TotalRequests)
}

// Monitor owns the process-wide health records. Each provider has its own
// lock so unrelated providers never serialize on each other; snapshots are
// copies, so readers never block writers beyond the copy itself.
type Monitor struct {
	mu      sync.RWMutex
	records map[string]*providerRecord
	metrics *observability.Metrics
}

type providerRecord struct {
	mu sync.Mutex
	r  Record
}

// NewMonitor creates an empty monitor. metrics may be nil.
func NewMonitor(metrics *observability.Metrics) *Monitor {
	return &Monitor{
		records: make(map[string]*providerRecord),
		metrics: metrics,
	}
}

// RecordSuccess counts a successful provider call.
func (m *Monitor) RecordSuccess(provider string, latency time.Duration) {
	pr := m.record(provider)

	now := domain.Now()
	pr.mu.Lock()
	pr.r.TotalRequests++
	pr.r.Successes++
	pr.r.CumulativeLatency += latency.Milliseconds()
	pr.r.LastSuccessAt = &now
	pr.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ProviderRequests.WithLabelValues(provider, "success").Inc()
		m.metrics.ProviderLatency.WithLabelValues(provider).Observe(latency.Seconds())
	}
}

// RecordFailure counts a failed provider call with its error classification.
func (m *Monitor) RecordFailure(provider string, kind domain.ErrorKind, latency time.Duration, errMsg string) {
	pr := m.record(provider)

	now := domain.Now()
	pr.mu.Lock()
	pr.r.TotalRequests++
	pr.r.Failures++
	pr.r.CumulativeLatency += latency.Milliseconds()
	pr.r.LastErrorMessage = errMsg
	pr.r.LastFailureAt = &now
	pr.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ProviderRequests.WithLabelValues(provider, "failure").Inc()
		m.metrics.ProviderFailures.WithLabelValues(provider, string(kind)).Inc()
		m.metrics.ProviderLatency.WithLabelValues(provider).Observe(latency.Seconds())
	}
}

// Snapshot returns a copy of the provider's record. Unknown providers yield
// a zero record rather than an error; a provider with no traffic yet is
// indistinguishable from one never configured.
func (m *Monitor) Snapshot(provider string) Record {
	m.mu.RLock()
	pr, ok := m.records[provider]
	m.mu.RUnlock()
	if !ok {
		return Record{Provider: provider}
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.r
}

// SnapshotAll returns copies of every record with recorded traffic.
func (m *Monitor) SnapshotAll() []Record {
	m.mu.RLock()
	prs := make([]*providerRecord, 0, len(m.records))
	for _, pr := range m.records {
		prs = append(prs, pr)
	}
	m.mu.RUnlock()

	out := make([]Record, 0, len(prs))
	for _, pr := range prs {
		pr.mu.Lock()
		out = append(out, pr.r)
		pr.mu.Unlock()
	}
	return out
}

func (m *Monitor) record(provider string) *providerRecord {
	m.mu.RLock()
	pr, ok := m.records[provider]
	m.mu.RUnlock()
	if ok {
		return pr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if pr, ok = m.records[provider]; ok {
		return pr
	}
	pr = &providerRecord{r: Record{Provider: provider}}
	m.records[provider] = pr
	return pr
}
