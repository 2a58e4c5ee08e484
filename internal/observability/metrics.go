package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// risk aggregation engine.
type Metrics struct {
	AssessmentsTotal     prometheus.Counter
	AssessmentsNoData    prometheus.Counter
	AssessmentDuration   prometheus.Histogram
	AssessmentConfidence prometheus.Histogram

	// Provider call metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,failure,no_data}
	ProviderFailures *prometheus.CounterVec   // labels: provider, kind
	ProviderLatency  *prometheus.HistogramVec // labels: provider

	// Cache and admission metrics.
	CacheLookups        *prometheus.CounterVec // labels: provider, result={hit,miss}
	RateLimitRejections *prometheus.CounterVec // labels: provider

	// Fallback chain metrics.
	FallbackAttempts *prometheus.CounterVec // labels: candidate, outcome={accepted,rejected,error}
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.AssessmentsTotal,
		m.AssessmentsNoData,
		m.AssessmentDuration,
		m.AssessmentConfidence,
		m.ProviderRequests,
		m.ProviderFailures,
		m.ProviderLatency,
		m.CacheLookups,
		m.RateLimitRejections,
		m.FallbackAttempts,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		AssessmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_risk",
			Name:      "assessments_total",
			Help:      "Total risk assessments produced.",
		}),
		AssessmentsNoData: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_risk",
			Name:      "assessments_no_data_total",
			Help:      "Assessments that failed because no provider contributed data.",
		}),
		AssessmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_risk",
			Name:      "assessment_duration_seconds",
			Help:      "Duration of a complete fan-out/aggregate cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		AssessmentConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_risk",
			Name:      "assessment_confidence",
			Help:      "Source-coverage confidence of produced assessments.",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1},
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_risk",
			Name:      "provider_requests_total",
			Help:      "Provider fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_risk",
			Name:      "provider_failures_total",
			Help:      "Provider failures by provider and error kind.",
		}, []string{"provider", "kind"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hazard_risk",
			Name:      "provider_latency_seconds",
			Help:      "Remote provider call duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_risk",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by provider and result.",
		}, []string{"provider", "result"}),
		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_risk",
			Name:      "rate_limit_rejections_total",
			Help:      "Local admission-control rejections by provider.",
		}, []string{"provider"}),
		FallbackAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_risk",
			Name:      "fallback_attempts_total",
			Help:      "Fallback chain attempts by candidate and outcome.",
		}, []string{"candidate", "outcome"}),
	}
}
