package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the collectors shared by the fetch client, the response
// cache and the analytics orchestrator.
type Registry struct {
	FetchAttempts    *prometheus.CounterVec
	FetchFailures    *prometheus.CounterVec
	BreakerRejects   prometheus.Counter
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	AssetFailures    prometheus.Counter
}

// New builds the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfa_fetch_attempts_total",
				Help: "Outbound HTTP attempts by host and outcome",
			},
			[]string{"host", "outcome"},
		),
		FetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfa_fetch_exhausted_total",
				Help: "Requests that failed after all retry attempts",
			},
			[]string{"host"},
		),
		BreakerRejects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pfa_fetch_breaker_rejections_total",
				Help: "Requests rejected because the circuit breaker was open",
			},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfa_cache_hits_total",
				Help: "Response cache hits by key namespace",
			},
			[]string{"namespace"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfa_cache_misses_total",
				Help: "Response cache misses by key namespace",
			},
			[]string{"namespace"},
		),
		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pfa_analysis_duration_seconds",
				Help:    "End-to-end duration of analysis calls",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind", "result"},
		),
		AssetFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pfa_asset_fetch_failures_total",
				Help: "Per-asset history fetch failures isolated inside a portfolio fan-out",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			r.FetchAttempts, r.FetchFailures, r.BreakerRejects,
			r.CacheHits, r.CacheMisses, r.AnalysisDuration, r.AssetFailures,
		)
	}
	return r
}

// Nop returns an unregistered registry.
func Nop() *Registry {
	return New(nil)
}
