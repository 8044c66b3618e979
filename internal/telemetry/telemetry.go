// Package telemetry registers the prometheus metrics exposed by the
// backtest HTTP surface, following the teacher's metrics.go convention of
// package-level vars registered once in init().
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_requests_total",
		Help: "Total backtest requests handled, by evaluation engine used.",
	}, []string{"engine"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backtest_duration_seconds",
		Help:    "Wall-clock time to run a single backtest request.",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine"})

	WarningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_warnings_total",
		Help: "Warnings emitted during backtest evaluation, by kind.",
	}, []string{"kind"})

	BranchCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backtest_branch_cache_hits_total",
		Help: "Memoized branch-equity lookups served from cache across all requests.",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal, RequestDuration, WarningsTotal, BranchCacheHitsTotal)
}

// ObserveWarnings increments WarningsTotal once per warning, bucketed by a
// caller-supplied kind (e.g. "vectorized_fallback").
func ObserveWarnings(kind string, count int) {
	if count <= 0 {
		return
	}
	WarningsTotal.WithLabelValues(kind).Add(float64(count))
}
