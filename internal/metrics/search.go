package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search pipeline Prometheus metrics.
var (
	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecshop",
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of each search pipeline stage in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"stage"}, // "fuse" / "retrieve" / "rank"
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecshop",
			Name:      "search_requests_total",
			Help:      "Search pipeline executions by outcome",
		},
		[]string{"status"}, // "ok" or the stage that failed
	)

	SearchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vecshop",
			Name:      "search_candidates",
			Help:      "Number of candidates returned by the vector store per search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers the search pipeline metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchStageDuration, SearchRequestsTotal, SearchCandidates)
	searchMetricsRegistered = true
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, since time.Time) {
	SearchStageDuration.WithLabelValues(stage).Observe(time.Since(since).Seconds())
}
