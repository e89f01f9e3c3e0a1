// Package metrics defines the Prometheus collectors of the krscope service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/krscope/krscope/pkg/scoring"
)

var (
	// HTTPRequestsTotal counts requests by method, route pattern and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krscope_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures server response time.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "krscope_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// ScoringIterations records fixed-point iterations per scoring call.
	ScoringIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "krscope_scoring_iterations",
			Help:    "Fixed-point iterations used per scoring call",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// ScoringNonConverged counts scoring calls that hit the iteration cap.
	ScoringNonConverged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "krscope_scoring_nonconverged_total",
			Help: "Scoring calls that returned before reaching the convergence tolerance",
		},
	)

	// GraphNodes records the size of scored graphs.
	GraphNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "krscope_graph_nodes",
			Help:    "Number of nodes in scored graphs",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)

// ObserveScore records the engine metrics of one scoring call.
func ObserveScore(nodes int, result *scoring.ScoreResult) {
	if result == nil {
		return
	}
	GraphNodes.Observe(float64(nodes))
	ScoringIterations.Observe(float64(result.Diagnostics.Iterations))
	if !result.Diagnostics.Converged {
		ScoringNonConverged.Inc()
	}
}
