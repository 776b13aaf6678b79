// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Refresh metrics
	PositionsRefreshed prometheus.Counter
	RefreshFailures    prometheus.Counter
	ValidationErrors   prometheus.Counter
	ValidationWarnings prometheus.Counter
	RefreshDuration    prometheus.Histogram

	// Derivation metrics
	ParameterSetsDerived *prometheus.CounterVec // by validity tier
	DerivationFailures   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "position_lab"
	}

	return &Metrics{
		PositionsRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "positions_refreshed_total",
			Help:      "Total number of positions refreshed",
		}),
		RefreshFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "failures_total",
			Help:      "Total number of positions that failed to refresh",
		}),
		ValidationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "validation_errors_total",
			Help:      "Total number of consistency validation errors",
		}),
		ValidationWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "validation_warnings_total",
			Help:      "Total number of consistency validation warnings",
		}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Duration of batch refresh runs",
			Buckets:   prometheus.DefBuckets,
		}),
		ParameterSetsDerived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "derive",
			Name:      "parameter_sets_total",
			Help:      "Total number of parameter sets derived",
		}, []string{"tier"}),
		DerivationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "derive",
			Name:      "failures_total",
			Help:      "Total number of strategies that failed derivation",
		}),
	}
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
