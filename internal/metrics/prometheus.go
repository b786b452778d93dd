// Package metrics contains middlewares and counters for metrics gathering.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP Requests total counter
var totalRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP Requests.",
	},
	[]string{"path"},
)

// HTTP Response status
var duration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "http_duration",
		Help: "HTTP Requests Duration",
	},
	[]string{"path"},
)

// Late-fee sweep runs and applied fees
var sweepRuns = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "late_fee_sweep_runs_total",
		Help: "Late-fee sweep executions.",
	},
)

var lateFeesApplied = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "late_fees_applied_total",
		Help: "Appointments that had a late fee applied by the sweep.",
	},
)

func init() {
	for _, collector := range []prometheus.Collector{totalRequests, duration, sweepRuns, lateFeesApplied} {
		if err := prometheus.Register(collector); err != nil {
			panic(err)
		}
	}
}

// PrometheusMiddleware instruments the given request and register metrics.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(duration.WithLabelValues(r.RequestURI))
		next.ServeHTTP(w, r)
		totalRequests.WithLabelValues(r.RequestURI).Inc()
		timer.ObserveDuration()
	})
}

// CountSweepRun registers a late-fee sweep execution and how many fees it applied.
func CountSweepRun(applied int) {
	sweepRuns.Inc()
	lateFeesApplied.Add(float64(applied))
}
