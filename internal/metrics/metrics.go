package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	IssueMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issue_mutations_total",
			Help: "Issue create/update/delete attempts by outcome.",
		},
		[]string{"operation", "result"},
	)

	ActivityWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_log_writes_total",
			Help: "Activity log appends by result. Failures are reported, never returned.",
		},
		[]string{"result"},
	)

	AuthLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"auth_type", "result"},
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors on the default registry, labelled
// with the service name. Later calls are no-ops.
func MustRegister(serviceName string) {
	registerOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
		reg.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			IssueMutationsTotal,
			ActivityWritesTotal,
			AuthLoginsTotal,
		)
	})
}
