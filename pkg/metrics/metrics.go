// Package metrics holds the Prometheus collectors shared by the gateway packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pbgateway_auth_attempts_total",
		Help: "Login attempts against PocketBase by result.",
	}, []string{"result"})
	AuthFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pbgateway_auth_failures_total",
		Help: "Authenticate calls that exhausted every retry.",
	})

	ConnectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pbgateway_connection_status",
		Help: "1 for the current connection status, 0 for the others.",
	}, []string{"status"})
	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pbgateway_status_transitions_total",
		Help: "Connection status transitions.",
	}, []string{"from", "to"})

	HealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pbgateway_health_checks_total",
		Help: "Health probes by result.",
	}, []string{"result"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pbgateway_queue_depth",
		Help: "Queued requests waiting for the drain loop.",
	})
	QueueWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pbgateway_queue_wait_seconds",
		Help:    "Time between submission and start of a queued request.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	})
	RequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pbgateway_request_duration_seconds",
		Help:    "Duration of calls to PocketBase by outcome.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"kind", "outcome"})
)

// SetStatus flips the status gauge so exactly one label is 1.
func SetStatus(current string, all ...string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		ConnectionStatus.WithLabelValues(s).Set(v)
	}
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
