// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_host_requests_total",
			Help: "Requests handled, by request kind, transport and outcome code",
		},
		[]string{"kind", "transport", "code"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schema_host_request_duration_seconds",
			Help:    "Duration of request handling in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 90},
		},
		[]string{"kind", "transport"},
	)

	RequestsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "schema_host_requests_active",
			Help: "Requests currently being handled per kind",
		},
		[]string{"kind"},
	)

	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_host_generation_attempts_total",
			Help: "Generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	GenerationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_host_generation_results_total",
			Help: "Finished generation requests by result and attempts used",
		},
		[]string{"result", "attempts"},
	)

	TokensDebited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_host_tokens_debited_total",
			Help: "Tokens debited from billing accounts by operation",
		},
		[]string{"operation"},
	)

	MeterEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_host_meter_events_total",
			Help: "Storage meter events by publish result",
		},
		[]string{"result"},
	)
)
