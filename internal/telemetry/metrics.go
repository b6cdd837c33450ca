// Package telemetry registers the Wizard gateway's prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's prometheus collectors. New registers them with
// the default registry; no other package calls New or records into these
// collectors, and no /metrics route is served.
type Metrics struct {
	DispatchStageLatency *prometheus.HistogramVec
	DispatchRouteTotal   *prometheus.CounterVec

	RateLimitDenied  *prometheus.CounterVec
	RateLimitAllowed *prometheus.CounterVec

	GatewayRequestsTotal *prometheus.CounterVec
	GatewayCostSpentUSD  prometheus.Gauge
	GatewayLatency       *prometheus.HistogramVec

	SyncBatchSize     *prometheus.HistogramVec
	SyncBatchFailures *prometheus.CounterVec
}

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		DispatchStageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wizard_dispatch_stage_latency_seconds",
				Help:    "Latency of each dispatch pipeline stage",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"stage"},
		),
		DispatchRouteTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_dispatch_route_total",
				Help: "Total dispatch decisions by dispatch_to target",
			},
			[]string{"dispatch_to"},
		),
		RateLimitDenied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_rate_limit_denied_total",
				Help: "Total requests denied by the rate limiter",
			},
			[]string{"tier"},
		),
		RateLimitAllowed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_rate_limit_allowed_total",
				Help: "Total requests allowed by the rate limiter",
			},
			[]string{"tier"},
		),
		GatewayRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_gateway_requests_total",
				Help: "Total completion requests by backend and status",
			},
			[]string{"backend", "status"},
		),
		GatewayCostSpentUSD: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wizard_gateway_cost_spent_today_usd",
				Help: "Cloud spend accrued so far today",
			},
		),
		GatewayLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wizard_gateway_latency_seconds",
				Help:    "Completion latency by backend",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		SyncBatchSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wizard_sync_batch_size",
				Help:    "Size of processed sync event batches",
				Buckets: []float64{1, 5, 10, 25, 50, 100},
			},
			[]string{"provider"},
		),
		SyncBatchFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_sync_batch_failures_total",
				Help: "Total sync batch processing failures",
			},
			[]string{"provider"},
		),
	}
}
