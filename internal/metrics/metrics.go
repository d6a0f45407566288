package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Ledger writes
	AllocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_allocations_total",
			Help: "Tender allocations written, by transaction kind and operation",
		},
		[]string{"kind", "op"}, // create|replace|payment|gateway
	)
	AllocationsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_allocations_rejected_total",
			Help: "Tender allocations rejected by validation",
		},
		[]string{"reason"}, // validation|allocation
	)

	// Gateway
	IntentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_created_total",
			Help: "Payment intents created with the gateway",
		},
		[]string{"currency"},
	)
	GatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_errors_total",
			Help: "Failed outbound gateway calls",
		},
		[]string{"op"},
	)
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Callback verifications by outcome",
		},
		[]string{"outcome", "reason"},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)

	initOnce sync.Once
)

// /metrics endpoint handler
var Handler = promhttp.Handler

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			AllocationsTotal,
			AllocationsRejected,
			IntentsCreated,
			GatewayErrors,
			Verifications,
			WorkerQueueDepth,
		)
	})
}
