// Package metrics exposes the engine's prometheus instruments. The local
// server mounts Handler() at /metrics; in Lambda deployments the CloudWatch
// emitter in awsx carries the same signals instead.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine groups the counters the transactional core reports.
type Engine struct {
	Checkouts       *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
	CheckoutLatency *prometheus.HistogramVec
}

// New registers and returns the engine metric set.
func New(service string) *Engine {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome code.",
	}, []string{"outcome"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "reconciliations_total",
		Help:      "Payment confirmations by result (applied or duplicate).",
	}, []string{"result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "checkout_duration_ms",
		Help:      "Checkout latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"payment_method"})

	prometheus.MustRegister(checkouts, reconciliations, latency)
	return &Engine{Checkouts: checkouts, Reconciliations: reconciliations, CheckoutLatency: latency}
}

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
