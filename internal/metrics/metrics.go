// Package metrics holds the Prometheus collectors for a triage run.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_emails_processed_total",
			Help: "Emails that went through classification, by outcome.",
		},
		[]string{"status"}, // ok, failed
	)

	EmailsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_emails_classified_total",
			Help: "Committed classifications by category.",
		},
		[]string{"category"},
	)

	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_dispatch_total",
			Help: "Router dispatches by handler and outcome.",
		},
		[]string{"handler", "status"},
	)

	GenerationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_generation_latency_seconds",
			Help:    "Structured generation latency per email, retries included.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		},
		[]string{"status"},
	)
)

func IncEmailProcessed(status string) {
	EmailsProcessed.WithLabelValues(status).Inc()
}

func IncClassified(category string) {
	EmailsClassified.WithLabelValues(category).Inc()
}

func IncDispatch(handler, status string) {
	Dispatches.WithLabelValues(handler, status).Inc()
}

func ObserveGeneration(status string, d time.Duration) {
	GenerationLatency.WithLabelValues(status).Observe(d.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
