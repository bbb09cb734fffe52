// Package metrics exposes Prometheus collectors for the fanout pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors the dispatcher reports into.
type Metrics struct {
	Deliveries       *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram
	Dispatches       prometheus.Counter
	Subscriptions    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Push delivery attempts by outcome.",
		}, []string{"outcome"}),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "push_delivery_duration_seconds",
			Help:    "Wall time of individual push delivery attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		Dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_dispatches_total",
			Help: "Fanout dispatch invocations.",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "push_subscriptions",
			Help: "Stored push subscriptions, refreshed after each dispatch.",
		}),
	}

	reg.MustRegister(m.Deliveries, m.DeliveryDuration, m.Dispatches, m.Subscriptions)
	return m
}
