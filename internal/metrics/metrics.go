// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plantpal"

// Metrics groups every collector. Build one per process with New.
type Metrics struct {
	reg prometheus.Gatherer

	EventsApplied        *prometheus.CounterVec
	EventsSkipped        *prometheus.CounterVec
	LevelUps             prometheus.Counter
	AchievementsUnlocked *prometheus.CounterVec
	StoreRetries         *prometheus.CounterVec
	EventsDropped        prometheus.Counter
	HTTPDuration         *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry
// with the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		EventsApplied: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_applied_total",
				Help:      "Activity events that changed plant stats.",
			},
			[]string{"event"},
		),
		EventsSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_skipped_total",
				Help:      "Activity events rejected as no-ops, such as a repeated daily check-in.",
			},
			[]string{"event"},
		),
		LevelUps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Plant level-ups.",
		}),
		AchievementsUnlocked: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "achievements_unlocked_total",
				Help:      "Newly persisted achievement unlocks.",
			},
			[]string{"achievement"},
		),
		StoreRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_retries_total",
				Help:      "Retries of store operations after a transient error.",
			},
			[]string{"op"},
		),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_dropped_total",
			Help:      "Refresh events not delivered to at least one subscriber.",
		}),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method", "code"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
