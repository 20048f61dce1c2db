// Package metrics holds the Prometheus counters for event saves and alert delivery.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a private registry so tests can create as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	AlertsRegistered prometheus.Counter
	AlertsSent       prometheus.Counter
	AlertsFailed     prometheus.Counter
	EventsSaved      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		AlertsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runready",
			Name:      "alerts_registered_total",
			Help:      "Reminder alerts registered for future delivery.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runready",
			Name:      "alerts_sent_total",
			Help:      "Reminder alerts delivered.",
		}),
		AlertsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runready",
			Name:      "alerts_failed_total",
			Help:      "Reminder alert deliveries that failed and will be retried.",
		}),
		EventsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runready",
			Name:      "events_saved_total",
			Help:      "Event schedules persisted.",
		}),
	}
	m.reg.MustRegister(m.AlertsRegistered, m.AlertsSent, m.AlertsFailed, m.EventsSaved)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
