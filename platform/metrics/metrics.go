// Package metrics registers the Prometheus collectors used across modules.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the collectors. A fresh registry per process keeps tests isolated.
type Registry struct {
	reg *prometheus.Registry

	Classifications   *prometheus.CounterVec
	RoutingOutcomes   *prometheus.CounterVec
	RelayOutcomes     *prometheus.CounterVec
	AlertsRaised      *prometheus.CounterVec
	RecomputeDuration prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leads",
			Name:      "classified_total",
			Help:      "Leads classified, by category and deciding rule.",
		}, []string{"category", "rule"}),
		RoutingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leads",
			Name:      "routing_outcomes_total",
			Help:      "Routing attempts, by category and outcome.",
		}, []string{"category", "outcome"}),
		RelayOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leads",
			Name:      "relay_outcomes_total",
			Help:      "Fallback relay deliveries, by status.",
		}, []string{"status"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alerts",
			Name:      "raised_total",
			Help:      "Operational alerts raised, by kind.",
		}, []string{"kind"}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "markets",
			Name:      "recompute_duration_seconds",
			Help:      "Duration of a full market heat recompute.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	r.reg.MustRegister(
		r.Classifications,
		r.RoutingOutcomes,
		r.RelayOutcomes,
		r.AlertsRaised,
		r.RecomputeDuration,
		prometheus.NewGoCollector(),
	)
	return r
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// The helpers below accept a nil receiver so callers can run without metrics.

// ObserveClassification counts one classification decision.
func (r *Registry) ObserveClassification(category, rule string) {
	if r == nil {
		return
	}
	r.Classifications.WithLabelValues(category, rule).Inc()
}

// ObserveRouting counts one routing outcome (delivered or fallback).
func (r *Registry) ObserveRouting(category, outcome string) {
	if r == nil {
		return
	}
	r.RoutingOutcomes.WithLabelValues(category, outcome).Inc()
}

// ObserveRelay counts one finished relay.
func (r *Registry) ObserveRelay(status string) {
	if r == nil {
		return
	}
	r.RelayOutcomes.WithLabelValues(status).Inc()
}

// ObserveAlert counts one raised alert.
func (r *Registry) ObserveAlert(kind string) {
	if r == nil {
		return
	}
	r.AlertsRaised.WithLabelValues(kind).Inc()
}

// ObserveRecompute records a recompute duration in seconds.
func (r *Registry) ObserveRecompute(seconds float64) {
	if r == nil {
		return
	}
	r.RecomputeDuration.Observe(seconds)
}
