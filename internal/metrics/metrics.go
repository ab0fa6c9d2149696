// Package metrics registers the Prometheus instruments for the cognitive
// core. Degraded paths (forecast timeouts, capacity rejections) surface here
// rather than failing the cycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CyclesTotal       prometheus.Counter
	CycleDuration     prometheus.Histogram
	ForecastTimeouts  prometheus.Counter
	BindingAdmitted   prometheus.Histogram
	BindingRejected   prometheus.Counter
	BindingRetained   prometheus.Counter
	BeliefRevisions   prometheus.Counter
	BeliefsArchived   prometheus.Counter
	StaleIntegrations prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cogcore",
			Name:      "cycles_total",
			Help:      "Completed cognitive cycles.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cogcore",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one cognitive cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		ForecastTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cogcore",
			Name:      "forecast_timeouts_total",
			Help:      "Forecasts that fell back to the previous profile.",
		}),
		BindingAdmitted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cogcore",
			Name:      "binding_admitted",
			Help:      "Candidates admitted per binding competition.",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
		BindingRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cogcore",
			Name:      "binding_rejected_total",
			Help:      "Candidates rejected across binding competitions.",
		}),
		BindingRetained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cogcore",
			Name:      "binding_retained_total",
			Help:      "Cycles that kept the previous bound set with decay.",
		}),
		BeliefRevisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cogcore",
			Name:      "belief_revisions_total",
			Help:      "Committed belief confidence revisions.",
		}),
		BeliefsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cogcore",
			Name:      "beliefs_archived_total",
			Help:      "Beliefs archived for sustained low confidence.",
		}),
		StaleIntegrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cogcore",
			Name:      "stale_integrations_total",
			Help:      "Integrations refused because the model version moved.",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.ForecastTimeouts,
		m.BindingAdmitted,
		m.BindingRejected,
		m.BindingRetained,
		m.BeliefRevisions,
		m.BeliefsArchived,
		m.StaleIntegrations,
	)
	return m
}
