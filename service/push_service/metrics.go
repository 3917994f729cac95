package push_service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics dispatch counters. A nil *Metrics records nothing.
type Metrics struct {
	dispatches    *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	prunedTokens  prometheus.Counter
	sendLatency   prometheus.Histogram
	registrations *prometheus.CounterVec
}

// NewMetrics registers the dispatch metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_push_dispatches_total",
			Help: "Dispatch calls by result",
		}, []string{"result"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_push_token_deliveries_total",
			Help: "Per-token delivery outcomes",
		}, []string{"outcome"}),
		prunedTokens: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleet_push_pruned_tokens_total",
			Help: "Permanently invalid tokens removed from the registry",
		}),
		sendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleet_push_send_duration_seconds",
			Help:    "Time taken by one multicast transport call",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_push_registrations_total",
			Help: "Token registrations by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observeDispatch(result string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(result).Inc()
}

func (m *Metrics) observeLatency(started time.Time) {
	if m == nil {
		return
	}
	m.sendLatency.Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeOutcomes(report *DispatchReport) {
	if m == nil {
		return
	}
	for _, result := range report.Results {
		m.deliveries.WithLabelValues(string(result.ErrorKind)).Inc()
	}
}

func (m *Metrics) observePruned(count int) {
	if m == nil || count == 0 {
		return
	}
	m.prunedTokens.Add(float64(count))
}

// ObserveRegistration counts one registration outcome.
func (m *Metrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}
