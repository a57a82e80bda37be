// Package metrics registers the Prometheus instruments for the advice
// flow and provides a decorator that observes every advisor call.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/guidepostlabs/guidepost/internal/advice"
)

// Metrics holds the application's Prometheus instruments.
type Metrics struct {
	AdviceCalls    *prometheus.CounterVec
	AdviceDuration prometheus.Histogram
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AdviceCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidepost_advice_calls_total",
				Help: "Total number of advice calls by outcome",
			},
			[]string{"outcome"},
		),
		AdviceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "guidepost_advice_duration_seconds",
				Help: "Duration of advice calls",
			},
		),
	}
	reg.MustRegister(m.AdviceCalls, m.AdviceDuration)
	return m
}

// InstrumentAdvisor wraps an advisor so every call is timed and counted
// by outcome.
func InstrumentAdvisor(m *Metrics, next advice.Advisor) advice.Advisor {
	return &instrumentedAdvisor{next: next, metrics: m}
}

type instrumentedAdvisor struct {
	next    advice.Advisor
	metrics *Metrics
}

func (a *instrumentedAdvisor) Advise(ctx context.Context, conversation string) advice.Outcome {
	start := time.Now()
	out := a.next.Advise(ctx, conversation)
	a.metrics.AdviceDuration.Observe(time.Since(start).Seconds())
	a.metrics.AdviceCalls.WithLabelValues(out.Kind()).Inc()
	return out
}
