package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/rootcause/pkg/domain"
)

// Metrics holds the Prometheus collectors fed by engine lifecycle events.
type Metrics struct {
	Sessions       *prometheus.CounterVec
	RuleExecutions *prometheus.CounterVec
	SkippedInputs  *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rootcause_sessions_total",
				Help: "Total number of diagnosis runs by outcome",
			},
			[]string{"outcome"},
		),
		RuleExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rootcause_rule_executions_total",
				Help: "Total number of rule inputs executed",
			},
			[]string{"rule"},
		),
		SkippedInputs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rootcause_skipped_inputs_total",
				Help: "Total number of malformed rule inputs skipped",
			},
			[]string{"rule"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rootcause_run_duration_seconds",
				Help:    "Duration of diagnosis runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rootcause_active_sessions",
				Help: "Number of activated diagnosis sessions",
			},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Sessions, m.RuleExecutions, m.SkippedInputs, m.RunDuration, m.ActiveSessions}
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionActivate: func(context.Context, *domain.SessionEvent) {
			m.ActiveSessions.Inc()
		},
		OnSessionPassivate: func(context.Context, *domain.SessionEvent) {
			m.ActiveSessions.Dec()
		},
		OnSessionProcessed: func(_ context.Context, e *domain.SessionEvent) {
			m.Sessions.WithLabelValues("processed").Inc()
			m.RunDuration.WithLabelValues("processed").Observe(e.Duration.Seconds())
		},
		OnSessionFailed: func(_ context.Context, e *domain.SessionEvent) {
			m.Sessions.WithLabelValues("failed").Inc()
			m.RunDuration.WithLabelValues("failed").Observe(e.Duration.Seconds())
		},
		OnRuleExecute: func(_ context.Context, e *domain.RuleEvent) {
			m.RuleExecutions.WithLabelValues(e.RuleName).Add(float64(e.Inputs))
		},
		OnInputSkipped: func(_ context.Context, e *domain.InputEvent) {
			m.SkippedInputs.WithLabelValues(e.RuleName).Inc()
		},
	}
}
