package observability

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by lifecycle events.
type Metrics struct {
	Transitions   *prometheus.CounterVec
	Entries       *prometheus.CounterVec
	Terminations  prometheus.Counter
	ResolveErrors *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors under the given namespace.
// An empty namespace defaults to "arbor".
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "arbor"
	}
	return &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of committed transitions",
			},
			[]string{"from", "to", "strategy"},
		),
		Entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_entries_total",
				Help:      "Total number of times each state was entered",
			},
			[]string{"state"},
		),
		Terminations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "terminations_total",
				Help:      "Total number of instances that terminated",
			},
		),
		ResolveErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolve_errors_total",
				Help:      "Total number of ticks aborted by a failing condition",
			},
			[]string{"state"},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Transitions, m.Entries, m.Terminations, m.ResolveErrors} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.Outcome.From), string(e.Outcome.To), e.Outcome.Strategy.String()).Inc()
			for _, id := range e.Entered {
				m.Entries.WithLabelValues(string(id)).Inc()
			}
		},
		OnTerminate: func(context.Context, *domain.TransitionEvent) {
			m.Terminations.Inc()
		},
		OnResolveError: func(_ context.Context, e *domain.ResolveErrorEvent) {
			m.ResolveErrors.WithLabelValues(string(e.State)).Inc()
		},
	}
}

// Combine returns hooks that call each of the given hooks in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			for _, h := range hooks {
				if h.OnTransition != nil {
					h.OnTransition(ctx, e)
				}
			}
		},
		OnTerminate: func(ctx context.Context, e *domain.TransitionEvent) {
			for _, h := range hooks {
				if h.OnTerminate != nil {
					h.OnTerminate(ctx, e)
				}
			}
		},
		OnResolveError: func(ctx context.Context, e *domain.ResolveErrorEvent) {
			for _, h := range hooks {
				if h.OnResolveError != nil {
					h.OnResolveError(ctx, e)
				}
			}
		},
	}
}
