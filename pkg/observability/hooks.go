package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

var (
	buildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbor_builds_total",
			Help: "Top-level builds by root node type and outcome",
		},
		[]string{"type", "outcome"},
	)
	remoteFetchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arbor_remote_fetches_total",
			Help: "Remote description hops resolved while building",
		},
	)
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbor_actions_total",
			Help: "Dispatched actions by actiontype and outcome",
		},
		[]string{"actiontype", "outcome"},
	)
)

// Collectors returns the hook metrics for registration on a prometheus registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{buildsTotal, remoteFetchesTotal, actionsTotal}
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeOK
}

// MetricsHooks records every lifecycle event in the package collectors.
func MetricsHooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBuilt: func(_ context.Context, e *domain.BuildEvent) {
			buildsTotal.WithLabelValues(e.NodeType, outcomeOK).Inc()
		},
		OnFailed: func(_ context.Context, e *domain.BuildEvent) {
			buildsTotal.WithLabelValues(e.NodeType, outcomeError).Inc()
		},
		OnRemoteFetch: func(context.Context, *domain.FetchEvent) {
			remoteFetchesTotal.Inc()
		},
		OnAction: func(_ context.Context, e *domain.ActionEvent) {
			actionsTotal.WithLabelValues(e.ActionType, outcome(e.Err)).Inc()
		},
	}
}

// LogHooks logs every lifecycle event at debug level (failures at warn).
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBuilt: func(ctx context.Context, e *domain.BuildEvent) {
			logger.DebugContext(ctx, "built", "type", e.NodeType)
		},
		OnFailed: func(ctx context.Context, e *domain.BuildEvent) {
			logger.WarnContext(ctx, "build failed", "type", e.NodeType, "err", e.Err)
		},
		OnRemoteFetch: func(ctx context.Context, e *domain.FetchEvent) {
			logger.DebugContext(ctx, "remote fetch", "url", e.URL, "hop", e.Hop)
		},
		OnAction: func(ctx context.Context, e *domain.ActionEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "action failed", "actiontype", e.ActionType, "event", e.Event, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "action", "actiontype", e.ActionType, "event", e.Event)
		},
	}
}

// Chain returns hooks that call each of hooks in order. Nil callbacks are skipped.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBuilt: func(ctx context.Context, e *domain.BuildEvent) {
			for _, h := range hooks {
				if h.OnBuilt != nil {
					h.OnBuilt(ctx, e)
				}
			}
		},
		OnFailed: func(ctx context.Context, e *domain.BuildEvent) {
			for _, h := range hooks {
				if h.OnFailed != nil {
					h.OnFailed(ctx, e)
				}
			}
		},
		OnRemoteFetch: func(ctx context.Context, e *domain.FetchEvent) {
			for _, h := range hooks {
				if h.OnRemoteFetch != nil {
					h.OnRemoteFetch(ctx, e)
				}
			}
		},
		OnAction: func(ctx context.Context, e *domain.ActionEvent) {
			for _, h := range hooks {
				if h.OnAction != nil {
					h.OnAction(ctx, e)
				}
			}
		},
	}
}
