package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/rootcause/pkg/domain"
)

// LogHooks returns lifecycle hooks writing one debug line per event and an
// error line per failed run.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionActivate: func(ctx context.Context, e *domain.SessionEvent) {
			logger.DebugContext(ctx, "session_activate", "session_id", e.SessionID)
		},
		OnSessionProcessed: func(ctx context.Context, e *domain.SessionEvent) {
			logger.DebugContext(ctx, "session_processed",
				"session_id", e.SessionID,
				"rounds", e.Rounds,
				"duration", e.Duration,
			)
		},
		OnSessionFailed: func(ctx context.Context, e *domain.SessionEvent) {
			logger.ErrorContext(ctx, "session_failed",
				"session_id", e.SessionID,
				"rounds", e.Rounds,
				"err", e.Err,
			)
		},
		OnRuleExecute: func(ctx context.Context, e *domain.RuleEvent) {
			logger.DebugContext(ctx, "rule_execute",
				"session_id", e.SessionID,
				"rule", e.RuleName,
				"round", e.Round,
				"inputs", e.Inputs,
				"outputs", e.Outputs,
				"failures", e.Failures,
			)
		},
	}
}
