package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionCreate    EventType = "session_create"
	EventSessionActivate  EventType = "session_activate"
	EventSessionProcessed EventType = "session_processed"
	EventSessionFailed    EventType = "session_failed"
	EventSessionPassivate EventType = "session_passivate"
	EventSessionDestroy   EventType = "session_destroy"
	EventRuleExecute      EventType = "rule_execute"
	EventInputSkipped     EventType = "input_skipped"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// SessionEvent reports a lifecycle transition of a session.
type SessionEvent struct {
	EventBase
	From     SessionState  `json:"from"`
	To       SessionState  `json:"to"`
	Rounds   int           `json:"rounds,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// RuleEvent reports one rule execution inside the fixed-point loop.
type RuleEvent struct {
	EventBase
	RuleName string        `json:"rule_name"`
	Round    int           `json:"round"`
	Inputs   int           `json:"inputs"`
	Outputs  int           `json:"outputs"`
	Failures int           `json:"failures"`
	Duration time.Duration `json:"duration"`
}

// InputEvent reports a candidate tag dropped during input collection.
type InputEvent struct {
	EventBase
	RuleName string   `json:"rule_name"`
	TagID    TagID    `json:"tag_id"`
	TagType  string   `json:"tag_type"`
	Missing  []string `json:"missing"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnSessionCreate    func(context.Context, *SessionEvent)
	OnSessionActivate  func(context.Context, *SessionEvent)
	OnSessionProcessed func(context.Context, *SessionEvent)
	OnSessionFailed    func(context.Context, *SessionEvent)
	OnSessionPassivate func(context.Context, *SessionEvent)
	OnSessionDestroy   func(context.Context, *SessionEvent)
	OnRuleExecute      func(context.Context, *RuleEvent)
	OnInputSkipped     func(context.Context, *InputEvent)
}

// Merge returns hooks invoking h first and then other for every event.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSessionCreate:    chainSession(h.OnSessionCreate, other.OnSessionCreate),
		OnSessionActivate:  chainSession(h.OnSessionActivate, other.OnSessionActivate),
		OnSessionProcessed: chainSession(h.OnSessionProcessed, other.OnSessionProcessed),
		OnSessionFailed:    chainSession(h.OnSessionFailed, other.OnSessionFailed),
		OnSessionPassivate: chainSession(h.OnSessionPassivate, other.OnSessionPassivate),
		OnSessionDestroy:   chainSession(h.OnSessionDestroy, other.OnSessionDestroy),
		OnRuleExecute: func(ctx context.Context, e *RuleEvent) {
			if h.OnRuleExecute != nil {
				h.OnRuleExecute(ctx, e)
			}
			if other.OnRuleExecute != nil {
				other.OnRuleExecute(ctx, e)
			}
		},
		OnInputSkipped: func(ctx context.Context, e *InputEvent) {
			if h.OnInputSkipped != nil {
				h.OnInputSkipped(ctx, e)
			}
			if other.OnInputSkipped != nil {
				other.OnInputSkipped(ctx, e)
			}
		},
	}
}

func chainSession(a, b func(context.Context, *SessionEvent)) func(context.Context, *SessionEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *SessionEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
