package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/rule"
)

// Session runs the rule fixed point over one input at a time.
// A Session is driven by a single goroutine; it is not safe for concurrent use.
// The context.Context passed to its methods is handed to lifecycle hooks only:
// processing is never interrupted once started.
type Session[I, R any] struct {
	id        string
	state     domain.SessionState
	ctx       *Context[I]
	backup    []rule.Rule
	collector ResultCollector[I, R]
	policy    MalformedInputPolicy
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// ID returns the session identifier.
func (s *Session[I, R]) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session[I, R]) State() domain.SessionState { return s.state }

// Context returns the session context.
func (s *Session[I, R]) Context() *Context[I] { return s.ctx }

// Activate binds the session to an input. Legal from NEW and PASSIVATED.
func (s *Session[I, R]) Activate(ctx context.Context, input I, vars domain.SessionVariables) error {
	switch s.state {
	case domain.StateNew, domain.StatePassivated:
	case domain.StateDestroyed:
		return s.errorf(domain.ErrSessionDestroyed)
	default:
		return s.errorf(fmt.Errorf("%w: cannot activate a session in state %s", domain.ErrIllegalState, s.state))
	}

	s.ctx.activate(input, vars, s.backup)
	s.transition(ctx, domain.StateActivated, s.hooks.OnSessionActivate, nil)
	return nil
}

// Process seeds the storage with the input and runs rules until none fires.
// Legal only from ACTIVATED. When a rule fails the session moves to FAILURE,
// is passivated and a *domain.SessionError is returned.
func (s *Session[I, R]) Process(ctx context.Context) error {
	if s.state != domain.StateActivated {
		return s.errorf(fmt.Errorf("%w: cannot process a session in state %s", domain.ErrIllegalState, s.state))
	}

	start := time.Now()
	if _, err := s.ctx.storage.Store(domain.TriggerOutput(s.ctx.input)); err != nil {
		return s.failure(ctx, err, 0, start)
	}

	rounds, err := s.doProcess(ctx)
	if err != nil {
		return s.failure(ctx, err, rounds, start)
	}

	from := s.state
	s.state = domain.StateProcessed
	if s.hooks.OnSessionProcessed != nil {
		s.hooks.OnSessionProcessed(ctx, &domain.SessionEvent{
			EventBase: s.event(domain.EventSessionProcessed),
			From:      from,
			To:        s.state,
			Rounds:    rounds,
			Duration:  time.Since(start),
		})
	}
	s.logger.Debug("Diagnosis session processed",
		"session_id", s.id,
		"rounds", rounds,
		"executions", s.ctx.ExecutionCount(),
		"duration", time.Since(start),
	)
	return nil
}

// Call processes the input and hands the context to the result collector.
func (s *Session[I, R]) Call(ctx context.Context) (R, error) {
	var zero R
	if err := s.Process(ctx); err != nil {
		return zero, err
	}
	result, err := s.collector.Collect(s.ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to collect results of session %s: %w", s.id, err)
	}
	return result, nil
}

// Passivate clears the context and restores the rule set. Always permitted
// except on a destroyed session.
func (s *Session[I, R]) Passivate(ctx context.Context) {
	if s.state == domain.StateDestroyed {
		s.logger.Warn("Ignoring passivate of destroyed session", "session_id", s.id)
		return
	}
	if s.state != domain.StateProcessed {
		s.logger.Warn("Passivating session that was not processed",
			"session_id", s.id,
			"state", s.state,
		)
	}
	s.ctx.reset(s.backup)
	s.transition(ctx, domain.StatePassivated, s.hooks.OnSessionPassivate, nil)
}

// Destroy ends the session. A processed session is passivated first.
func (s *Session[I, R]) Destroy(ctx context.Context) {
	switch s.state {
	case domain.StateDestroyed:
		s.logger.Warn("Session already destroyed", "session_id", s.id)
		return
	case domain.StateProcessed:
		s.Passivate(ctx)
	case domain.StateNew, domain.StateActivated:
		s.logger.Warn("Destroying session that was never processed",
			"session_id", s.id,
			"state", s.state,
		)
		s.ctx.reset(s.backup)
	}
	s.transition(ctx, domain.StateDestroyed, s.hooks.OnSessionDestroy, nil)
}

func (s *Session[I, R]) failure(ctx context.Context, cause error, rounds int, start time.Time) error {
	s.transition(ctx, domain.StateFailure, s.hooks.OnSessionFailed, &domain.SessionEvent{
		Rounds:   rounds,
		Duration: time.Since(start),
		Err:      cause,
	})
	s.logger.Error("Diagnosis session failed",
		"session_id", s.id,
		"rounds", rounds,
		"err", cause,
	)
	err := &domain.SessionError{SessionID: s.id, State: domain.StateFailure, Err: cause}
	s.Passivate(ctx)
	return err
}

func (s *Session[I, R]) transition(ctx context.Context, to domain.SessionState, hook func(context.Context, *domain.SessionEvent), evt *domain.SessionEvent) {
	from := s.state
	s.state = to
	if hook == nil {
		return
	}
	if evt == nil {
		evt = &domain.SessionEvent{}
	}
	evt.EventBase = s.event(eventFor(to))
	evt.From = from
	evt.To = to
	hook(ctx, evt)
}

func (s *Session[I, R]) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		SessionID: s.id,
	}
}

func (s *Session[I, R]) errorf(err error) error {
	return &domain.SessionError{SessionID: s.id, State: s.state, Err: err}
}

func eventFor(state domain.SessionState) domain.EventType {
	switch state {
	case domain.StateActivated:
		return domain.EventSessionActivate
	case domain.StateProcessed:
		return domain.EventSessionProcessed
	case domain.StateFailure:
		return domain.EventSessionFailed
	case domain.StatePassivated:
		return domain.EventSessionPassivate
	case domain.StateDestroyed:
		return domain.EventSessionDestroy
	}
	return domain.EventSessionCreate
}

// doProcess runs rounds until no rule executes. It returns the number of rounds.
func (s *Session[I, R]) doProcess(ctx context.Context) (int, error) {
	storage := s.ctx.storage
	next := findNextRules(storage.AvailableTagTypes(), s.ctx.rules)
	rounds := 0
	for {
		rounds++
		fired := false
		for _, r := range next {
			inputs, err := s.collectInputs(ctx, r)
			if err != nil {
				return rounds, err
			}
			inputs = filterProcessedInputs(s.ctx.executions, r, inputs)
			if len(inputs) == 0 {
				continue
			}

			start := time.Now()
			outputs, err := executeRule(r, inputs, s.ctx.variables)
			if err != nil {
				return rounds, err
			}
			if _, err := storage.Store(outputs...); err != nil {
				return rounds, &domain.RuleExecutionError{RuleName: r.Name(), Err: err}
			}

			failures := 0
			for _, out := range outputs {
				if out.HasConditionFailures() {
					failures++
				}
			}
			for _, in := range inputs {
				for _, t := range in.Tags {
					storage.MarkConsumed(t.ID)
				}
				s.ctx.executions.add(r.Name(), in)
			}
			fired = true

			if s.hooks.OnRuleExecute != nil {
				s.hooks.OnRuleExecute(ctx, &domain.RuleEvent{
					EventBase: s.event(domain.EventRuleExecute),
					RuleName:  r.Name(),
					Round:     rounds,
					Inputs:    len(inputs),
					Outputs:   len(outputs),
					Failures:  failures,
					Duration:  time.Since(start),
				})
			}
		}
		if !fired {
			return rounds, nil
		}
		next = findNextRules(storage.AvailableTagTypes(), s.ctx.rules)
	}
}

// executeRule runs the rule once per input. A panicking rule body is
// reported as a rule execution error.
func executeRule(r rule.Rule, inputs []domain.RuleInput, vars domain.SessionVariables) (outputs []domain.RuleOutput, err error) {
	defer func() {
		if p := recover(); p != nil {
			outputs = nil
			err = &domain.RuleExecutionError{RuleName: r.Name(), Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	outputs = make([]domain.RuleOutput, 0, len(inputs))
	for _, in := range inputs {
		out, err := r.Execute(in, vars)
		if err != nil {
			var execErr *domain.RuleExecutionError
			if !errors.As(err, &execErr) {
				err = &domain.RuleExecutionError{RuleName: r.Name(), Err: err}
			}
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
