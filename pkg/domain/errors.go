package domain

import (
	"errors"
	"fmt"
)

// ErrIllegalState is returned when a session operation is not allowed in its current state.
var ErrIllegalState = errors.New("illegal session state")

// ErrSessionDestroyed is returned when a destroyed session is used again.
var ErrSessionDestroyed = errors.New("session already destroyed")

// ErrPoolExhausted is returned by a fail-fast pool when all sessions are in use.
var ErrPoolExhausted = errors.New("session pool exhausted")

// ErrPoolClosed is returned when borrowing from a closed pool.
var ErrPoolClosed = errors.New("session pool closed")

// ErrMalformedInput is returned when a candidate tag cannot satisfy the fire condition
// of a rule and the engine runs with the fail-fast input policy.
var ErrMalformedInput = errors.New("malformed rule input")

// ErrUnknownParent is returned when a tag references a parent that is not stored.
var ErrUnknownParent = errors.New("unknown parent tag")

// ErrMissingVariable is returned when a rule requires a session variable that is not set.
var ErrMissingVariable = errors.New("missing session variable")

// ErrResultNotFound is returned when a diagnosis result cannot be found in the store.
var ErrResultNotFound = errors.New("result not found")

// SessionError is returned when a session fails to process its input.
type SessionError struct {
	SessionID string
	State     SessionState
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("diagnosis session %s failed (state %s): %v", e.SessionID, e.State, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// RuleExecutionError wraps a failure raised while executing a rule.
type RuleExecutionError struct {
	RuleName string
	Err      error
}

func (e *RuleExecutionError) Error() string {
	return fmt.Sprintf("rule %q failed: %v", e.RuleName, e.Err)
}

func (e *RuleExecutionError) Unwrap() error {
	return e.Err
}
