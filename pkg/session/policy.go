package session

import "fmt"

// MalformedInputPolicy decides what happens to a candidate tag whose
// ancestor chain lacks a tag type the rule requires.
type MalformedInputPolicy string

const (
	// SkipAndWarn drops the candidate, logs a warning and keeps processing.
	SkipAndWarn MalformedInputPolicy = "skip"
	// FailFast fails the session with domain.ErrMalformedInput.
	FailFast MalformedInputPolicy = "fail"
)

// ParseMalformedInputPolicy parses a policy name.
func ParseMalformedInputPolicy(s string) (MalformedInputPolicy, error) {
	switch MalformedInputPolicy(s) {
	case SkipAndWarn, "":
		return SkipAndWarn, nil
	case FailFast:
		return FailFast, nil
	}
	return "", fmt.Errorf("unknown malformed input policy %q (want skip or fail)", s)
}

// ExhaustionPolicy decides how Borrow behaves when every session is in use.
type ExhaustionPolicy string

const (
	// Block waits until a session is returned or the context ends.
	Block ExhaustionPolicy = "block"
	// FailOnExhaustion returns domain.ErrPoolExhausted immediately.
	FailOnExhaustion ExhaustionPolicy = "fail_fast"
)

// ParseExhaustionPolicy parses a policy name.
func ParseExhaustionPolicy(s string) (ExhaustionPolicy, error) {
	switch ExhaustionPolicy(s) {
	case Block, "":
		return Block, nil
	case FailOnExhaustion:
		return FailOnExhaustion, nil
	}
	return "", fmt.Errorf("unknown exhaustion policy %q (want block or fail_fast)", s)
}
