package domain

// SessionState is the lifecycle position of a diagnosis session.
type SessionState string

const (
	StateNew        SessionState = "NEW"        // Created, never activated
	StateActivated  SessionState = "ACTIVATED"  // Bound to an input, ready to process
	StateProcessed  SessionState = "PROCESSED"  // Fixed point reached, results available
	StatePassivated SessionState = "PASSIVATED" // Reset, waiting in a pool
	StateDestroyed  SessionState = "DESTROYED"  // Terminal
	StateFailure    SessionState = "FAILURE"    // A rule failed during processing
)

// String implements fmt.Stringer.
func (s SessionState) String() string {
	return string(s)
}
