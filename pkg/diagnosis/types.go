package diagnosis

import (
	"fmt"

	"github.com/aretw0/rootcause/pkg/trace"
)

// Tag types derived by the rules.
const (
	TagGlobalContext         = "GlobalContext"
	TagTimeWastingOperations = "TimeWastingOperations"
	TagProblemContext        = "ProblemContext"
	TagRootCause             = "RootCauseInvocations"
	TagCauseStructure        = "CauseStructure"
)

// Operation groups the invocations of a global context sharing a signature.
type Operation struct {
	Signature string              `json:"signature"`
	Source    trace.Source        `json:"source"`
	Exclusive float64             `json:"exclusive"`
	Calls     []*trace.Invocation `json:"-"`
}

// ProblemContext is the deepest invocation subsuming most of an operation.
type ProblemContext struct {
	Context   *trace.Invocation   `json:"-"`
	Operation *Operation          `json:"-"`
	Calls     []*trace.Invocation `json:"-"`
	Exclusive float64             `json:"exclusive"`
}

// RootCause holds the calls of an operation responsible for a problem.
type RootCause struct {
	Signature string              `json:"signature"`
	Source    trace.Source        `json:"source"`
	Exclusive float64             `json:"exclusive"`
	Calls     []*trace.Invocation `json:"-"`
}

// CauseType tells how the root cause calls relate to each other.
type CauseType string

const (
	CauseSingle    CauseType = "SINGLE"
	CauseIterative CauseType = "ITERATIVE"
	CauseRecursive CauseType = "RECURSIVE"
)

// CauseStructure describes the shape of a root cause.
type CauseStructure struct {
	Type   CauseType    `json:"type"`
	Source trace.Source `json:"source"`
	Calls  int          `json:"calls"`
	Depth  int          `json:"depth,omitempty"`
}

func asInvocation(v any) (*trace.Invocation, error) {
	inv, ok := v.(*trace.Invocation)
	if !ok || inv == nil {
		return nil, fmt.Errorf("expected *trace.Invocation, got %T", v)
	}
	return inv, nil
}
