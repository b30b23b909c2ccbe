// Package trace models captured invocation trees, the input of a diagnosis.
package trace

import (
	"errors"
	"fmt"
	"strconv"
)

// Invocation is one call in a captured invocation tree.
// Durations are inclusive and expressed in milliseconds.
type Invocation struct {
	ID        string        `json:"id,omitempty" yaml:"id,omitempty"`
	Method    string        `json:"method" yaml:"method"`
	Duration  float64       `json:"duration" yaml:"duration"`
	SQL       string        `json:"sql,omitempty" yaml:"sql,omitempty"`
	Exception string        `json:"exception,omitempty" yaml:"exception,omitempty"`
	Children  []*Invocation `json:"children,omitempty" yaml:"children,omitempty"`

	parent *Invocation
	depth  int
}

// Source classifies what an invocation spends its time on.
type Source string

const (
	SourceTimer     Source = "TIMER"
	SourceSQL       Source = "SQL"
	SourceException Source = "EXCEPTION"
)

// Link sets parent references and depths below inv, assigns path IDs
// ("0", "0.1", ...) to invocations without one and validates the tree.
func (inv *Invocation) Link() error {
	inv.parent = nil
	inv.depth = 0
	if inv.ID == "" {
		inv.ID = "0"
	}
	seen := make(map[string]struct{})
	return inv.link(seen)
}

func (inv *Invocation) link(seen map[string]struct{}) error {
	if inv.Duration < 0 {
		return fmt.Errorf("invocation %s: negative duration %v", inv.ID, inv.Duration)
	}
	if _, dup := seen[inv.ID]; dup {
		return fmt.Errorf("duplicate invocation id %q", inv.ID)
	}
	seen[inv.ID] = struct{}{}

	for i, child := range inv.Children {
		if child == nil {
			return fmt.Errorf("invocation %s: nil child at %d", inv.ID, i)
		}
		child.parent = inv
		child.depth = inv.depth + 1
		if child.ID == "" {
			child.ID = inv.ID + "." + strconv.Itoa(i)
		}
		if err := child.link(seen); err != nil {
			return err
		}
	}
	return nil
}

// Parent returns the calling invocation, nil for the root.
func (inv *Invocation) Parent() *Invocation { return inv.parent }

// Depth returns the distance to the root.
func (inv *Invocation) Depth() int { return inv.depth }

// Signature identifies invocations doing the same work: the statement for
// SQL calls, the method otherwise.
func (inv *Invocation) Signature() string {
	if inv.SQL != "" {
		return inv.SQL
	}
	return inv.Method
}

// Source returns what the invocation spends its time on.
func (inv *Invocation) Source() Source {
	switch {
	case inv.SQL != "":
		return SourceSQL
	case inv.Exception != "":
		return SourceException
	}
	return SourceTimer
}

// ExclusiveDuration is the time spent in the invocation itself, outside
// of its children.
func (inv *Invocation) ExclusiveDuration() float64 {
	d := inv.Duration
	for _, c := range inv.Children {
		d -= c.Duration
	}
	if d < 0 {
		return 0
	}
	return d
}

// Walk visits inv and its descendants depth first. Returning false from fn
// skips the children of the visited invocation.
func (inv *Invocation) Walk(fn func(*Invocation) bool) {
	if !fn(inv) {
		return
	}
	for _, c := range inv.Children {
		c.Walk(fn)
	}
}

// Count returns the number of invocations in the tree below and including inv.
func (inv *Invocation) Count() int {
	n := 0
	inv.Walk(func(*Invocation) bool {
		n++
		return true
	})
	return n
}

// Contains reports whether other is inv or one of its descendants.
func (inv *Invocation) Contains(other *Invocation) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == inv {
			return true
		}
	}
	return false
}

// ErrEmptyTree is returned when no invocations are given.
var ErrEmptyTree = errors.New("empty invocation tree")

// CommonAncestor returns the deepest invocation containing all of calls.
// The invocations must belong to one linked tree.
func CommonAncestor(calls []*Invocation) (*Invocation, error) {
	if len(calls) == 0 {
		return nil, ErrEmptyTree
	}
	common := calls[0]
	for _, c := range calls[1:] {
		for common != nil && !common.Contains(c) {
			common = common.parent
		}
		if common == nil {
			return nil, fmt.Errorf("invocations %s and %s are not in the same tree", calls[0].ID, c.ID)
		}
	}
	return common, nil
}

// Ref is a flat reference to an invocation, safe to serialise.
type Ref struct {
	ID        string  `json:"id"`
	Method    string  `json:"method"`
	Duration  float64 `json:"duration"`
	Exclusive float64 `json:"exclusive"`
}

// Ref returns a flat reference to inv.
func (inv *Invocation) Ref() Ref {
	return Ref{
		ID:        inv.ID,
		Method:    inv.Method,
		Duration:  inv.Duration,
		Exclusive: inv.ExclusiveDuration(),
	}
}
