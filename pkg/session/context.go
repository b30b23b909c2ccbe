package session

import (
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/ports"
	"github.com/aretw0/rootcause/pkg/rule"
)

// ledger records the inputs each rule already executed on, keyed by rule name
// and RuleInput key.
type ledger map[string]map[string]domain.RuleInput

func (l ledger) contains(ruleName string, in domain.RuleInput) bool {
	_, ok := l[ruleName][in.Key()]
	return ok
}

func (l ledger) add(ruleName string, in domain.RuleInput) {
	byKey, ok := l[ruleName]
	if !ok {
		byKey = make(map[string]domain.RuleInput)
		l[ruleName] = byKey
	}
	byKey[in.Key()] = in
}

// Context is the private working set of one session run.
// It is handed to result collectors, which must not keep it: it is cleared
// as soon as the session is passivated.
type Context[I any] struct {
	input      I
	rules      []rule.Rule
	storage    ports.OutputStorage
	variables  domain.SessionVariables
	executions ledger
}

func newContext[I any](storage ports.OutputStorage, backup []rule.Rule) *Context[I] {
	c := &Context[I]{storage: storage}
	c.reset(backup)
	return c
}

func (c *Context[I]) activate(input I, vars domain.SessionVariables, backup []rule.Rule) {
	c.input = input
	c.rules = append([]rule.Rule(nil), backup...)
	c.variables = vars.Clone()
}

func (c *Context[I]) reset(backup []rule.Rule) {
	var zero I
	c.input = zero
	c.storage.Clear()
	c.executions = make(ledger)
	c.variables = domain.SessionVariables{}
	c.rules = append([]rule.Rule(nil), backup...)
}

// Input returns the raw input of the run.
func (c *Context[I]) Input() I { return c.input }

// Storage returns the rule output storage.
func (c *Context[I]) Storage() ports.OutputStorage { return c.storage }

// Variables returns the session variables.
func (c *Context[I]) Variables() domain.SessionVariables { return c.variables }

// Rules returns the rule set of the session.
func (c *Context[I]) Rules() []rule.Rule {
	return append([]rule.Rule(nil), c.rules...)
}

// Executed reports whether the rule already ran on the input.
func (c *Context[I]) Executed(ruleName string, in domain.RuleInput) bool {
	return c.executions.contains(ruleName, in)
}

// Executions returns the inputs each rule executed on.
func (c *Context[I]) Executions() map[string][]domain.RuleInput {
	out := make(map[string][]domain.RuleInput, len(c.executions))
	for name, byKey := range c.executions {
		inputs := make([]domain.RuleInput, 0, len(byKey))
		for _, in := range byKey {
			inputs = append(inputs, in)
		}
		out[name] = inputs
	}
	return out
}

// ExecutionCount returns the number of (rule, input) pairs executed.
func (c *Context[I]) ExecutionCount() int {
	n := 0
	for _, byKey := range c.executions {
		n += len(byKey)
	}
	return n
}
