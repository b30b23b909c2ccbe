package rule

import (
	"errors"
	"fmt"

	"github.com/aretw0/rootcause/pkg/domain"
)

// ConditionFunc decides whether an input may be acted upon.
type ConditionFunc func(in domain.RuleInput, vars domain.SessionVariables) bool

// ActionFunc derives a single value. A nil value produces no tag.
type ActionFunc func(in domain.RuleInput, vars domain.SessionVariables) (any, error)

// MultiActionFunc derives any number of values, one tag each.
type MultiActionFunc func(in domain.RuleInput, vars domain.SessionVariables) ([]any, error)

// FactsFunc computes the `facts` visible to expression conditions.
type FactsFunc func(in domain.RuleInput, vars domain.SessionVariables) map[string]any

type condition struct {
	name  string
	hint  string
	expr  string
	check func(in domain.RuleInput, vars domain.SessionVariables) (bool, error)
}

type variable struct {
	name     string
	optional bool
}

// Definition is an immutable, validated rule.
type Definition struct {
	name        string
	description string
	fire        FireCondition
	resultType  string
	variables   []variable
	conditions  []condition
	action      MultiActionFunc
}

var _ Rule = (*Definition)(nil)

// Name returns the unique rule name.
func (d *Definition) Name() string { return d.name }

// Description returns the human readable description.
func (d *Definition) Description() string { return d.description }

// FireCondition returns the tag types the rule needs.
func (d *Definition) FireCondition() FireCondition { return d.fire }

// ResultType returns the type of the tags the rule produces.
func (d *Definition) ResultType() string { return d.resultType }

// Conditions returns the names of the rule's conditions in evaluation order.
func (d *Definition) Conditions() []string {
	names := make([]string, len(d.conditions))
	for i, c := range d.conditions {
		names[i] = c.name
	}
	return names
}

// Execute runs the rule against one input.
// Every condition is evaluated; if any rejects the input the output carries
// the failures and no tags, otherwise the action runs.
func (d *Definition) Execute(in domain.RuleInput, vars domain.SessionVariables) (domain.RuleOutput, error) {
	for _, v := range d.variables {
		if _, ok := vars.Lookup(v.name); !ok && !v.optional {
			return domain.RuleOutput{}, &domain.RuleExecutionError{
				RuleName: d.name,
				Err:      fmt.Errorf("%w: %s", domain.ErrMissingVariable, v.name),
			}
		}
	}

	var failures []domain.ConditionFailure
	for _, c := range d.conditions {
		ok, err := c.check(in, vars)
		if err != nil {
			return domain.RuleOutput{}, &domain.RuleExecutionError{
				RuleName: d.name,
				Err:      fmt.Errorf("condition %q: %w", c.name, err),
			}
		}
		if !ok {
			failures = append(failures, domain.ConditionFailure{
				RuleName:      d.name,
				ConditionName: c.name,
				Hint:          c.hint,
			})
		}
	}

	out := domain.RuleOutput{
		RuleName:   d.name,
		ResultType: d.resultType,
	}
	if len(failures) > 0 {
		out.ConditionFailures = failures
		return out, nil
	}

	values, err := d.action(in, vars)
	if err != nil {
		return domain.RuleOutput{}, &domain.RuleExecutionError{RuleName: d.name, Err: err}
	}
	for _, v := range values {
		if v == nil {
			continue
		}
		out.Tags = append(out.Tags, in.Derive(d.resultType, v))
	}
	return out, nil
}

// Builder assembles a Definition.
type Builder struct {
	name        string
	description string
	required    []string
	resultType  string
	variables   []variable
	conditions  []condition
	exprs       []exprSpec
	facts       FactsFunc
	action      MultiActionFunc
	errs        []error
}

type exprSpec struct {
	index      int
	name, hint string
	expression string
}

// New starts the definition of a rule.
func New(name string) *Builder {
	return &Builder{name: name, description: "EMPTY"}
}

// Describe sets the description.
func (b *Builder) Describe(description string) *Builder {
	b.description = description
	return b
}

// Requires adds tag types to the fire condition.
func (b *Builder) Requires(types ...string) *Builder {
	b.required = append(b.required, types...)
	return b
}

// Produces sets the type of the tags the action derives.
func (b *Builder) Produces(tagType string) *Builder {
	b.resultType = tagType
	return b
}

// Variable declares a session variable the rule reads.
// Executing without a required variable fails the rule.
func (b *Builder) Variable(name string, optional bool) *Builder {
	b.variables = append(b.variables, variable{name: name, optional: optional})
	return b
}

// When adds a condition.
func (b *Builder) When(name, hint string, fn ConditionFunc) *Builder {
	if fn == nil {
		b.errs = append(b.errs, fmt.Errorf("condition %q has no function", name))
		return b
	}
	b.conditions = append(b.conditions, condition{
		name: name,
		hint: hint,
		check: func(in domain.RuleInput, vars domain.SessionVariables) (bool, error) {
			return fn(in, vars), nil
		},
	})
	return b
}

// WhenExpr adds a condition written as a CEL expression over tags, vars and facts.
func (b *Builder) WhenExpr(name, hint, expression string) *Builder {
	b.exprs = append(b.exprs, exprSpec{index: len(b.conditions), name: name, hint: hint, expression: expression})
	b.conditions = append(b.conditions, condition{name: name})
	return b
}

// Facts sets the function computing the facts of expression conditions.
func (b *Builder) Facts(fn FactsFunc) *Builder {
	b.facts = fn
	return b
}

// Do sets an action deriving at most one value.
func (b *Builder) Do(fn ActionFunc) *Builder {
	if fn == nil {
		b.action = nil
		return b
	}
	b.action = func(in domain.RuleInput, vars domain.SessionVariables) ([]any, error) {
		v, err := fn(in, vars)
		if err != nil || v == nil {
			return nil, err
		}
		return []any{v}, nil
	}
	return b
}

// DoMany sets an action deriving several values.
func (b *Builder) DoMany(fn MultiActionFunc) *Builder {
	b.action = fn
	return b
}

// Build validates and returns the definition.
func (b *Builder) Build() (*Definition, error) {
	errs := append([]error(nil), b.errs...)
	if b.name == "" {
		errs = append(errs, errors.New("rule name is required"))
	}
	if len(b.required) == 0 {
		errs = append(errs, errors.New("at least one required tag type is needed, otherwise the rule never fires"))
	}
	if b.resultType == "" {
		errs = append(errs, errors.New("result tag type is required"))
	}
	if b.action == nil {
		errs = append(errs, errors.New("an action is required"))
	}

	conditions := append([]condition(nil), b.conditions...)
	for _, spec := range b.exprs {
		prog, err := compileExpr(spec.expression)
		if err != nil {
			errs = append(errs, fmt.Errorf("condition %q: %w", spec.name, err))
			continue
		}
		conditions[spec.index] = exprCondition(spec.name, spec.hint, spec.expression, prog, b.facts)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid rule %q: %w", b.name, err)
	}

	return &Definition{
		name:        b.name,
		description: b.description,
		fire:        NewFireCondition(b.required...),
		resultType:  b.resultType,
		variables:   append([]variable(nil), b.variables...),
		conditions:  conditions,
		action:      b.action,
	}, nil
}

// MustBuild is like Build but panics on error. Intended for package-level rule sets.
func (b *Builder) MustBuild() *Definition {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
