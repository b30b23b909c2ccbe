package diagnosis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/registry"
	"github.com/aretw0/rootcause/pkg/rule"
	"github.com/aretw0/rootcause/pkg/trace"
)

// Registry returns a registry holding the diagnosis rules.
func Registry() *registry.Registry {
	reg := registry.NewRegistry()
	reg.MustRegister(
		GlobalContextRule(),
		TimeWastingOperationsRule(),
		ProblemContextRule(),
		RootCauseRule(),
		CauseStructureRule(),
	)
	return reg
}

// Rules returns the diagnosis rules in derivation order.
func Rules() []rule.Rule {
	return Registry().Rules()
}

// GlobalContextRule finds the deepest invocation holding at least
// global_context_share of the trace duration. Traces shorter than the
// baseline are not diagnosed.
func GlobalContextRule() rule.Rule {
	return rule.New("GlobalContextRule").
		Describe("Deepest invocation holding most of the trace duration").
		Requires(domain.RootTagType).
		Produces(TagGlobalContext).
		Facts(func(in domain.RuleInput, vars domain.SessionVariables) map[string]any {
			facts := map[string]any{"duration": 0.0, "baseline": DefaultThresholds().Baseline}
			if root, err := asInvocation(in.Value(domain.RootTagType)); err == nil {
				facts["duration"] = root.Duration
			}
			if t, err := thresholds(vars); err == nil {
				facts["baseline"] = t.Baseline
			}
			return facts
		}).
		WhenExpr("exceeds-baseline", "trace is faster than the baseline", "facts.duration > facts.baseline").
		Do(func(in domain.RuleInput, vars domain.SessionVariables) (any, error) {
			root, err := asInvocation(in.Value(domain.RootTagType))
			if err != nil {
				return nil, err
			}
			t, err := thresholds(vars)
			if err != nil {
				return nil, err
			}
			return globalContext(root, t.GlobalContextShare), nil
		}).
		MustBuild()
}

func globalContext(root *trace.Invocation, share float64) *trace.Invocation {
	limit := share * root.Duration
	cur := root
	for {
		var next *trace.Invocation
		for _, c := range cur.Children {
			if next == nil || c.Duration > next.Duration {
				next = c
			}
		}
		if next == nil || next.Duration < limit {
			return cur
		}
		cur = next
	}
}

// TimeWastingOperationsRule groups the invocations of the global context by
// signature and keeps the groups with the highest exclusive time until they
// cover time_wasting_share of the global context. It derives one tag per
// operation.
func TimeWastingOperationsRule() rule.Rule {
	return rule.New("TimeWastingOperationsRule").
		Describe("Signatures covering most of the global context's time").
		Requires(TagGlobalContext).
		Produces(TagTimeWastingOperations).
		When("has-duration", "global context took no time", func(in domain.RuleInput, _ domain.SessionVariables) bool {
			gc, err := asInvocation(in.Value(TagGlobalContext))
			return err == nil && gc.Duration > 0
		}).
		DoMany(func(in domain.RuleInput, vars domain.SessionVariables) ([]any, error) {
			gc, err := asInvocation(in.Value(TagGlobalContext))
			if err != nil {
				return nil, err
			}
			t, err := thresholds(vars)
			if err != nil {
				return nil, err
			}
			ops := timeWastingOperations(gc, t.TimeWastingShare)
			out := make([]any, len(ops))
			for i, op := range ops {
				out[i] = op
			}
			return out, nil
		}).
		MustBuild()
}

func timeWastingOperations(gc *trace.Invocation, share float64) []*Operation {
	bySig := make(map[string]*Operation)
	var order []*Operation
	gc.Walk(func(inv *trace.Invocation) bool {
		sig := inv.Signature()
		op, ok := bySig[sig]
		if !ok {
			op = &Operation{Signature: sig, Source: inv.Source()}
			bySig[sig] = op
			order = append(order, op)
		}
		op.Exclusive += inv.ExclusiveDuration()
		op.Calls = append(op.Calls, inv)
		return true
	})

	sort.SliceStable(order, func(i, j int) bool { return order[i].Exclusive > order[j].Exclusive })

	limit := share * gc.Duration
	covered := 0.0
	var ops []*Operation
	for _, op := range order {
		if covered >= limit || op.Exclusive <= 0 {
			break
		}
		ops = append(ops, op)
		covered += op.Exclusive
	}
	return ops
}

// ProblemContextRule finds, for one time wasting operation, the deepest
// invocation below the global context whose subtree holds at least
// problem_context_share of the operation's exclusive time.
func ProblemContextRule() rule.Rule {
	return rule.New("ProblemContextRule").
		Describe("Deepest invocation subsuming one time wasting operation").
		Requires(TagGlobalContext, TagTimeWastingOperations).
		Produces(TagProblemContext).
		Do(func(in domain.RuleInput, vars domain.SessionVariables) (any, error) {
			gc, err := asInvocation(in.Value(TagGlobalContext))
			if err != nil {
				return nil, err
			}
			op, ok := in.Value(TagTimeWastingOperations).(*Operation)
			if !ok || op == nil {
				return nil, fmt.Errorf("expected *Operation, got %T", in.Value(TagTimeWastingOperations))
			}
			if len(op.Calls) == 0 {
				return nil, errors.New("time wasting operation has no calls")
			}
			t, err := thresholds(vars)
			if err != nil {
				return nil, err
			}
			return problemContext(gc, op, t.ProblemContextShare), nil
		}).
		MustBuild()
}

func problemContext(gc *trace.Invocation, op *Operation, share float64) *ProblemContext {
	contained := make(map[*trace.Invocation]float64)
	isCall := make(map[*trace.Invocation]bool, len(op.Calls))
	for _, call := range op.Calls {
		isCall[call] = true
		excl := call.ExclusiveDuration()
		for cur := call; cur != nil; cur = cur.Parent() {
			contained[cur] += excl
			if cur == gc {
				break
			}
		}
	}

	limit := share * op.Exclusive
	cur := gc
	for {
		var next *trace.Invocation
		for _, c := range cur.Children {
			if next == nil || contained[c] > contained[next] {
				next = c
			}
		}
		if next == nil || contained[next] == 0 || contained[next] < limit {
			break
		}
		cur = next
	}
	// A lone call is reported within its caller.
	if isCall[cur] && cur != gc && cur.Parent() != nil {
		cur = cur.Parent()
	}

	pc := &ProblemContext{Context: cur, Operation: op}
	for _, call := range op.Calls {
		if cur.Contains(call) {
			pc.Calls = append(pc.Calls, call)
			pc.Exclusive += call.ExclusiveDuration()
		}
	}
	return pc
}

// RootCauseRule keeps the calls of the problem context with the highest
// exclusive time until they cover root_cause_share of it.
func RootCauseRule() rule.Rule {
	return rule.New("RootCauseRule").
		Describe("Calls of the operation responsible for the problem").
		Requires(TagProblemContext).
		Produces(TagRootCause).
		Do(func(in domain.RuleInput, vars domain.SessionVariables) (any, error) {
			pc, ok := in.Value(TagProblemContext).(*ProblemContext)
			if !ok || pc == nil {
				return nil, fmt.Errorf("expected *ProblemContext, got %T", in.Value(TagProblemContext))
			}
			if len(pc.Calls) == 0 {
				return nil, nil
			}
			t, err := thresholds(vars)
			if err != nil {
				return nil, err
			}
			return rootCause(pc, t.RootCauseShare), nil
		}).
		MustBuild()
}

func rootCause(pc *ProblemContext, share float64) *RootCause {
	calls := append([]*trace.Invocation(nil), pc.Calls...)
	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].ExclusiveDuration() > calls[j].ExclusiveDuration()
	})

	rc := &RootCause{Signature: pc.Operation.Signature, Source: pc.Operation.Source}
	limit := share * pc.Exclusive
	for _, call := range calls {
		rc.Calls = append(rc.Calls, call)
		rc.Exclusive += call.ExclusiveDuration()
		if rc.Exclusive >= limit {
			break
		}
	}
	return rc
}

// CauseStructureRule classifies the root cause calls as a single call, a
// loop of sibling calls or a recursion.
func CauseStructureRule() rule.Rule {
	return rule.New("CauseStructureRule").
		Describe("Shape of the root cause").
		Requires(TagRootCause).
		Produces(TagCauseStructure).
		Do(func(in domain.RuleInput, _ domain.SessionVariables) (any, error) {
			rc, ok := in.Value(TagRootCause).(*RootCause)
			if !ok || rc == nil {
				return nil, fmt.Errorf("expected *RootCause, got %T", in.Value(TagRootCause))
			}
			if len(rc.Calls) == 0 {
				return nil, errors.New("root cause has no calls")
			}
			return causeStructure(rc), nil
		}).
		MustBuild()
}

func causeStructure(rc *RootCause) *CauseStructure {
	cs := &CauseStructure{Type: CauseSingle, Source: rc.Source, Calls: len(rc.Calls)}
	if len(rc.Calls) == 1 {
		return cs
	}

	cs.Type = CauseIterative
	depth := 0
	for _, call := range rc.Calls {
		// Count the root cause calls on the chain above this one.
		d := 0
		for cur := call.Parent(); cur != nil; cur = cur.Parent() {
			for _, other := range rc.Calls {
				if other == cur {
					d++
					break
				}
			}
		}
		if d > depth {
			depth = d
		}
	}
	if depth > 0 {
		cs.Type = CauseRecursive
		cs.Depth = depth + 1
	}
	return cs
}
