package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/aretw0/rootcause/pkg/domain"
)

// Expression variables:
//
//	tags  map of tag type to tag value of the input
//	vars  session variables
//	facts values computed by the rule's Facts function
var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

func exprEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		dyn := cel.MapType(cel.StringType, cel.DynType)
		env, envErr = cel.NewEnv(
			cel.Variable("tags", dyn),
			cel.Variable("vars", dyn),
			cel.Variable("facts", dyn),
		)
	})
	return env, envErr
}

// compileExpr compiles a condition expression.
func compileExpr(expression string) (cel.Program, error) {
	e, err := exprEnv()
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}

	ast, issues := e.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := e.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// evalExpr runs a compiled condition. Non-boolean results count as false.
func evalExpr(prog cel.Program, tags, vars, facts map[string]any) (bool, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	if facts == nil {
		facts = map[string]any{}
	}
	out, _, err := prog.Eval(map[string]any{
		"tags":  tags,
		"vars":  vars,
		"facts": facts,
	})
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}

func exprCondition(name, hint, expression string, prog cel.Program, facts FactsFunc) condition {
	return condition{
		name: name,
		hint: hint,
		expr: expression,
		check: func(in domain.RuleInput, vars domain.SessionVariables) (bool, error) {
			var f map[string]any
			if facts != nil {
				f = facts(in, vars)
			}
			return evalExpr(prog, in.Values(), map[string]any(vars), f)
		},
	}
}
