package session

import (
	"context"
	"fmt"

	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/ports"
	"github.com/aretw0/rootcause/pkg/rule"
)

// findNextRules returns, in rule set order, the rules whose fire condition
// holds for the available tag types.
func findNextRules(available map[string]struct{}, rules []rule.Rule) []rule.Rule {
	var next []rule.Rule
	for _, r := range rules {
		if r.FireCondition().CanFire(available) {
			next = append(next, r)
		}
	}
	return next
}

// filterProcessedInputs drops the inputs the rule already executed on.
func filterProcessedInputs(executions ledger, r rule.Rule, inputs []domain.RuleInput) []domain.RuleInput {
	if len(inputs) == 0 {
		return nil
	}
	filtered := make([]domain.RuleInput, 0, len(inputs))
	for _, in := range inputs {
		if !executions.contains(r.Name(), in) {
			filtered = append(filtered, in)
		}
	}
	return filtered
}

// collectInputs builds one RuleInput per stored tag of a required type whose
// ancestor chain holds every other required type.
//
// A candidate missing types is expected when those types are derived below
// its own type (it is an ancestor of the real inputs) and is dropped quietly.
// Otherwise the tag hierarchy cannot satisfy the rule and the malformed input
// policy applies.
func (s *Session[I, R]) collectInputs(ctx context.Context, r rule.Rule) ([]domain.RuleInput, error) {
	fc := r.FireCondition()
	required := fc.TagTypes()
	storage := s.ctx.storage
	outputs := storage.FindLatestResultsByTagType(required)

	var below lineage
	seen := make(map[string]struct{})
	var inputs []domain.RuleInput
	for _, out := range outputs {
		for _, tag := range out.Tags {
			if !fc.Contains(tag.Type) {
				continue
			}
			unwrapped := storage.Unwrap(tag.ID, required)
			missing := fc.Missing(unwrapped)
			if len(missing) == 0 && len(unwrapped) == fc.Len() {
				in := domain.NewRuleInput(tag, unwrapped)
				if _, dup := seen[in.Key()]; !dup {
					seen[in.Key()] = struct{}{}
					inputs = append(inputs, in)
				}
				continue
			}

			if below == nil {
				below = buildLineage(storage, outputs, required)
			}
			if below.derivesAll(tag.Type, missing) {
				s.logger.Debug("Candidate is an ancestor of rule inputs",
					"session_id", s.id,
					"rule", r.Name(),
					"tag_id", tag.ID,
					"tag_type", tag.Type,
				)
				continue
			}
			if err := s.malformed(ctx, r, tag, missing); err != nil {
				return nil, err
			}
		}
	}
	return inputs, nil
}

func (s *Session[I, R]) malformed(ctx context.Context, r rule.Rule, tag domain.Tag, missing []string) error {
	if s.policy == FailFast {
		return fmt.Errorf("%w: rule %q, tag %d of type %q has no ancestor of type %v",
			domain.ErrMalformedInput, r.Name(), tag.ID, tag.Type, missing)
	}

	s.logger.Warn("Skipping malformed rule input",
		"session_id", s.id,
		"rule", r.Name(),
		"tag_id", tag.ID,
		"tag_type", tag.Type,
		"missing", missing,
	)
	if s.hooks.OnInputSkipped != nil {
		s.hooks.OnInputSkipped(ctx, &domain.InputEvent{
			EventBase: s.event(domain.EventInputSkipped),
			RuleName:  r.Name(),
			TagID:     tag.ID,
			TagType:   tag.Type,
			Missing:   missing,
		})
	}
	return nil
}

// lineage records, for the required types of a rule, which type was observed
// as an ancestor of which: lineage[upper][lower].
type lineage map[string]map[string]struct{}

func buildLineage(storage ports.OutputStorage, outputs []domain.RuleOutput, required []string) lineage {
	l := make(lineage)
	for _, out := range outputs {
		for _, tag := range out.Tags {
			chain := storage.Unwrap(tag.ID, required)
			if len(chain) < 2 {
				continue
			}
			for _, anc := range chain[1:] {
				lower, ok := l[anc.Type]
				if !ok {
					lower = make(map[string]struct{})
					l[anc.Type] = lower
				}
				lower[tag.Type] = struct{}{}
			}
		}
	}
	return l
}

// derivesAll reports whether every missing type was observed below upper.
func (l lineage) derivesAll(upper string, missing []string) bool {
	for _, m := range missing {
		if _, ok := l[upper][m]; !ok {
			return false
		}
	}
	return true
}
