package collector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rootcause/pkg/collector"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/rule"
	"github.com/aretw0/rootcause/pkg/session"
)

func TestDefault_CollectsLeavesAndFailures(t *testing.T) {
	ctx := context.Background()
	rules := []rule.Rule{
		rule.New("length").
			Requires(domain.RootTagType).
			Produces("Length").
			Do(func(in domain.RuleInput, _ domain.SessionVariables) (any, error) {
				return len(in.Value(domain.RootTagType).(string)), nil
			}).
			MustBuild(),
		rule.New("long").
			Requires("Length").
			Produces("Long").
			WhenExpr("over-ten", "input is short", "tags.Length > 10").
			Do(func(domain.RuleInput, domain.SessionVariables) (any, error) { return true, nil }).
			MustBuild(),
	}
	f, err := session.NewFactory[string, collector.DefaultResult[string]](rules, collector.Default[string]())
	require.NoError(t, err)

	s := f.Create(ctx)
	require.NoError(t, s.Activate(ctx, "short", nil))
	res, err := s.Call(ctx)
	require.NoError(t, err)

	assert.Equal(t, "short", res.Input)
	assert.Empty(t, res.Tags("Long"))
	// Length was consumed by "long" even though its condition rejected it.
	assert.Empty(t, res.Tags("Length"))
	require.Len(t, res.ConditionFailures["long"], 1)
	assert.Equal(t, "over-ten", res.ConditionFailures["long"][0].ConditionName)
	assert.Equal(t, "input is short", res.ConditionFailures["long"][0].Hint)

	// The result survives passivation.
	s.Passivate(ctx)
	assert.Len(t, res.ConditionFailures, 1)

	require.NoError(t, s.Activate(ctx, "a much longer input", nil))
	res, err = s.Call(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{true}, res.Values("Long"))
	assert.Empty(t, res.ConditionFailures)
}

func TestEndTags(t *testing.T) {
	ctx := context.Background()
	r := rule.New("echo").
		Requires(domain.RootTagType).
		Produces("Echo").
		Do(func(in domain.RuleInput, _ domain.SessionVariables) (any, error) {
			return in.Value(domain.RootTagType), nil
		}).
		MustBuild()
	f, err := session.NewFactory[int, map[string][]domain.Tag]([]rule.Rule{r}, collector.EndTags[int]())
	require.NoError(t, err)

	s := f.Create(ctx)
	require.NoError(t, s.Activate(ctx, 42, nil))
	leaves, err := s.Call(ctx)
	require.NoError(t, err)
	require.Len(t, leaves["Echo"], 1)
	assert.Equal(t, 42, leaves["Echo"][0].Value)
	assert.NotContains(t, leaves, domain.RootTagType)
}
