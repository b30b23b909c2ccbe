package registry_test

import (
	"testing"

	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/registry"
	"github.com/aretw0/rootcause/pkg/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRule(name string) rule.Rule {
	return rule.New(name).
		Requires(domain.RootTagType).
		Produces("Out").
		Do(func(in domain.RuleInput, _ domain.SessionVariables) (any, error) { return name, nil }).
		MustBuild()
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(newRule("b"), newRule("a")))

	rules := reg.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "b", rules[0].Name())
	assert.Equal(t, "a", rules[1].Name())

	r, ok := reg.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "a", r.Name())

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(newRule("a")))
	assert.Error(t, reg.Register(newRule("a")))
	assert.Equal(t, 1, reg.Len())
	assert.Panics(t, func() { reg.MustRegister(newRule("a")) })
}
