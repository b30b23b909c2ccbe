package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rootcause/internal/logging"
	"github.com/aretw0/rootcause/pkg/collector"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/observability"
	"github.com/aretw0/rootcause/pkg/rule"
	"github.com/aretw0/rootcause/pkg/session"
)

func TestMetrics_RecordsSessionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	rules := []rule.Rule{
		rule.New("split").
			Requires(domain.RootTagType).
			Produces("Part").
			DoMany(func(in domain.RuleInput, _ domain.SessionVariables) ([]any, error) {
				if in.Value(domain.RootTagType) == "bad" {
					return nil, errors.New("unsplittable")
				}
				return []any{1, 2}, nil
			}).
			MustBuild(),
		rule.New("count").
			Requires("Part").
			Produces("Count").
			Do(func(domain.RuleInput, domain.SessionVariables) (any, error) { return 1, nil }).
			MustBuild(),
	}
	f, err := session.NewFactory[string, collector.DefaultResult[string]](rules, collector.Default[string](),
		session.WithLifecycleHooks(m.Hooks()))
	require.NoError(t, err)

	ctx := context.Background()
	s := f.Create(ctx)
	require.NoError(t, s.Activate(ctx, "good", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	_, err = s.Call(ctx)
	require.NoError(t, err)
	s.Passivate(ctx)

	require.NoError(t, s.Activate(ctx, "bad", nil))
	_, err = s.Call(ctx)
	require.Error(t, err)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RuleExecutions.WithLabelValues("split")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RuleExecutions.WithLabelValues("count")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RunDuration))
}

func TestNewMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.NoError(t, err)

	m, err := observability.NewMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, m.Hooks().OnRuleExecute)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSON(&buf, slog.LevelDebug)
	hooks := observability.LogHooks(logger)

	hooks.OnRuleExecute(context.Background(), &domain.RuleEvent{
		EventBase: domain.EventBase{SessionID: "s-1"},
		RuleName:  "count",
		Inputs:    2,
	})
	hooks.OnSessionFailed(context.Background(), &domain.SessionEvent{
		EventBase: domain.EventBase{SessionID: "s-1"},
		Err:       errors.New("boom"),
	})

	out := buf.String()
	assert.Contains(t, out, `"msg":"rule_execute"`)
	assert.Contains(t, out, `"rule":"count"`)
	assert.Contains(t, out, `"msg":"session_failed"`)
	assert.Contains(t, out, `"err":"boom"`)
}
