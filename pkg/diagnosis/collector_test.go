package diagnosis_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rootcause/pkg/diagnosis"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/session"
	"github.com/aretw0/rootcause/pkg/trace"
)

func diagnose(t *testing.T, path string, vars domain.SessionVariables) *diagnosis.Report {
	t.Helper()
	root, err := trace.Load(path)
	require.NoError(t, err)

	f, err := session.NewFactory(diagnosis.Rules(), diagnosis.Collector())
	require.NoError(t, err)

	ctx := context.Background()
	s := f.Create(ctx)
	t.Cleanup(func() { s.Destroy(ctx) })
	require.NoError(t, s.Activate(ctx, root, diagnosis.DefaultVariables().Merge(vars)))
	report, err := s.Call(ctx)
	require.NoError(t, err)
	return report
}

func TestDiagnose_IterativeQuery(t *testing.T) {
	report := diagnose(t, "../trace/testdata/checkout.yaml", nil)

	assert.Equal(t, "checkout", report.TraceID)
	assert.Equal(t, 2000.0, report.Duration)
	require.Len(t, report.Occurrences, 1)

	occ := report.Occurrences[0]
	assert.Equal(t, "checkout", occ.TraceID)
	assert.Equal(t, "OrderService.place", occ.GlobalContext.Method)
	assert.Equal(t, "checkout.0.1", occ.ProblemContext.ID)
	assert.Equal(t, "SELECT * FROM items WHERE id = ?", occ.Operation)
	assert.Len(t, occ.RootCause.Calls, 8)
	assert.InDelta(t, 1200, occ.RootCause.Exclusive, 1e-9)
	assert.Equal(t, diagnosis.CauseIterative, occ.CauseStructure.Type)
	assert.Equal(t, trace.SourceSQL, occ.CauseStructure.Source)
}

func TestDiagnose_BelowBaseline(t *testing.T) {
	report := diagnose(t, "../trace/testdata/small.json", nil)

	assert.NotNil(t, report.Occurrences)
	assert.Empty(t, report.Occurrences)
	require.Len(t, report.ConditionFailures, 1)
	assert.Equal(t, "GlobalContextRule", report.ConditionFailures[0].RuleName)
	assert.Equal(t, "exceeds-baseline", report.ConditionFailures[0].ConditionName)

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"occurrences":[]`)
}

func TestDiagnose_OneOccurrencePerOperation(t *testing.T) {
	report := diagnose(t, "../trace/testdata/small.json", domain.SessionVariables{"baseline": 100})

	require.Len(t, report.Occurrences, 2)
	byOp := make(map[string]diagnosis.ProblemOccurrence)
	for _, occ := range report.Occurrences {
		byOp[occ.Operation] = occ
	}

	sql := byOp["INSERT INTO jobs VALUES (?)"]
	assert.Equal(t, diagnosis.CauseSingle, sql.CauseStructure.Type)
	assert.Equal(t, trace.SourceSQL, sql.CauseStructure.Source)
	assert.Equal(t, "0", sql.ProblemContext.ID)

	exc := byOp["Notifier.send"]
	assert.Equal(t, diagnosis.CauseSingle, exc.CauseStructure.Type)
	assert.Equal(t, trace.SourceException, exc.CauseStructure.Source)
	assert.Equal(t, []string{"0.1"}, exc.RootCause.Calls)
}

func TestRegistry(t *testing.T) {
	reg := diagnosis.Registry()
	assert.Equal(t, 5, reg.Len())

	names := make([]string, 0, reg.Len())
	for _, r := range diagnosis.Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{
		"GlobalContextRule",
		"TimeWastingOperationsRule",
		"ProblemContextRule",
		"RootCauseRule",
		"CauseStructureRule",
	}, names)
}
