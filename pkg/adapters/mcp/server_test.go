package mcp

import (
	"context"
	"os"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rootcause"
	"github.com/aretw0/rootcause/pkg/diagnosis"
	"github.com/aretw0/rootcause/pkg/trace"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	eng, err := rootcause.New(diagnosis.Rules(), diagnosis.Collector(),
		rootcause.WithWorkers(1),
		rootcause.WithDefaultVariables(diagnosis.DefaultVariables()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close(context.Background()) })
	return NewServer(eng, nil)
}

func readTrace(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../trace/testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func TestHandleDiagnose(t *testing.T) {
	s := newServer(t)

	report, err := s.handleDiagnose(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{
		"trace": readTrace(t, "checkout.yaml"),
	})
	require.NoError(t, err)
	assert.Equal(t, "checkout", report.TraceID)
	require.Len(t, report.Occurrences, 1)
	assert.Equal(t, diagnosis.CauseIterative, report.Occurrences[0].CauseStructure.Type)
}

func TestHandleDiagnose_Variables(t *testing.T) {
	s := newServer(t)
	args := map[string]interface{}{"trace": readTrace(t, "small.json")}

	report, err := s.handleDiagnose(context.Background(), mcp.CallToolRequest{}, args)
	require.NoError(t, err)
	assert.Empty(t, report.Occurrences)

	args["variables"] = `{"baseline": 100}`
	report, err = s.handleDiagnose(context.Background(), mcp.CallToolRequest{}, args)
	require.NoError(t, err)
	assert.Len(t, report.Occurrences, 2)
}

func TestHandleDiagnose_Rejects(t *testing.T) {
	s := newServer(t)

	_, err := s.handleDiagnose(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{})
	assert.ErrorContains(t, err, "invalid trace")

	_, err = s.handleDiagnose(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{
		"trace":     `{"method":"A.b","duration":10}`,
		"variables": "[1,2]",
	})
	assert.ErrorContains(t, err, "invalid variables")
}

func TestDecodeTrace(t *testing.T) {
	root, err := decodeTrace(`  {"method":"A.b","duration":10}`)
	require.NoError(t, err)
	assert.Equal(t, "A.b", root.Method)

	root, err = decodeTrace("method: A.b\nduration: 10\nchildren:\n  - method: C.d\n    duration: 4\n")
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "0.0", root.Children[0].ID)

	_, err = decodeTrace("")
	assert.ErrorIs(t, err, trace.ErrEmptyTree)
}
