package trace_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rootcause/pkg/trace"
)

func TestLoad_YAML(t *testing.T) {
	root, err := trace.Load("testdata/checkout.yaml")
	require.NoError(t, err)

	assert.Equal(t, "checkout", root.ID)
	assert.Nil(t, root.Parent())
	assert.Equal(t, 16, root.Count())
	assert.InDelta(t, 50, root.ExclusiveDuration(), 1e-9)

	place := root.Children[0].Children[1]
	assert.Equal(t, "OrderService.place", place.Method)
	assert.Equal(t, "checkout.0.1", place.ID)
	assert.Equal(t, 2, place.Depth())
	assert.InDelta(t, 100, place.ExclusiveDuration(), 1e-9)

	query := place.Children[3]
	assert.Equal(t, trace.SourceSQL, query.Source())
	assert.Equal(t, "SELECT * FROM items WHERE id = ?", query.Signature())
	assert.Same(t, place, query.Parent())
	assert.True(t, root.Contains(query))
	assert.False(t, query.Contains(root))
}

func TestLoad_JSON(t *testing.T) {
	root, err := trace.Load("testdata/small.json")
	require.NoError(t, err)

	assert.Equal(t, "0", root.ID)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "0.1", root.Children[1].ID)
	assert.Equal(t, trace.SourceException, root.Children[1].Source())
	assert.Equal(t, trace.SourceTimer, root.Source())
	assert.InDelta(t, 10, root.ExclusiveDuration(), 1e-9)
}

func TestDecode_Errors(t *testing.T) {
	cases := map[string]struct {
		format trace.Format
		body   string
	}{
		"empty yaml":        {trace.FormatYAML, ""},
		"empty object":      {trace.FormatJSON, "{}"},
		"negative duration": {trace.FormatYAML, "method: a\nduration: -1\n"},
		"duplicate ids":     {trace.FormatYAML, "id: x\nmethod: a\nchildren:\n  - id: x\n    method: b\n"},
		"bad json":          {trace.FormatJSON, "{"},
		"unknown format":    {trace.Format("xml"), "<a/>"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := trace.Decode(strings.NewReader(tc.body), tc.format)
			assert.Error(t, err)
		})
	}
}

func TestCommonAncestor(t *testing.T) {
	root, err := trace.Load("testdata/checkout.yaml")
	require.NoError(t, err)
	checkout := root.Children[0]
	place := checkout.Children[1]

	common, err := trace.CommonAncestor([]*trace.Invocation{place.Children[0], place.Children[9]})
	require.NoError(t, err)
	assert.Same(t, place, common)

	common, err = trace.CommonAncestor([]*trace.Invocation{place.Children[0], checkout.Children[0]})
	require.NoError(t, err)
	assert.Same(t, checkout, common)

	common, err = trace.CommonAncestor([]*trace.Invocation{place})
	require.NoError(t, err)
	assert.Same(t, place, common)

	_, err = trace.CommonAncestor(nil)
	assert.ErrorIs(t, err, trace.ErrEmptyTree)

	other := &trace.Invocation{Method: "x"}
	require.NoError(t, other.Link())
	_, err = trace.CommonAncestor([]*trace.Invocation{place, other})
	assert.Error(t, err)
}

func TestExclusiveDurationNeverNegative(t *testing.T) {
	inv := &trace.Invocation{
		Method:   "skewed",
		Duration: 10,
		Children: []*trace.Invocation{{Method: "child", Duration: 15}},
	}
	require.NoError(t, inv.Link())
	assert.Zero(t, inv.ExclusiveDuration())
	assert.Equal(t, trace.Ref{ID: "0", Method: "skewed", Duration: 10}, inv.Ref())
}
