package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rootcause/pkg/trace"
)

const batchTrace = `{
  "method": "Batch.run",
  "duration": 900,
  "children": [
    {"method": "Repo.save", "sql": "INSERT INTO jobs VALUES (?)", "duration": 400},
    {"method": "Repo.save", "sql": "INSERT INTO jobs VALUES (?)", "duration": 420}
  ]
}`

func TestLibrary_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch.json"), []byte(batchTrace), 0644))

	lib, err := Open(dir)
	require.NoError(t, err)

	root, err := lib.Load(context.Background(), "batch")
	require.NoError(t, err)
	assert.Equal(t, "batch", root.ID)
	assert.Equal(t, "Batch.run", root.Method)
	assert.Equal(t, 900.0, root.Duration)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "batch.1", root.Children[1].ID)
	assert.Equal(t, trace.SourceSQL, root.Children[1].Source())
	assert.Same(t, root, root.Children[0].Parent())
}

func TestLibrary_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"duration": 5}`), 0644))

	lib, err := Open(dir)
	require.NoError(t, err)

	_, err = lib.Load(context.Background(), "missing")
	assert.Error(t, err)

	_, err = lib.Load(context.Background(), "empty")
	assert.ErrorIs(t, err, trace.ErrEmptyTree)
}

func TestTrimExtension(t *testing.T) {
	assert.Equal(t, "traces/checkout", trimExtension("traces/checkout.json"))
	assert.Equal(t, "checkout", trimExtension("checkout"))
}
