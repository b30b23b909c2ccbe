package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunResultStoreContract runs a suite of tests to verify that a ResultStore implementation
// adheres to the defined interface contract.
func RunResultStoreContract(t *testing.T, store ResultStore) {
	ctx := context.Background()
	recordID := "contract-test-result-" + time.Now().Format("20060102150405")

	newRecord := func(id string) *domain.Record {
		return &domain.Record{
			ID:        id,
			CreatedAt: time.Now().UTC().Truncate(time.Second),
			Source:    "contract",
			Result:    json.RawMessage(`{"occurrences":1}`),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		rec := newRecord(recordID)

		err := store.Save(ctx, rec)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, recordID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.ID, loaded.ID)
		assert.Equal(t, rec.Source, loaded.Source)
		assert.True(t, rec.CreatedAt.Equal(loaded.CreatedAt))
		assert.JSONEq(t, string(rec.Result), string(loaded.Result))
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, recordID)
		require.NoError(t, err)
		loaded.Source = "mutated"

		again, err := store.Load(ctx, recordID)
		require.NoError(t, err)
		assert.Equal(t, "contract", again.Source)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+recordID)
		assert.ErrorIs(t, err, domain.ErrResultNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, newRecord(recordID))
		require.NoError(t, err)

		err = store.Delete(ctx, recordID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, recordID)
		assert.ErrorIs(t, err, domain.ErrResultNotFound, "Load after Delete should return ErrResultNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := recordID + "-1"
		id2 := recordID + "-2"
		_ = store.Save(ctx, newRecord(id1))
		_ = store.Save(ctx, newRecord(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
