package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rootcause/pkg/adapters/memory"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/persistence/middleware"
)

func TestRedactMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewRedactMiddleware([]string{"^operation$", "signature"})
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	original := json.RawMessage(`{
		"trace_id": "checkout",
		"occurrences": [
			{"operation": "SELECT * FROM users WHERE ssn = '123'", "root_cause": {"signature": "SELECT", "calls": ["0.1"]}}
		]
	}`)
	rec := &domain.Record{ID: "r1", Result: original}
	require.NoError(t, store.Save(ctx, rec))

	// The caller's record is not modified.
	assert.Equal(t, string(original), string(rec.Result))

	stored, err := underlying.Load(ctx, "r1")
	require.NoError(t, err)
	var doc struct {
		TraceID     string `json:"trace_id"`
		Occurrences []struct {
			Operation string `json:"operation"`
			RootCause struct {
				Signature string   `json:"signature"`
				Calls     []string `json:"calls"`
			} `json:"root_cause"`
		} `json:"occurrences"`
	}
	require.NoError(t, json.Unmarshal(stored.Result, &doc))
	assert.Equal(t, "checkout", doc.TraceID)
	require.Len(t, doc.Occurrences, 1)
	assert.Equal(t, middleware.Mask, doc.Occurrences[0].Operation)
	assert.Equal(t, middleware.Mask, doc.Occurrences[0].RootCause.Signature)
	assert.Equal(t, []string{"0.1"}, doc.Occurrences[0].RootCause.Calls)
}

func TestRedactMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_OrderIsOutsideIn(t *testing.T) {
	underlying := memory.NewStore()
	redact, err := middleware.NewRedactMiddleware([]string{"secret"})
	require.NoError(t, err)
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, redact, encrypt)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.Record{ID: "c", Result: json.RawMessage(`{"secret":"x","kept":"y"}`)}))

	loaded, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.JSONEq(t, `{"secret":"***","kept":"y"}`, string(loaded.Result))
}
