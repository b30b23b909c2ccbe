package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rootcause/pkg/adapters/memory"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/persistence/middleware"
	"github.com/aretw0/rootcause/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.ResultStore, cfg middleware.EncryptionConfig) ports.ResultStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunResultStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	rec := &domain.Record{
		ID:        "r1",
		CreatedAt: time.Now().UTC(),
		Source:    "checkout",
		Result:    json.RawMessage(`{"operation":"SELECT secret FROM vault"}`),
	}
	require.NoError(t, secure.Save(ctx, rec))

	stored, err := underlying.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, stored.Source)
	assert.NotContains(t, string(stored.Result), "vault")
	assert.Contains(t, string(stored.Result), "__encrypted__")

	loaded, err := secure.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "checkout", loaded.Source)
	assert.JSONEq(t, string(rec.Result), string(loaded.Result))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	withOld := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, withOld.Save(ctx, &domain.Record{ID: "rot", Result: json.RawMessage(`{"v":1}`)}))

	withNew := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := withNew.Load(ctx, "rot")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(loaded.Result))

	require.NoError(t, withNew.Save(ctx, loaded))
	_, err = withOld.Load(ctx, "rot")
	assert.Error(t, err, "old key alone must not open records sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlainRecords(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, &domain.Record{ID: "plain", Result: json.RawMessage(`{"v":1}`)}))

	_, err := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(ctx, "plain")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	got, err := middleware.ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("abcd")
	assert.Error(t, err)
}
