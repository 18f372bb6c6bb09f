package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewRecorder()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "^ssn"})
	require.NoError(t, err)
	secure := mw(underlying)

	ctx := context.Background()
	state := map[string]any{
		"username":      "jdoe",
		"user_password": "secret123",
		"details": map[string]any{
			"address":    "123 St",
			"ssn_number": "999-99-9999",
		},
		"contacts": []any{
			map[string]any{"name": "ann", "password": "hunter2"},
		},
	}
	require.NoError(t, secure.Save(ctx, &domain.RunRecord{RunID: "run-1", State: state}))

	// The caller's state is untouched.
	assert.Equal(t, "secret123", state["user_password"])

	stored, err := underlying.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", stored.State["username"])
	assert.Equal(t, middleware.Mask, stored.State["user_password"])

	details := stored.State["details"].(map[string]any)
	assert.Equal(t, middleware.Mask, details["ssn_number"])
	assert.Equal(t, "123 St", details["address"])

	contact := stored.State["contacts"].([]any)[0].(map[string]any)
	assert.Equal(t, middleware.Mask, contact["password"])
	assert.Equal(t, "ann", contact["name"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_MasksBeforeEncrypting(t *testing.T) {
	underlying := memory.NewRecorder()
	mask, err := middleware.NewPIIMiddleware([]string{"token"})
	require.NoError(t, err)
	seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	rec := middleware.Chain(underlying, mask, seal)
	ctx := context.Background()
	require.NoError(t, rec.Save(ctx, &domain.RunRecord{RunID: "run-1", State: map[string]any{"token": "abc", "n": 1}}))

	stored, err := underlying.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Contains(t, stored.State, middleware.EnvelopeKey)

	loaded, err := rec.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.State["token"])

	ids, err := rec.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)
}
