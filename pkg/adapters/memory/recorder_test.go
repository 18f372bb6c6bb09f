package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

func TestMemoryRecorder_Contract(t *testing.T) {
	recorder := memory.NewRecorder()
	ports.RunRecorderContract(t, recorder)
}

func TestMemoryRecorder_Isolation(t *testing.T) {
	ctx := context.Background()
	recorder := memory.NewRecorder()

	record := &domain.RunRecord{RunID: "r1", State: map[string]any{"k": "v"}}
	require.NoError(t, recorder.Save(ctx, record))

	record.State["k"] = "mutated"
	loaded, err := recorder.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v", loaded.State["k"])

	loaded.State["k"] = "mutated again"
	again, err := recorder.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.State["k"])
}
