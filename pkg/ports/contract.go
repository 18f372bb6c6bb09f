package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
)

// RunRecorderContract runs a suite of tests to verify that a RunRecorder implementation
// adheres to the defined interface contract.
func RunRecorderContract(t *testing.T, recorder RunRecorder) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	newRecord := func(id string) *domain.RunRecord {
		return &domain.RunRecord{
			RunID:     id,
			Graph:     "contract",
			Model:     "test-model",
			Dialect:   domain.DialectChatCompletions,
			Status:    domain.StatusDone,
			Steps:     3,
			State:     map[string]any{"foo": "bar", "count": 42},
			StartedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		record := newRecord(runID)

		err := recorder.Save(ctx, record)
		require.NoError(t, err, "Save should not return error")

		loaded, err := recorder.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, record.Status, loaded.Status)
		assert.Equal(t, record.Steps, loaded.Steps)
		assert.Equal(t, "bar", loaded.State["foo"])
		// JSON backends turn ints into floats; only check presence.
		assert.NotNil(t, loaded.State["count"])
		assert.True(t, record.StartedAt.Equal(loaded.StartedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := recorder.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		record := newRecord(runID)
		record.Status = domain.StatusFailed
		record.Error = "boom"
		require.NoError(t, recorder.Save(ctx, record))

		loaded, err := recorder.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, loaded.Status)
		assert.Equal(t, "boom", loaded.Error)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, recorder.Save(ctx, newRecord(runID)))

		err := recorder.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = recorder.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = recorder.Save(ctx, newRecord(id1))
		_ = recorder.Save(ctx, newRecord(id2))

		defer func() {
			_ = recorder.Delete(ctx, id1)
			_ = recorder.Delete(ctx, id2)
		}()

		ids, err := recorder.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
