package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// RunRecorder persists the audit record of runs.
type RunRecorder interface {
	// Save stores or replaces the record of a run.
	Save(ctx context.Context, record *domain.RunRecord) error

	// Load retrieves a record by run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunRecord, error)

	// List returns the IDs of all recorded runs.
	List(ctx context.Context) ([]string, error)

	// Delete removes a record.
	Delete(ctx context.Context, runID string) error
}
