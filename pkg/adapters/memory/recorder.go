package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Recorder implements ports.RunRecorder in memory.
// Safe for concurrent use.
type Recorder struct {
	data map[string]*domain.RunRecord
	mu   sync.RWMutex
}

// NewRecorder creates a new in-memory recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		data: make(map[string]*domain.RunRecord),
	}
}

// Save stores a copy of the record.
func (r *Recorder) Save(ctx context.Context, record *domain.RunRecord) error {
	cp := copyRecord(record)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[record.RunID] = cp
	return nil
}

// Load retrieves a copy of the record so callers can't mutate the recorder.
func (r *Recorder) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return copyRecord(record), nil
}

// Delete removes the record.
func (r *Recorder) Delete(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, runID)
	return nil
}

// List returns recorded run IDs, oldest first.
func (r *Recorder) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.data))
	for id := range r.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.data[ids[i]], r.data[ids[j]]
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.Before(b.StartedAt)
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

func copyRecord(record *domain.RunRecord) *domain.RunRecord {
	cp := *record
	cp.State = domain.State(record.State).Clone()
	cp.Dispatched = append([]string(nil), record.Dispatched...)
	return &cp
}
