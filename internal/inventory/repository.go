package inventory

import (
	"context"
	"sync"
)

// RepositoryPort abstracts the inventory store consumed by the schedulers.
// ApplyDelta must serialize writes per (product, lot, location) record.
// ApplyDeltas must apply the whole batch or none of it, so a failed commit
// never leaves a partial mutation behind.
type RepositoryPort interface {
	GetSnapshot(ctx context.Context) (*Snapshot, error)
	ApplyDelta(ctx context.Context, product, lot string, loc Location, delta float64) (float64, error)
	ApplyDeltas(ctx context.Context, movements []Movement) error
}

// MemoryRepository keeps inventory in memory behind a mutex. It backs tests
// and offline simulation runs.
type MemoryRepository struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

// NewMemoryRepository seeds a repository from lots.
func NewMemoryRepository(lots []Lot) (*MemoryRepository, error) {
	snapshot, err := NewSnapshot(lots)
	if err != nil {
		return nil, err
	}
	return &MemoryRepository{snapshot: snapshot}, nil
}

// GetSnapshot returns a deep copy of current state.
func (r *MemoryRepository) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot.Clone(), nil
}

// ApplyDelta adjusts one location quantity under the repository lock.
func (r *MemoryRepository) ApplyDelta(ctx context.Context, product, lot string, loc Location, delta float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	movement, err := r.snapshot.Apply(product, lot, loc, delta)
	if err != nil {
		return 0, err
	}
	return movement.After, nil
}

// ApplyDeltas applies a batch of movements all-or-nothing. The batch lands on
// a clone first; the stored snapshot is swapped only when every movement
// succeeds.
func (r *MemoryRepository) ApplyDeltas(ctx context.Context, movements []Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := r.snapshot.Clone()
	for _, m := range movements {
		if _, err := work.Apply(m.Product, m.Lot, m.Location, m.Delta); err != nil {
			return err
		}
	}
	r.snapshot = work
	return nil
}
