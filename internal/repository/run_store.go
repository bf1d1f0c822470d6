package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// RunStore persists run records.  Implementations must be safe for
// concurrent use.
type RunStore interface {
	// Create stores a new record.  It fails with ErrRunExists if the ID
	// is already present.
	Create(ctx context.Context, rec model.RunRecord) error
	// Update replaces an existing record.  It fails with ErrRunNotFound
	// if there is nothing to replace.
	Update(ctx context.Context, rec model.RunRecord) error
	// Get returns the record for id or ErrRunNotFound.
	Get(ctx context.Context, id string) (model.RunRecord, error)
}

// MemoryRunRepo keeps records in process memory.  Records older than the
// TTL (measured from their last update) are treated as absent and pruned
// lazily.
type MemoryRunRepo struct {
	mu   sync.RWMutex
	runs map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

type memoryEntry struct {
	rec     model.RunRecord
	expires time.Time
}

// NewMemoryRunRepo returns an empty store.  A ttl of zero keeps records
// forever.
func NewMemoryRunRepo(ttl time.Duration) *MemoryRunRepo {
	return &MemoryRunRepo{runs: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (r *MemoryRunRepo) Create(_ context.Context, rec model.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	if _, ok := r.runs[rec.ID]; ok {
		return ErrRunExists
	}
	r.runs[rec.ID] = r.entry(rec)
	return nil
}

func (r *MemoryRunRepo) Update(_ context.Context, rec model.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	if _, ok := r.runs[rec.ID]; !ok {
		return ErrRunNotFound
	}
	r.runs[rec.ID] = r.entry(rec)
	return nil
}

func (r *MemoryRunRepo) Get(_ context.Context, id string) (model.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok || r.expired(e) {
		return model.RunRecord{}, ErrRunNotFound
	}
	return e.rec, nil
}

// Len reports the number of live records.
func (r *MemoryRunRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	return len(r.runs)
}

func (r *MemoryRunRepo) entry(rec model.RunRecord) memoryEntry {
	e := memoryEntry{rec: rec}
	if r.ttl > 0 {
		e.expires = r.now().Add(r.ttl)
	}
	return e
}

func (r *MemoryRunRepo) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !r.now().Before(e.expires)
}

func (r *MemoryRunRepo) pruneLocked() {
	for id, e := range r.runs {
		if r.expired(e) {
			delete(r.runs, id)
		}
	}
}
