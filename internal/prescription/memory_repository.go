package prescription

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository keeps records in process memory.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryRepository returns an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string]*Record)}
}

// Save stores a copy of rec, assigning an ID and timestamp when missing.
func (r *InMemoryRepository) Save(_ context.Context, rec Record) (*Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := rec
	r.records[rec.ID] = &stored
	out := stored
	return &out, nil
}

func (r *InMemoryRepository) FindByID(_ context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (r *InMemoryRepository) FindLatestForUser(_ context.Context, userHash string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *Record
	for _, rec := range r.records {
		if rec.UserHash != userHash {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}
