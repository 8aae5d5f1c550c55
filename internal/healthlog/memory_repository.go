package healthlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

type entryKey struct {
	userHash string
	date     string
}

// InMemoryRepository is a Repository for local runs and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[entryKey]Entry
	now     func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[entryKey]Entry), now: time.Now}
}

func (r *InMemoryRepository) Upsert(_ context.Context, entry Entry) (*Entry, error) {
	if _, err := ParseDate(entry.Date); err != nil {
		return nil, err
	}
	entry.UpdatedAt = r.now().UTC()
	r.mu.Lock()
	r.entries[entryKey{entry.UserHash, entry.Date}] = entry
	r.mu.Unlock()
	return &entry, nil
}

func (r *InMemoryRepository) Get(_ context.Context, userHash, date string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[entryKey{userHash, date}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *InMemoryRepository) ListRange(_ context.Context, userHash string, start, end time.Time) ([]Entry, error) {
	r.mu.RLock()
	var out []Entry
	for key, entry := range r.entries {
		if key.userHash != userHash {
			continue
		}
		day, err := ParseDate(entry.Date)
		if err != nil || !inRange(day, start, end) {
			continue
		}
		out = append(out, entry)
	}
	r.mu.RUnlock()

	// DateLayout sorts lexically in date order.
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
