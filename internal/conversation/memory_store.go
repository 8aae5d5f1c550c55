package conversation

import (
	"context"
	"sync"
)

// InMemoryTurnStore keeps turns in process memory. Used for local runs and tests.
type InMemoryTurnStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

func NewInMemoryTurnStore() *InMemoryTurnStore {
	return &InMemoryTurnStore{turns: make(map[string][]Turn)}
}

func (s *InMemoryTurnStore) FindRecentTurns(_ context.Context, userHash string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[userHash]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Turn, len(all))
	copy(out, all)
	return out, nil
}

func (s *InMemoryTurnStore) AppendTurn(_ context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.UserHash] = append(s.turns[turn.UserHash], turn)
	return nil
}

func (s *InMemoryTurnStore) FindLastTurn(_ context.Context, userHash string) (*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[userHash]
	if len(all) == 0 {
		return nil, nil
	}
	last := all[len(all)-1]
	return &last, nil
}
