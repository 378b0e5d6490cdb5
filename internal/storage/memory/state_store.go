package memory

import (
	"context"
	"sync"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.State // keyed by run_id
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		data: make(map[string][]*domain.State),
	}
}

// InsertBulk adds the states of a run. Fails if the run already has states.
func (s *StateStore) InsertBulk(_ context.Context, runID string, states []*domain.State) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(states) == 0 {
		return nil
	}
	for _, st := range states {
		if st == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	copies := make([]*domain.State, len(states))
	for i, st := range states {
		copies[i] = copyState(st)
	}
	s.data[runID] = copies
	return nil
}

// GetByRunID retrieves the states of a run in emission order.
func (s *StateStore) GetByRunID(_ context.Context, runID string) ([]*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[runID]
	result := make([]*domain.State, len(stored))
	for i, st := range stored {
		result[i] = copyState(st)
	}
	return result, nil
}

func copyState(st *domain.State) *domain.State {
	c := *st
	c.Holdings = st.CloneHoldings()
	if st.Transaction != nil {
		tx := *st.Transaction
		c.Transaction = &tx
	}
	return &c
}

var _ storage.StateStore = (*StateStore)(nil)
