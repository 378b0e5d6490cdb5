package memory

import (
	"context"
	"sync"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/storage"
)

// DrawdownStore is an in-memory implementation of storage.DrawdownStore.
type DrawdownStore struct {
	mu   sync.RWMutex
	data map[string][]domain.DrawdownSample // keyed by run_id
}

// NewDrawdownStore creates a new in-memory drawdown store.
func NewDrawdownStore() *DrawdownStore {
	return &DrawdownStore{
		data: make(map[string][]domain.DrawdownSample),
	}
}

// InsertBulk adds the samples of a run. Fails if the run already has samples.
func (s *DrawdownStore) InsertBulk(_ context.Context, runID string, samples []domain.DrawdownSample) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[runID] = append([]domain.DrawdownSample(nil), samples...)
	return nil
}

// GetByRunID retrieves the samples of a run in emission order.
func (s *DrawdownStore) GetByRunID(_ context.Context, runID string) ([]domain.DrawdownSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.DrawdownSample(nil), s.data[runID]...), nil
}

var _ storage.DrawdownStore = (*DrawdownStore)(nil)
