package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/storage"
)

// DailyPriceStore is an in-memory implementation of storage.DailyPriceStore.
type DailyPriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DailyPrice // keyed by (symbol, date)
}

// NewDailyPriceStore creates a new in-memory daily price store.
func NewDailyPriceStore() *DailyPriceStore {
	return &DailyPriceStore{
		data: make(map[string]*domain.DailyPrice),
	}
}

func dailyPriceKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s|%s", symbol, domain.FormatDate(date))
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *DailyPriceStore) InsertBulk(_ context.Context, rows []*domain.DailyPrice) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range rows {
		if r == nil || r.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := dailyPriceKey(r.Symbol, r.Date)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range rows {
		rowCopy := *r
		rowCopy.Date = domain.Day(r.Date)
		s.data[dailyPriceKey(r.Symbol, r.Date)] = &rowCopy
	}

	return nil
}

// GetByDateRange retrieves rows for a symbol within [start, endExclusive), ordered by date ASC.
func (s *DailyPriceStore) GetByDateRange(_ context.Context, symbol string, start, endExclusive time.Time) ([]*domain.DailyPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, endExclusive = domain.Day(start), domain.Day(endExclusive)

	var result []*domain.DailyPrice
	for _, r := range s.data {
		if r.Symbol == symbol && !r.Date.Before(start) && r.Date.Before(endExclusive) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

var _ storage.DailyPriceStore = (*DailyPriceStore)(nil)
