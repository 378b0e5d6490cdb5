package marketdata

import (
	"context"
	"fmt"
	"time"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/storage"
)

// StoreSource serves daily rows previously backfilled into a DailyPriceStore.
type StoreSource struct {
	store storage.DailyPriceStore
}

// NewStoreSource creates a Source reading from store.
func NewStoreSource(store storage.DailyPriceStore) *StoreSource {
	return &StoreSource{store: store}
}

// Fetch returns stored rows within [start, endExclusive). Only IntervalDay is served.
func (s *StoreSource) Fetch(ctx context.Context, symbol string, interval Interval, start, endExclusive time.Time) ([]*domain.DailyPrice, error) {
	if interval != IntervalDay {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInterval, interval)
	}
	rows, err := s.store.GetByDateRange(ctx, symbol, domain.Day(start), domain.Day(endExclusive))
	if err != nil {
		return nil, fmt.Errorf("load daily prices %s: %w", symbol, err)
	}
	return rows, nil
}

var _ Source = (*StoreSource)(nil)
