// Package ingestion copies historical daily prices from a market data source into storage.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/marketdata"
	"trade-emulator/internal/observability"
	"trade-emulator/internal/storage"
)

// DefaultWindowDays is the largest range a single daily price request may cover.
const DefaultWindowDays = 100

// Backfill errors
var (
	ErrNoSymbol     = errors.New("symbol is required")
	ErrInvalidRange = errors.New("backfill range end is before start")
)

// Backfiller fetches daily prices window by window and stores the rows not yet stored.
type Backfiller struct {
	source     marketdata.Source
	store      storage.DailyPriceStore
	windowDays int
	logger     *log.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	Source     marketdata.Source
	Store      storage.DailyPriceStore
	WindowDays int
	Logger     *log.Logger
}

// NewBackfiller creates a new historical price backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Backfiller{
		source:     opts.Source,
		store:      opts.Store,
		windowDays: windowDays,
		logger:     logger,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	Windows           int
	RowsFetched       int
	RowsStored        int
	DuplicatesSkipped int
	Duration          time.Duration
}

// BackfillRange backfills symbol's daily prices for the inclusive day range [from, to].
func (b *Backfiller) BackfillRange(ctx context.Context, symbol string, from, to time.Time) (*BackfillResult, error) {
	if symbol == "" {
		return nil, ErrNoSymbol
	}
	from, to = domain.Day(from), domain.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, domain.FormatDate(from), domain.FormatDate(to))
	}

	started := time.Now()
	result := &BackfillResult{}
	endExclusive := to.AddDate(0, 0, 1)

	b.logger.Printf("Starting backfill of %s from %s to %s", symbol, domain.FormatDate(from), domain.FormatDate(to))

	for windowStart := from; windowStart.Before(endExclusive); windowStart = windowStart.AddDate(0, 0, b.windowDays) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		windowEnd := windowStart.AddDate(0, 0, b.windowDays)
		if windowEnd.After(endExclusive) {
			windowEnd = endExclusive
		}

		stored, dupes, fetched, err := b.backfillWindow(ctx, symbol, windowStart, windowEnd)
		if err != nil {
			return result, err
		}
		result.Windows++
		result.RowsFetched += fetched
		result.RowsStored += stored
		result.DuplicatesSkipped += dupes
	}

	result.Duration = time.Since(started)
	observability.RecordPricesIngested(result.RowsStored, float64(time.Now().Unix()))
	b.logger.Printf("Backfill complete: %d windows, %d fetched, %d stored, %d already stored in %v",
		result.Windows, result.RowsFetched, result.RowsStored, result.DuplicatesSkipped, result.Duration)

	return result, nil
}

// backfillWindow handles one [start, end) window.
func (b *Backfiller) backfillWindow(ctx context.Context, symbol string, start, end time.Time) (stored, dupes, fetched int, err error) {
	rows, err := b.source.Fetch(ctx, symbol, marketdata.IntervalDay, start, end)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("fetch %s [%s, %s): %w", symbol, domain.FormatDate(start), domain.FormatDate(end), err)
	}

	existing, err := b.store.GetByDateRange(ctx, symbol, start, end)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("load stored prices: %w", err)
	}
	have := make(map[time.Time]struct{}, len(existing))
	for _, r := range existing {
		have[domain.Day(r.Date)] = struct{}{}
	}

	var fresh []*domain.DailyPrice
	for _, r := range rows {
		if r == nil {
			continue
		}
		day := domain.Day(r.Date)
		if _, ok := have[day]; ok {
			dupes++
			continue
		}
		have[day] = struct{}{}
		fresh = append(fresh, r)
	}

	if err := b.store.InsertBulk(ctx, fresh); err != nil {
		return 0, dupes, len(rows), fmt.Errorf("store prices: %w", err)
	}

	b.logger.Printf("Stored %d %s rows for [%s, %s)", len(fresh), symbol, domain.FormatDate(start), domain.FormatDate(end))
	return len(fresh), dupes, len(rows), nil
}
