// Package marketdata defines the daily price source consumed by the price cache.
package marketdata

import (
	"context"
	"errors"
	"time"

	"trade-emulator/internal/domain"
)

// Interval selects the candle period requested from a source.
type Interval string

// Supported intervals.
const (
	IntervalDay   Interval = "D"
	IntervalWeek  Interval = "W"
	IntervalMonth Interval = "M"
)

// ErrUnsupportedInterval is returned by sources that only serve some intervals.
var ErrUnsupportedInterval = errors.New("unsupported interval")

// Source fetches raw OHLC rows for a symbol within [start, endExclusive).
// Rows may be returned in any order and may omit days when the market was closed.
type Source interface {
	Fetch(ctx context.Context, symbol string, interval Interval, start, endExclusive time.Time) ([]*domain.DailyPrice, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, symbol string, interval Interval, start, endExclusive time.Time) ([]*domain.DailyPrice, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, symbol string, interval Interval, start, endExclusive time.Time) ([]*domain.DailyPrice, error) {
	return f(ctx, symbol, interval, start, endExclusive)
}
