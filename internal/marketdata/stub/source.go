// Package stub provides an in-memory market data source for tests and offline runs.
package stub

import (
	"context"
	"sort"
	"time"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/marketdata"
)

// FetchCall records the arguments of one Fetch.
type FetchCall struct {
	Symbol       string
	Interval     marketdata.Interval
	Start        time.Time
	EndExclusive time.Time
}

// Source implements marketdata.Source over fixed rows.
type Source struct {
	Rows  map[string][]*domain.DailyPrice // keyed by symbol
	Err   error                           // returned by every Fetch when set
	Calls []FetchCall
}

// NewSource creates an empty stub source.
func NewSource() *Source {
	return &Source{Rows: make(map[string][]*domain.DailyPrice)}
}

// Add appends rows, keyed by each row's symbol.
func (s *Source) Add(rows ...*domain.DailyPrice) *Source {
	for _, r := range rows {
		s.Rows[r.Symbol] = append(s.Rows[r.Symbol], r)
	}
	return s
}

// AddFlat adds a row whose open, high, low and close all equal price.
func (s *Source) AddFlat(symbol string, day time.Time, price int64) *Source {
	return s.Add(&domain.DailyPrice{
		Symbol: symbol,
		Date:   domain.Day(day),
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
	})
}

// Fetch returns copies of the rows within [start, endExclusive), ordered by date.
func (s *Source) Fetch(_ context.Context, symbol string, interval marketdata.Interval, start, endExclusive time.Time) ([]*domain.DailyPrice, error) {
	s.Calls = append(s.Calls, FetchCall{
		Symbol:       symbol,
		Interval:     interval,
		Start:        start,
		EndExclusive: endExclusive,
	})
	if s.Err != nil {
		return nil, s.Err
	}

	var result []*domain.DailyPrice
	for _, r := range s.Rows[symbol] {
		if !r.Date.Before(start) && r.Date.Before(endExclusive) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// FetchCount returns the number of Fetch calls made so far.
func (s *Source) FetchCount() int {
	return len(s.Calls)
}

var _ marketdata.Source = (*Source)(nil)
