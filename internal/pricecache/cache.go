// Package pricecache memoizes daily OHLC rows in fixed 100-day buckets per symbol and
// resolves a single day's row, falling back to the nearest trading day when the market
// was closed.
package pricecache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/marketdata"
	"trade-emulator/internal/observability"
)

const (
	// BucketDays is the width of one cached window.
	BucketDays = 100

	// MaxDateLimit bounds the nearest-day search of an Unbounded query.
	MaxDateLimit = 100

	// anchorLeadDays places the lazily chosen anchor before the first queried day.
	anchorLeadDays = 50

	// Unbounded searches nearby days up to MaxDateLimit.
	Unbounded = -1
)

// Errors returned by the cache.
var (
	ErrNoData   = errors.New("no price data")
	ErrNoSymbol = errors.New("symbol not specified and no default symbol configured")
	ErrFetch    = errors.New("fetch price bucket")
)

// Direction selects which side of the requested day the nearest-day search probes.
type Direction int

// Search directions.
const (
	Both Direction = iota
	Past
	Future
)

func (d Direction) String() string {
	switch d {
	case Past:
		return "past"
	case Future:
		return "future"
	default:
		return "both"
	}
}

// Query describes one lookup. The zero value matches the exact day of the default symbol.
type Query struct {
	Symbol string // empty uses the cache default

	// NearestDayThreshold is the farthest offset in days probed when the exact day has
	// no row. 0 disables the search; Unbounded (any negative value) searches up to MaxDateLimit.
	// A positive threshold is honored as given, even beyond MaxDateLimit.
	NearestDayThreshold int

	Direction Direction
}

// Stats counts cache activity since creation or the last SetStandardDay.
type Stats struct {
	Hits      int // bucket accesses served from memory
	Misses    int // bucket accesses that went to the source
	Fetches   int // successful bucket fetches
	Fallbacks int // lookups answered by a nearby day
}

type bucketKey struct {
	symbol string
	index  int
}

// Cache is not safe for concurrent use.
type Cache struct {
	source        marketdata.Source
	defaultSymbol string
	logger        *log.Logger

	anchor    time.Time
	anchorSet bool
	buckets   map[bucketKey]map[time.Time]*domain.DailyPrice
	stats     Stats
}

// Options contains configuration for creating a Cache.
type Options struct {
	Source        marketdata.Source
	DefaultSymbol string
	Logger        *log.Logger
}

// New creates a price cache over opts.Source.
func New(opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Cache{
		source:        opts.Source,
		defaultSymbol: opts.DefaultSymbol,
		logger:        logger,
		buckets:       make(map[bucketKey]map[time.Time]*domain.DailyPrice),
	}
}

// SetStandardDay pins the bucket anchor to day and drops every cached bucket.
func (c *Cache) SetStandardDay(day time.Time) {
	c.anchor = domain.Day(day)
	c.anchorSet = true
	c.buckets = make(map[bucketKey]map[time.Time]*domain.DailyPrice)
	c.stats = Stats{}
	observability.ResetBucketsCached()
}

// StandardDay returns the current anchor and whether it has been set.
func (c *Cache) StandardDay() (time.Time, bool) {
	return c.anchor, c.anchorSet
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

// Len returns the number of cached buckets.
func (c *Cache) Len() int {
	return len(c.buckets)
}

// GetPrice returns the row for day and the date it was actually taken from.
// When the exact day has no row and q.NearestDayThreshold is non-zero, offsets 1, 2, ...
// are probed; at equal offsets the past day wins over the future day.
func (c *Cache) GetPrice(ctx context.Context, day time.Time, q Query) (*domain.DailyPrice, time.Time, error) {
	day = domain.Day(day)
	if !c.anchorSet {
		c.anchor = day.AddDate(0, 0, -anchorLeadDays)
		c.anchorSet = true
	}

	symbol := q.Symbol
	if symbol == "" {
		symbol = c.defaultSymbol
	}
	if symbol == "" {
		return nil, time.Time{}, ErrNoSymbol
	}

	row, err := c.exact(ctx, day, symbol)
	if err != nil {
		return nil, time.Time{}, err
	}
	if row != nil {
		return row, day, nil
	}

	if q.NearestDayThreshold == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: %s has no row for %s, widen the nearest day threshold to use nearby days",
			ErrNoData, symbol, domain.FormatDate(day))
	}

	limit := q.NearestDayThreshold
	if limit < 0 {
		limit = MaxDateLimit
	}

	for offset := 1; offset <= limit; offset++ {
		for _, candidate := range probes(day, offset, q.Direction) {
			row, err := c.exact(ctx, candidate, symbol)
			if err != nil {
				return nil, time.Time{}, err
			}
			if row != nil {
				c.stats.Fallbacks++
				observability.RecordNearestDayFallback()
				c.logger.Printf("using %s price of %s instead of %s",
					symbol, domain.FormatDate(candidate), domain.FormatDate(day))
				return row, candidate, nil
			}
		}
	}

	return nil, time.Time{}, fmt.Errorf("%w: %s has no row between %s and %s (%s)",
		ErrNoData, symbol,
		domain.FormatDate(day.AddDate(0, 0, -limit)), domain.FormatDate(day.AddDate(0, 0, limit)),
		q.Direction)
}

// probes lists the days checked at offset, past first.
func probes(day time.Time, offset int, dir Direction) []time.Time {
	switch dir {
	case Past:
		return []time.Time{day.AddDate(0, 0, -offset)}
	case Future:
		return []time.Time{day.AddDate(0, 0, offset)}
	default:
		return []time.Time{day.AddDate(0, 0, -offset), day.AddDate(0, 0, offset)}
	}
}

// exact returns the row for day, or nil when the bucket has none.
func (c *Cache) exact(ctx context.Context, day time.Time, symbol string) (*domain.DailyPrice, error) {
	bucket, err := c.bucket(ctx, day, symbol)
	if err != nil {
		return nil, err
	}
	return bucket[day], nil
}

// bucket returns the cached bucket containing day, fetching it on first use.
func (c *Cache) bucket(ctx context.Context, day time.Time, symbol string) (map[time.Time]*domain.DailyPrice, error) {
	index, start := bucketOf(day, c.anchor)
	key := bucketKey{symbol: symbol, index: index}

	if b, ok := c.buckets[key]; ok {
		c.stats.Hits++
		observability.RecordCacheLookup(true)
		return b, nil
	}
	c.stats.Misses++
	observability.RecordCacheLookup(false)

	end := start.AddDate(0, 0, BucketDays)
	rows, err := c.source.Fetch(ctx, symbol, marketdata.IntervalDay, start, end)
	if err != nil {
		observability.RecordBucketFetch(err, len(c.buckets))
		return nil, fmt.Errorf("%w %s [%s, %s): %w",
			ErrFetch, symbol, domain.FormatDate(start), domain.FormatDate(end), err)
	}

	b := make(map[time.Time]*domain.DailyPrice, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		b[domain.Day(r.Date)] = r
	}
	c.buckets[key] = b
	c.stats.Fetches++
	observability.RecordBucketFetch(nil, len(c.buckets))
	return b, nil
}

// bucketOf returns the floor-divided bucket index of day and the bucket's first day.
func bucketOf(day, anchor time.Time) (int, time.Time) {
	diff := domain.DaysBetween(anchor, day)
	index := diff / BucketDays
	if diff%BucketDays < 0 {
		index--
	}
	return index, anchor.AddDate(0, 0, index*BucketDays)
}
