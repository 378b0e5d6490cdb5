package pricecache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/marketdata/stub"
)

var quietLogger = log.New(io.Discard, "", 0)

func d(month time.Month, day int) time.Time {
	return domain.Date(2024, month, day)
}

// weekdaySource returns a source with a flat row for every weekday in March 2024
// priced at 1000 + day of month.
func weekdaySource() *stub.Source {
	src := stub.NewSource()
	for day := d(time.March, 1); day.Month() == time.March; day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		src.AddFlat("S", day, int64(1000+day.Day()))
	}
	return src
}

func TestGetPrice_ExactDay(t *testing.T) {
	cache := New(Options{Source: weekdaySource(), DefaultSymbol: "S", Logger: quietLogger})
	ctx := context.Background()

	row, date, err := cache.GetPrice(ctx, d(time.March, 5), Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1005), row.Close)
	assert.True(t, date.Equal(d(time.March, 5)))
}

func TestGetPrice_NormalizesTimeOfDay(t *testing.T) {
	cache := New(Options{Source: weekdaySource(), DefaultSymbol: "S", Logger: quietLogger})

	noon := time.Date(2024, time.March, 5, 12, 30, 0, 0, time.UTC)
	row, _, err := cache.GetPrice(context.Background(), noon, Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1005), row.Close)
}

func TestGetPrice_LazyAnchor(t *testing.T) {
	cache := New(Options{Source: weekdaySource(), DefaultSymbol: "S", Logger: quietLogger})

	_, set := cache.StandardDay()
	assert.False(t, set)

	_, _, err := cache.GetPrice(context.Background(), d(time.March, 5), Query{})
	require.NoError(t, err)

	anchor, set := cache.StandardDay()
	assert.True(t, set)
	assert.True(t, anchor.Equal(d(time.March, 5).AddDate(0, 0, -50)), "anchor %v", anchor)

	// A later query does not move the anchor
	_, _, err = cache.GetPrice(context.Background(), d(time.March, 20), Query{})
	require.NoError(t, err)
	again, _ := cache.StandardDay()
	assert.True(t, again.Equal(anchor))
}

func TestGetPrice_FetchesBucketOnce(t *testing.T) {
	src := weekdaySource()
	cache := New(Options{Source: src, DefaultSymbol: "S", Logger: quietLogger})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := cache.GetPrice(ctx, d(time.March, 5), Query{})
		require.NoError(t, err)
	}
	_, _, err := cache.GetPrice(ctx, d(time.March, 6), Query{})
	require.NoError(t, err)

	assert.Equal(t, 1, src.FetchCount())
	assert.Equal(t, 1, cache.Len())

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Fetches)
	assert.Equal(t, 3, stats.Hits)
}

func TestGetPrice_BucketWindow(t *testing.T) {
	src := weekdaySource()
	cache := New(Options{Source: src, DefaultSymbol: "S", Logger: quietLogger})

	_, _, err := cache.GetPrice(context.Background(), d(time.March, 5), Query{})
	require.NoError(t, err)

	require.Len(t, src.Calls, 1)
	call := src.Calls[0]
	assert.Equal(t, "S", call.Symbol)
	assert.True(t, call.Start.Equal(d(time.March, 5).AddDate(0, 0, -50)))
	assert.Equal(t, 100, domain.DaysBetween(call.Start, call.EndExclusive))
}

func TestGetPrice_DaysBeforeAnchorUseOwnBucket(t *testing.T) {
	src := weekdaySource()
	cache := New(Options{Source: src, DefaultSymbol: "S", Logger: quietLogger})
	cache.SetStandardDay(d(time.March, 15))
	ctx := context.Background()

	// March 14 is one day before the anchor: bucket -1
	row, _, err := cache.GetPrice(ctx, d(time.March, 14), Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1014), row.Close)

	row, _, err = cache.GetPrice(ctx, d(time.March, 15), Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1015), row.Close)

	require.Len(t, src.Calls, 2)
	assert.True(t, src.Calls[0].EndExclusive.Equal(d(time.March, 15)))
	assert.True(t, src.Calls[1].Start.Equal(d(time.March, 15)))
}

func TestGetPrice_SymbolResolution(t *testing.T) {
	src := weekdaySource()
	src.AddFlat("T", d(time.March, 5), 77)
	ctx := context.Background()

	cache := New(Options{Source: src, Logger: quietLogger})
	_, _, err := cache.GetPrice(ctx, d(time.March, 5), Query{})
	assert.ErrorIs(t, err, ErrNoSymbol)

	row, _, err := cache.GetPrice(ctx, d(time.March, 5), Query{Symbol: "T"})
	require.NoError(t, err)
	assert.Equal(t, int64(77), row.Close)

	withDefault := New(Options{Source: src, DefaultSymbol: "S", Logger: quietLogger})
	row, _, err = withDefault.GetPrice(ctx, d(time.March, 5), Query{Symbol: "T"})
	require.NoError(t, err)
	assert.Equal(t, int64(77), row.Close, "explicit symbol overrides default")
}

func TestGetPrice_ClosedDayWithoutThreshold(t *testing.T) {
	cache := New(Options{Source: weekdaySource(), DefaultSymbol: "S", Logger: quietLogger})

	// March 9 2024 is a Saturday
	_, _, err := cache.GetPrice(context.Background(), d(time.March, 9), Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "20240309")
}

func TestGetPrice_NearestDirections(t *testing.T) {
	tests := []struct {
		name      string
		day       time.Time
		dir       Direction
		threshold int
		wantDate  time.Time
	}{
		// Saturday March 9: Friday 8 is one day back, Monday 11 two days ahead
		{"past from saturday", d(time.March, 9), Past, Unbounded, d(time.March, 8)},
		{"future from saturday", d(time.March, 9), Future, Unbounded, d(time.March, 11)},
		{"both from saturday picks nearer past", d(time.March, 9), Both, Unbounded, d(time.March, 8)},
		// Sunday March 10: Friday 8 is two days back, Monday 11 one day ahead
		{"both from sunday picks nearer future", d(time.March, 10), Both, Unbounded, d(time.March, 11)},
		{"past from sunday", d(time.March, 10), Past, 2, d(time.March, 8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := New(Options{Source: weekdaySource(), DefaultSymbol: "S", Logger: quietLogger})
			row, date, err := cache.GetPrice(context.Background(), tt.day, Query{
				NearestDayThreshold: tt.threshold,
				Direction:           tt.dir,
			})
			require.NoError(t, err)
			assert.True(t, date.Equal(tt.wantDate), "got %v want %v", date, tt.wantDate)
			assert.Equal(t, int64(1000+tt.wantDate.Day()), row.Close)
		})
	}
}

func TestGetPrice_TieBreakPrefersPast(t *testing.T) {
	src := stub.NewSource()
	src.AddFlat("S", d(time.March, 4), 4)
	src.AddFlat("S", d(time.March, 6), 6)
	cache := New(Options{Source: src, DefaultSymbol: "S", Logger: quietLogger})

	row, date, err := cache.GetPrice(context.Background(), d(time.March, 5), Query{
		NearestDayThreshold: 1,
		Direction:           Both,
	})
	require.NoError(t, err)
	assert.True(t, date.Equal(d(time.March, 4)))
	assert.Equal(t, int64(4), row.Close)
}

func TestGetPrice_ThresholdExceeded(t *testing.T) {
	cache := New(Options{Source: weekdaySource(), DefaultSymbol: "S", Logger: quietLogger})

	// Sunday March 10 with threshold 1 looking only back: Saturday 9 has no row
	_, _, err := cache.GetPrice(context.Background(), d(time.March, 10), Query{
		NearestDayThreshold: 1,
		Direction:           Past,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "20240309")
	assert.Contains(t, err.Error(), "20240311")
}

func TestGetPrice_UnboundedCappedAt100Days(t *testing.T) {
	src := stub.NewSource()
	src.AddFlat("S", d(time.January, 1), 1)
	cache := New(Options{Source: src, DefaultSymbol: "S", Logger: quietLogger})

	// 150 days after the only row: beyond the cap
	far := d(time.January, 1).AddDate(0, 0, 150)
	_, _, err := cache.GetPrice(context.Background(), far, Query{
		NearestDayThreshold: Unbounded,
		Direction:           Past,
	})
	assert.ErrorIs(t, err, ErrNoData)

	// 100 days after is still within reach
	near := d(time.January, 1).AddDate(0, 0, 100)
	_, date, err := cache.GetPrice(context.Background(), near, Query{
		NearestDayThreshold: Unbounded,
		Direction:           Past,
	})
	require.NoError(t, err)
	assert.True(t, date.Equal(d(time.January, 1)))
}

func TestGetPrice_ExplicitThresholdBeyondCap(t *testing.T) {
	src := stub.NewSource()
	src.AddFlat("S", d(time.January, 1), 1)
	cache := New(Options{Source: src, DefaultSymbol: "S", Logger: quietLogger})

	// 120 days back is outside the Unbounded cap but inside a 150-day threshold
	day := d(time.January, 1).AddDate(0, 0, 120)
	row, date, err := cache.GetPrice(context.Background(), day, Query{
		NearestDayThreshold: 150,
		Direction:           Past,
	})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, date.Equal(d(time.January, 1)))

	_, _, err = cache.GetPrice(context.Background(), day, Query{
		NearestDayThreshold: Unbounded,
		Direction:           Past,
	})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGetPrice_FallbackLogged(t *testing.T) {
	var buf bytes.Buffer
	cache := New(Options{Source: weekdaySource(), DefaultSymbol: "S", Logger: log.New(&buf, "", 0)})

	_, _, err := cache.GetPrice(context.Background(), d(time.March, 9), Query{
		NearestDayThreshold: Unbounded,
		Direction:           Past,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "20240308 instead of 20240309")
	assert.Equal(t, 1, cache.Stats().Fallbacks)
}

func TestGetPrice_FetchErrorPropagates(t *testing.T) {
	src := stub.NewSource()
	backendErr := errors.New("backend down")
	src.Err = backendErr
	cache := New(Options{Source: src, DefaultSymbol: "S", Logger: quietLogger})

	_, _, err := cache.GetPrice(context.Background(), d(time.March, 5), Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, backendErr)
	assert.Equal(t, 0, cache.Len(), "failed fetch must not be cached")

	// Recovery: a later successful fetch is cached normally
	src.Err = nil
	src.AddFlat("S", d(time.March, 5), 5)
	_, _, err = cache.GetPrice(context.Background(), d(time.March, 5), Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestSetStandardDay_ClearsCache(t *testing.T) {
	src := weekdaySource()
	cache := New(Options{Source: src, DefaultSymbol: "S", Logger: quietLogger})
	ctx := context.Background()

	_, _, err := cache.GetPrice(ctx, d(time.March, 5), Query{})
	require.NoError(t, err)
	require.Equal(t, 1, src.FetchCount())

	cache.SetStandardDay(d(time.March, 1))
	assert.Equal(t, 0, cache.Len())

	_, _, err = cache.GetPrice(ctx, d(time.March, 5), Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, src.FetchCount())
	assert.True(t, src.Calls[1].Start.Equal(d(time.March, 1)))
}

func TestBucketOf(t *testing.T) {
	anchor := d(time.January, 1)
	tests := []struct {
		day       time.Time
		wantIndex int
		wantStart time.Time
	}{
		{anchor, 0, anchor},
		{anchor.AddDate(0, 0, 99), 0, anchor},
		{anchor.AddDate(0, 0, 100), 1, anchor.AddDate(0, 0, 100)},
		{anchor.AddDate(0, 0, -1), -1, anchor.AddDate(0, 0, -100)},
		{anchor.AddDate(0, 0, -100), -1, anchor.AddDate(0, 0, -100)},
		{anchor.AddDate(0, 0, -101), -2, anchor.AddDate(0, 0, -200)},
	}
	for _, tt := range tests {
		index, start := bucketOf(tt.day, anchor)
		if index != tt.wantIndex || !start.Equal(tt.wantStart) {
			t.Errorf("bucketOf(%s) = %d, %s; want %d, %s",
				domain.FormatDate(tt.day), index, domain.FormatDate(start),
				tt.wantIndex, domain.FormatDate(tt.wantStart))
		}
	}
}
