package domain

import (
	"fmt"
	"time"
)

// DateLayout is the fixed 8-digit date encoding used by market data sources.
const DateLayout = "20060102"

// DailyPrice represents one daily OHLC row for a symbol.
// Corresponds to daily_prices table in ClickHouse.
type DailyPrice struct {
	Symbol string    // instrument code, e.g. "005930"
	Date   time.Time // trading day (UTC midnight)
	Open   int64     // opening price
	High   int64     // highest price of the day
	Low    int64     // lowest price of the day
	Close  int64     // closing price
	Volume int64     // accumulated volume
}

// Field returns the OHLC field selected by tag.
func (p *DailyPrice) Field(tag PriceTag) (int64, error) {
	switch tag {
	case PriceOpen:
		return p.Open, nil
	case PriceHigh:
		return p.High, nil
	case PriceLow:
		return p.Low, nil
	case PriceClose:
		return p.Close, nil
	default:
		return 0, fmt.Errorf("unknown price tag %q", string(tag))
	}
}

// Day truncates t to midnight UTC of the same calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a UTC midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// FormatDate encodes a date as YYYYMMDD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate decodes a YYYYMMDD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
