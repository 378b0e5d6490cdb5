package domain

import (
	"fmt"
	"time"
)

// PriceTag selects one of the daily OHLC prices.
type PriceTag string

// Price tags.
const (
	PriceOpen  PriceTag = "open"
	PriceHigh  PriceTag = "high"
	PriceLow   PriceTag = "low"
	PriceClose PriceTag = "close"
)

// ParsePriceTag validates a tag name.
func ParsePriceTag(s string) (PriceTag, bool) {
	switch tag := PriceTag(s); tag {
	case PriceOpen, PriceHigh, PriceLow, PriceClose:
		return tag, true
	default:
		return "", false
	}
}

// SellPrice is either a tag resolved against the day's OHLC row or an explicit price.
type SellPrice struct {
	Tag   PriceTag // empty for an explicit price
	Value int64    // explicit price, meaningful when Tag is empty
}

// AtTag returns a SellPrice selecting an OHLC field.
func AtTag(tag PriceTag) SellPrice {
	return SellPrice{Tag: tag}
}

// AtPrice returns an explicit SellPrice.
func AtPrice(v int64) SellPrice {
	return SellPrice{Value: v}
}

// IsTag reports whether the price still refers to an OHLC field.
func (p SellPrice) IsTag() bool {
	return p.Tag != ""
}

func (p SellPrice) String() string {
	if p.IsTag() {
		return string(p.Tag)
	}
	return fmt.Sprintf("%d", p.Value)
}

// Transaction is a buy (Amount > 0) or sell (Amount < 0) intent for one symbol on one day.
// Once Resolved, SellPrice is explicit and lies within that day's [Low, High].
type Transaction struct {
	Date      time.Time // trading day
	Symbol    string    // instrument code
	Amount    int64     // signed unit count
	SellPrice SellPrice // settlement price or tag
	Resolved  bool      // SellPrice settled against market data
}

// IsBuy reports whether the transaction adds units.
func (t Transaction) IsBuy() bool {
	return t.Amount > 0
}

// Notional returns Amount * settled price. Only meaningful once resolved.
func (t Transaction) Notional() int64 {
	return t.Amount * t.SellPrice.Value
}

// Commission holds fee rates applied to a transaction's notional value.
type Commission struct {
	BuyRate  float64 // fraction of notional charged on buys
	SellRate float64 // fraction of notional charged on sells
}

// Rate returns the rate for the transaction direction.
func (c Commission) Rate(t Transaction) float64 {
	if t.IsBuy() {
		return c.BuyRate
	}
	return c.SellRate
}
