package emulation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/pricecache"
)

// PriceLookup resolves a day's row for a symbol. *pricecache.Cache implements it.
type PriceLookup interface {
	GetPrice(ctx context.Context, day time.Time, q pricecache.Query) (*domain.DailyPrice, time.Time, error)
}

var _ PriceLookup = (*pricecache.Cache)(nil)

// closeQuery looks back as far as the cache allows.
func closeQuery(symbol string) pricecache.Query {
	return pricecache.Query{
		Symbol:              symbol,
		NearestDayThreshold: pricecache.Unbounded,
		Direction:           pricecache.Past,
	}
}

// Derive builds the state for date from prev.
// With tx nil every holding is marked at the day's close. Otherwise tx is resolved against the
// day's row and applied: its symbol is valued at the settled price, the rest at the close.
func Derive(
	ctx context.Context,
	prices PriceLookup,
	date time.Time,
	prev *domain.State,
	tx *domain.Transaction,
	commission *domain.Commission,
	opts ResolveOptions,
) (*domain.State, error) {
	date = domain.Day(date)
	budget := prev.Budget
	holdings := prev.CloneHoldings()

	var applied *domain.Transaction
	if tx != nil {
		row, _, err := prices.GetPrice(ctx, date, closeQuery(tx.Symbol))
		if err != nil {
			return nil, fmt.Errorf("price %s on %s: %w", tx.Symbol, domain.FormatDate(date), err)
		}
		resolved, err := Resolve(*tx, row, opts)
		if err != nil {
			return nil, err
		}

		price := resolved.SellPrice.Value
		count := holdings[resolved.Symbol].Count + resolved.Amount
		if count == 0 {
			delete(holdings, resolved.Symbol)
		} else {
			holdings[resolved.Symbol] = domain.Holding{Count: count, Price: price}
		}

		budget -= resolved.Notional()
		if commission != nil {
			budget -= fee(resolved, commission.Rate(resolved))
		}
		applied = &resolved
	}

	var appraisement int64
	for symbol, h := range holdings {
		if applied == nil || symbol != applied.Symbol {
			row, _, err := prices.GetPrice(ctx, date, closeQuery(symbol))
			if err != nil {
				return nil, fmt.Errorf("mark %s on %s: %w", symbol, domain.FormatDate(date), err)
			}
			h.Price = row.Close
			holdings[symbol] = h
		}
		appraisement += h.Value()
	}

	return &domain.State{
		Date:              date,
		Budget:            budget,
		Holdings:          holdings,
		TotalAppraisement: budget + appraisement,
		Transaction:       applied,
	}, nil
}

// fee returns |notional| * rate rounded half away from zero.
func fee(tx domain.Transaction, rate float64) int64 {
	if rate == 0 {
		return 0
	}
	return decimal.NewFromInt(tx.Notional()).Abs().
		Mul(decimal.NewFromFloat(rate)).
		Round(0).
		IntPart()
}
