// Package emulation walks a transaction list day by day and derives the portfolio
// state sequence, optionally pulling the next pending transaction forward on a drawdown breach.
package emulation

import (
	"errors"
	"fmt"
	"log"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/tick"
)

// Errors returned by resolution and the engine.
var (
	ErrInvalidPrice         = errors.New("price outside the day's low/high range")
	ErrNoTransactions       = errors.New("no transactions and no date bounds")
	ErrInvalidPanicSellRate = errors.New("panic sell rate must be in (0, 1)")
)

// ResolveOptions controls how explicit prices are checked.
type ResolveOptions struct {
	// CheckPriceUnit snaps explicit prices to the tick table before range validation.
	CheckPriceUnit bool

	// Tick configures the snap. Nil rounds against KRXUnits and logs mismatches.
	// Mismatches without a logger go to the Engine's logger, or log.Default when
	// Resolve is called directly.
	Tick *tick.Options
}

// withLogger returns o with logger filled in where no tick logger is set.
func (o ResolveOptions) withLogger(logger *log.Logger) ResolveOptions {
	t := o.tickOptions()
	if t.Logger == nil {
		t.Logger = logger
	}
	o.Tick = &t
	return o
}

func (o ResolveOptions) tickOptions() tick.Options {
	if o.Tick != nil {
		return *o.Tick
	}
	return tick.Options{Mode: tick.ModeRound, Policy: tick.PolicyWarn}
}

// Resolve settles tx.SellPrice against row. A resolved transaction is returned unchanged.
func Resolve(tx domain.Transaction, row *domain.DailyPrice, opts ResolveOptions) (domain.Transaction, error) {
	if tx.Resolved {
		return tx, nil
	}
	if row == nil {
		return tx, fmt.Errorf("resolve %s on %s: no price row", tx.Symbol, domain.FormatDate(tx.Date))
	}

	if tx.SellPrice.IsTag() {
		price, err := row.Field(tx.SellPrice.Tag)
		if err != nil {
			return tx, fmt.Errorf("resolve %s on %s: %w", tx.Symbol, domain.FormatDate(tx.Date), err)
		}
		tx.SellPrice = domain.AtPrice(price)
		tx.Resolved = true
		return tx, nil
	}

	price := tx.SellPrice.Value
	if opts.CheckPriceUnit {
		adjusted, err := tick.Adjust(price, opts.tickOptions())
		if err != nil {
			return tx, fmt.Errorf("resolve %s on %s: %w", tx.Symbol, domain.FormatDate(tx.Date), err)
		}
		price = adjusted
	}

	if price < row.Low || price > row.High {
		return tx, fmt.Errorf("%w: %s on %s price %d not in [%d, %d]",
			ErrInvalidPrice, tx.Symbol, domain.FormatDate(tx.Date), price, row.Low, row.High)
	}

	tx.SellPrice = domain.AtPrice(price)
	tx.Resolved = true
	return tx, nil
}
