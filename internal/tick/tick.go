// Package tick snaps limit prices to the exchange's quotable price units.
package tick

import (
	"errors"
	"fmt"
	"log"
)

// Errors returned by Adjust.
var (
	ErrPriceUnitMismatch = errors.New("price does not match price unit")
	ErrNoPriceUnit       = errors.New("no price unit covers price")
	ErrUnknownMode       = errors.New("unknown adjust mode")
)

// PriceUnit is a bracket [Start, Stop) whose valid prices are Start + k*Step.
// Stop == 0 means the bracket is open-ended.
type PriceUnit struct {
	Start int64
	Stop  int64
	Step  int64
}

// Contains reports whether price falls within the bracket.
func (u PriceUnit) Contains(price int64) bool {
	return u.Start <= price && (u.Stop == 0 || price < u.Stop)
}

// Matches reports whether price is inside the bracket and on a tick.
func (u PriceUnit) Matches(price int64) bool {
	return u.Contains(price) && (price-u.Start)%u.Step == 0
}

// KRXUnits is the KRX equity tick table effective 2023-01-25.
var KRXUnits = []PriceUnit{
	{Start: 1, Stop: 2_000, Step: 1},
	{Start: 2_000, Stop: 5_000, Step: 5},
	{Start: 5_000, Stop: 20_000, Step: 10},
	{Start: 20_000, Stop: 50_000, Step: 50},
	{Start: 50_000, Stop: 200_000, Step: 100},
	{Start: 200_000, Stop: 500_000, Step: 500},
	{Start: 500_000, Step: 1_000},
}

// Mode selects the direction of adjustment.
type Mode string

// Adjust modes.
const (
	ModeRound Mode = "round"
	ModeFloor Mode = "floor"
	ModeCeil  Mode = "ceil"
)

// Policy selects what happens when a price is off tick.
type Policy int

// Mismatch policies.
const (
	PolicySilent Policy = iota // adjust without notice
	PolicyWarn                 // adjust and log
	PolicyError                // return ErrPriceUnitMismatch
)

// Options configures Adjust. Zero value rounds silently against KRXUnits.
type Options struct {
	Mode   Mode
	Policy Policy
	Units  []PriceUnit
	Logger *log.Logger
}

// Find returns the bracket covering price.
func Find(price int64, units []PriceUnit) (PriceUnit, bool) {
	if units == nil {
		units = KRXUnits
	}
	for _, u := range units {
		if u.Contains(price) {
			return u, true
		}
	}
	return PriceUnit{}, false
}

// Valid reports whether price is quotable under the KRX table.
func Valid(price int64) bool {
	u, ok := Find(price, KRXUnits)
	return ok && u.Matches(price)
}

// Adjust returns price snapped to its bracket's tick.
// A price already on tick is returned unchanged regardless of policy.
func Adjust(price int64, opts Options) (int64, error) {
	u, ok := Find(price, opts.Units)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoPriceUnit, price)
	}
	if u.Matches(price) {
		return price, nil
	}

	mode := opts.Mode
	if mode == "" {
		mode = ModeRound
	}

	diff := (price - u.Start) % u.Step
	var adjusted int64
	switch mode {
	case ModeRound:
		// ties go up: 5005 -> 5010
		if 2*diff >= u.Step {
			adjusted = price - diff + u.Step
		} else {
			adjusted = price - diff
		}
	case ModeFloor:
		adjusted = price - diff
	case ModeCeil:
		adjusted = price - diff + u.Step
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}

	switch opts.Policy {
	case PolicyError:
		return 0, fmt.Errorf("%w: %d, nearest valid price %d (%s)", ErrPriceUnitMismatch, price, adjusted, mode)
	case PolicyWarn:
		logger := opts.Logger
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("price %d does not match price unit, adjusted to %d (%s)", price, adjusted, mode)
	}
	return adjusted, nil
}
