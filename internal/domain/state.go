package domain

import "time"

// InitialDate is the date of the sentinel initial state.
var InitialDate = Date(1900, time.January, 1)

// Holding is a position in one symbol valued at Price.
type Holding struct {
	Count int64 // units held, may be negative
	Price int64 // mark-to-market or last traded price
}

// Value returns Count * Price.
func (h Holding) Value() int64 {
	return h.Count * h.Price
}

// State is an immutable portfolio snapshot after a day or a transaction.
// TotalAppraisement always equals Budget plus the value of every holding.
type State struct {
	Date              time.Time          // day of the snapshot
	Budget            int64              // cash
	Holdings          map[string]Holding // keyed by symbol
	TotalAppraisement int64              // Budget + Σ Count*Price
	Transaction       *Transaction       // applied transaction, nil on hold days
}

// InitialState returns the sentinel state seeding runs without an explicit start.
func InitialState() *State {
	return &State{
		Date:     InitialDate,
		Holdings: map[string]Holding{},
	}
}

// IsInitial reports whether s is equivalent to the sentinel initial state.
func (s *State) IsInitial() bool {
	return s.Date.Equal(InitialDate) && s.Budget == 0 && len(s.Holdings) == 0 && s.Transaction == nil
}

// HoldingsValue returns Σ Count*Price.
func (s *State) HoldingsValue() int64 {
	var total int64
	for _, h := range s.Holdings {
		total += h.Value()
	}
	return total
}

// CloneHoldings returns a copy of the holdings map.
func (s *State) CloneHoldings() map[string]Holding {
	out := make(map[string]Holding, len(s.Holdings))
	for k, v := range s.Holdings {
		out[k] = v
	}
	return out
}

// DrawdownSample records the drawdown ratio observed on a hold day.
type DrawdownSample struct {
	Date     time.Time
	Drawdown float64 // (current - reference) / reference, 0 when undefined
}
