// Package reporting renders emulation results as CSV and Markdown.
package reporting

import (
	"time"

	"trade-emulator/internal/emulation"
)

// Summary condenses one emulation run.
type Summary struct {
	// Metadata
	RunID       string
	GeneratedAt time.Time

	// Walked range, excluding the head state
	StartDate time.Time
	EndDate   time.Time

	States              int // emitted states excluding the head
	TransactionsApplied int
	HoldDays            int

	FinalBudget       int64
	FinalAppraisement int64

	PeakAppraisement int64
	PeakDate         time.Time

	// MaxDrawdown is the largest fall of TotalAppraisement from a prior peak.
	MaxDrawdown     int64
	MaxDrawdownDate time.Time

	// WorstDrawdownRatio is the lowest sampled ratio, 0 when panic liquidation was off.
	WorstDrawdownRatio float64

	FinalHoldings []HoldingRow
	PanicEvents   []emulation.PanicEvent
}

// HoldingRow is one final position, sorted by symbol.
type HoldingRow struct {
	Symbol string
	Count  int64
	Price  int64
	Value  int64
}
