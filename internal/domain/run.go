package domain

import "time"

// EmulationRun describes one persisted emulation.
// Corresponds to emulation_runs table in PostgreSQL.
type EmulationRun struct {
	RunID                   string      // random identifier
	StartDate               time.Time   // first walked day
	EndDate                 time.Time   // last walked day
	TransactionCount        int         // input transactions
	StateCount              int         // emitted states including the head
	OnlyIfTransactionExists bool        // hold days skipped
	Commission              *Commission // nil when no commission applied
	PanicSellRate           *float64    // nil when panic liquidation disabled
	FinalBudget             int64
	FinalAppraisement       int64
	PanicEvents             int
	CreatedAt               time.Time
}
