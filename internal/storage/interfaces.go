package storage

import (
	"context"
	"time"

	"trade-emulator/internal/domain"
)

// DailyPriceStore provides access to daily_prices storage.
type DailyPriceStore interface {
	// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate (symbol, date).
	InsertBulk(ctx context.Context, rows []*domain.DailyPrice) error

	// GetByDateRange retrieves rows for a symbol within [start, endExclusive), ordered by date ASC.
	GetByDateRange(ctx context.Context, symbol string, start, endExclusive time.Time) ([]*domain.DailyPrice, error)
}

// RunStore provides access to emulation_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.EmulationRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.EmulationRun, error)
}

// StateStore provides access to emulation_states storage.
type StateStore interface {
	// InsertBulk adds the ordered states of a run atomically.
	// Returns ErrDuplicateKey if the run already has states. PostgreSQL also returns
	// ErrNotFound when the run itself was never inserted.
	InsertBulk(ctx context.Context, runID string, states []*domain.State) error

	// GetByRunID retrieves the states of a run in emission order.
	GetByRunID(ctx context.Context, runID string) ([]*domain.State, error)
}

// DrawdownStore provides access to drawdown_samples storage.
type DrawdownStore interface {
	// InsertBulk adds the drawdown samples of a run atomically.
	// Returns ErrDuplicateKey if the run already has samples.
	InsertBulk(ctx context.Context, runID string, samples []domain.DrawdownSample) error

	// GetByRunID retrieves the samples of a run in emission order.
	GetByRunID(ctx context.Context, runID string) ([]domain.DrawdownSample, error)
}
