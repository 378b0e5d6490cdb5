package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.EmulationRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO emulation_runs (
			run_id, start_date, end_date,
			transaction_count, state_count, only_if_transaction_exists,
			commission_buy_rate, commission_sell_rate, panic_sell_rate,
			final_budget, final_appraisement, panic_events, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13
		)
	`

	var buyRate, sellRate *float64
	if run.Commission != nil {
		buyRate = &run.Commission.BuyRate
		sellRate = &run.Commission.SellRate
	}

	started := time.Now()
	_, err := s.pool.Exec(ctx, query,
		run.RunID, run.StartDate, run.EndDate,
		run.TransactionCount, run.StateCount, run.OnlyIfTransactionExists,
		buyRate, sellRate, run.PanicSellRate,
		run.FinalBudget, run.FinalAppraisement, run.PanicEvents, run.CreatedAt,
	)
	observe("insert_run", started, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert emulation run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.EmulationRun, error) {
	query := `
		SELECT
			run_id, start_date, end_date,
			transaction_count, state_count, only_if_transaction_exists,
			commission_buy_rate, commission_sell_rate, panic_sell_rate,
			final_budget, final_appraisement, panic_events, created_at
		FROM emulation_runs
		WHERE run_id = $1
	`

	started := time.Now()
	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	observe("get_run", started, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get emulation run: %w", err)
	}
	return run, nil
}

// scanRun scans a single row into EmulationRun.
func scanRun(row pgx.Row) (*domain.EmulationRun, error) {
	var run domain.EmulationRun
	var buyRate, sellRate *float64

	err := row.Scan(
		&run.RunID, &run.StartDate, &run.EndDate,
		&run.TransactionCount, &run.StateCount, &run.OnlyIfTransactionExists,
		&buyRate, &sellRate, &run.PanicSellRate,
		&run.FinalBudget, &run.FinalAppraisement, &run.PanicEvents, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if buyRate != nil || sellRate != nil {
		run.Commission = &domain.Commission{}
		if buyRate != nil {
			run.Commission.BuyRate = *buyRate
		}
		if sellRate != nil {
			run.Commission.SellRate = *sellRate
		}
	}
	run.CreatedAt = run.CreatedAt.UTC()
	return &run, nil
}
