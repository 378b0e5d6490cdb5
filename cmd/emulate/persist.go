package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trade-emulator/internal/config"
	"trade-emulator/internal/domain"
	"trade-emulator/internal/emulation"
	"trade-emulator/internal/storage"
	chstore "trade-emulator/internal/storage/clickhouse"
	"trade-emulator/internal/storage/memory"
	"trade-emulator/internal/storage/migrations"
	pgstore "trade-emulator/internal/storage/postgres"
)

// runStores groups the stores a finished run is written to.
type runStores struct {
	runs      storage.RunStore
	states    storage.StateStore
	drawdowns storage.DrawdownStore
}

// openStores connects to PostgreSQL (runs, states) and ClickHouse (drawdown samples),
// applying migrations first. useMemory skips both databases.
func openStores(ctx context.Context, cfg *config.Config, useMemory bool) (*runStores, func(), error) {
	if useMemory {
		return &runStores{
			runs:      memory.NewRunStore(),
			states:    memory.NewStateStore(),
			drawdowns: memory.NewDrawdownStore(),
		}, func() {}, nil
	}

	if cfg.PostgresDSN == "" {
		return nil, nil, errors.New("EMULATOR_POSTGRES_DSN is required when not using --use-memory (runs and states)")
	}
	if cfg.ClickhouseDSN == "" {
		return nil, nil, errors.New("EMULATOR_CLICKHOUSE_DSN is required when not using --use-memory (drawdown samples)")
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &runStores{
		runs:      pgstore.NewRunStore(pool),
		states:    pgstore.NewStateStore(pool),
		drawdowns: chstore.NewDrawdownStore(conn),
	}
	return stores, func() {
		conn.Close()
		pool.Close()
	}, nil
}

// save writes the run record before its states so the foreign key holds.
func (s *runStores) save(ctx context.Context, run *domain.EmulationRun, res *emulation.Result) error {
	if err := s.runs.Insert(ctx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := s.states.InsertBulk(ctx, run.RunID, res.States); err != nil {
		return fmt.Errorf("insert states: %w", err)
	}
	if len(res.Drawdowns) > 0 {
		if err := s.drawdowns.InsertBulk(ctx, run.RunID, res.Drawdowns); err != nil {
			return fmt.Errorf("insert drawdown samples: %w", err)
		}
	}
	return nil
}

// newRunRecord describes a finished run.
func newRunRecord(runID string, txs []domain.Transaction, opts emulation.RunOptions, res *emulation.Result) *domain.EmulationRun {
	head := res.States[0]
	last := res.States[len(res.States)-1]

	run := &domain.EmulationRun{
		RunID:                   runID,
		StartDate:               head.Date,
		EndDate:                 last.Date,
		TransactionCount:        len(txs),
		StateCount:              len(res.States),
		OnlyIfTransactionExists: opts.OnlyIfTransactionExists,
		Commission:              opts.Commission,
		FinalBudget:             last.Budget,
		FinalAppraisement:       last.TotalAppraisement,
		PanicEvents:             len(res.PanicEvents),
		CreatedAt:               time.Now().UTC(),
	}
	if len(res.States) > 1 {
		run.StartDate = res.States[1].Date
	}
	if opts.PanicSellRate != 0 {
		rate := opts.PanicSellRate
		run.PanicSellRate = &rate
	}
	return run
}
