package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/idhash"
	"trade-emulator/internal/storage"
)

// StateStore implements storage.StateStore using PostgreSQL.
// Holdings are stored as a JSONB object keyed by symbol.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new StateStore.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

type holdingJSON struct {
	Count int64 `json:"count"`
	Price int64 `json:"price"`
}

// InsertBulk adds the ordered states of a run atomically.
func (s *StateStore) InsertBulk(ctx context.Context, runID string, states []*domain.State) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(states) == 0 {
		return nil
	}

	started := time.Now()
	err := s.insertBulk(ctx, runID, states)
	observe("insert_states", started, err)
	return err
}

func (s *StateStore) insertBulk(ctx context.Context, runID string, states []*domain.State) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO emulation_states (
			state_id, run_id, seq, state_date,
			budget, total_appraisement, holdings,
			tx_symbol, tx_amount, tx_price
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10
		)
	`

	for seq, st := range states {
		if st == nil {
			return storage.ErrInvalidInput
		}

		holdings := make(map[string]holdingJSON, len(st.Holdings))
		for symbol, h := range st.Holdings {
			holdings[symbol] = holdingJSON{Count: h.Count, Price: h.Price}
		}
		holdingsJSON, err := json.Marshal(holdings)
		if err != nil {
			return fmt.Errorf("marshal holdings: %w", err)
		}

		var txSymbol *string
		var txAmount, txPrice *int64
		if st.Transaction != nil {
			txSymbol = &st.Transaction.Symbol
			txAmount = &st.Transaction.Amount
			txPrice = &st.Transaction.SellPrice.Value
		}

		_, err = tx.Exec(ctx, query,
			idhash.ComputeStateID(runID, seq, st.Date), runID, seq, st.Date,
			st.Budget, st.TotalAppraisement, holdingsJSON,
			txSymbol, txAmount, txPrice,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			if isMissingRunError(err) {
				return fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
			}
			return fmt.Errorf("insert emulation state in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves the states of a run in emission order.
func (s *StateStore) GetByRunID(ctx context.Context, runID string) ([]*domain.State, error) {
	query := `
		SELECT
			state_date, budget, total_appraisement, holdings,
			tx_symbol, tx_amount, tx_price
		FROM emulation_states
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	started := time.Now()
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		observe("get_states", started, err)
		return nil, fmt.Errorf("query emulation states: %w", err)
	}
	defer rows.Close()

	var result []*domain.State
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			observe("get_states", started, err)
			return nil, fmt.Errorf("scan emulation state: %w", err)
		}
		result = append(result, st)
	}
	err = rows.Err()
	observe("get_states", started, err)
	if err != nil {
		return nil, fmt.Errorf("iterate emulation states: %w", err)
	}

	return result, nil
}

// scanState scans a single row into State.
func scanState(row pgx.Row) (*domain.State, error) {
	var st domain.State
	var holdingsJSON []byte
	var txSymbol *string
	var txAmount, txPrice *int64

	err := row.Scan(
		&st.Date, &st.Budget, &st.TotalAppraisement, &holdingsJSON,
		&txSymbol, &txAmount, &txPrice,
	)
	if err != nil {
		return nil, err
	}

	var holdings map[string]holdingJSON
	if err := json.Unmarshal(holdingsJSON, &holdings); err != nil {
		return nil, fmt.Errorf("unmarshal holdings: %w", err)
	}
	st.Holdings = make(map[string]domain.Holding, len(holdings))
	for symbol, h := range holdings {
		st.Holdings[symbol] = domain.Holding{Count: h.Count, Price: h.Price}
	}

	if txSymbol != nil && txAmount != nil && txPrice != nil {
		st.Transaction = &domain.Transaction{
			Date:      st.Date,
			Symbol:    *txSymbol,
			Amount:    *txAmount,
			SellPrice: domain.AtPrice(*txPrice),
			Resolved:  true,
		}
	}

	return &st, nil
}
