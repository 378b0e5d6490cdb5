package clickhouse

import (
	"context"
	"fmt"
	"time"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/storage"
)

// DrawdownStore implements storage.DrawdownStore using ClickHouse.
type DrawdownStore struct {
	conn *Conn
}

// NewDrawdownStore creates a new DrawdownStore.
func NewDrawdownStore(conn *Conn) *DrawdownStore {
	return &DrawdownStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DrawdownStore = (*DrawdownStore)(nil)

// InsertBulk adds the samples of a run. Fails if the run already has samples.
func (s *DrawdownStore) InsertBulk(ctx context.Context, runID string, samples []domain.DrawdownSample) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(samples) == 0 {
		return nil
	}

	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM drawdown_samples WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	started := time.Now()
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO drawdown_samples (run_id, seq, date, drawdown)
	`)
	if err != nil {
		observe("insert_drawdowns", started, err)
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, sample := range samples {
		if err := batch.Append(runID, uint32(i), domain.Day(sample.Date), sample.Drawdown); err != nil {
			observe("insert_drawdowns", started, err)
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	err = batch.Send()
	observe("insert_drawdowns", started, err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves the samples of a run in emission order.
func (s *DrawdownStore) GetByRunID(ctx context.Context, runID string) ([]domain.DrawdownSample, error) {
	query := `
		SELECT date, drawdown
		FROM drawdown_samples
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var result []domain.DrawdownSample
	for rows.Next() {
		var sample domain.DrawdownSample
		if err := rows.Scan(&sample.Date, &sample.Drawdown); err != nil {
			return nil, fmt.Errorf("scan drawdown row: %w", err)
		}
		sample.Date = domain.Day(sample.Date)
		result = append(result, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drawdown rows: %w", err)
	}

	return result, nil
}
