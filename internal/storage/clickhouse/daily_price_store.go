package clickhouse

import (
	"context"
	"fmt"
	"time"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/storage"
)

// DailyPriceStore implements storage.DailyPriceStore using ClickHouse.
type DailyPriceStore struct {
	conn *Conn
}

// NewDailyPriceStore creates a new DailyPriceStore.
func NewDailyPriceStore(conn *Conn) *DailyPriceStore {
	return &DailyPriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DailyPriceStore = (*DailyPriceStore)(nil)

// InsertBulk adds multiple rows. Fails entire batch on duplicate (symbol, date).
func (s *DailyPriceStore) InsertBulk(ctx context.Context, rows []*domain.DailyPrice) error {
	if len(rows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol string
		date   time.Time
	}
	seen := make(map[key]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.Symbol, domain.Day(r.Date)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, r := range rows {
		exists, err := s.exists(ctx, r.Symbol, domain.Day(r.Date))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	started := time.Now()
	err := s.send(ctx, rows)
	observe("insert_daily_prices", started, err)
	return err
}

func (s *DailyPriceStore) send(ctx context.Context, rows []*domain.DailyPrice) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_prices (
			symbol, date, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.Symbol, domain.Day(r.Date),
			r.Open, r.High, r.Low, r.Close, r.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByDateRange retrieves rows for a symbol within [start, endExclusive), ordered by date ASC.
func (s *DailyPriceStore) GetByDateRange(ctx context.Context, symbol string, start, endExclusive time.Time) ([]*domain.DailyPrice, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume
		FROM daily_prices FINAL
		WHERE symbol = ? AND date >= ? AND date < ?
		ORDER BY date ASC
	`

	started := time.Now()
	rows, err := s.conn.Query(ctx, query, symbol, domain.Day(start), domain.Day(endExclusive))
	if err != nil {
		observe("get_daily_prices", started, err)
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	result, err := scanDailyPrices(rows)
	observe("get_daily_prices", started, err)
	return result, err
}

// exists checks if a row with the given key exists.
func (s *DailyPriceStore) exists(ctx context.Context, symbol string, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM daily_prices
		WHERE symbol = ? AND date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanDailyPrices scans multiple rows.
func scanDailyPrices(rows chRows) ([]*domain.DailyPrice, error) {
	var result []*domain.DailyPrice

	for rows.Next() {
		var p domain.DailyPrice
		err := rows.Scan(
			&p.Symbol, &p.Date,
			&p.Open, &p.High, &p.Low, &p.Close, &p.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan daily price row: %w", err)
		}
		p.Date = domain.Day(p.Date)
		result = append(result, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily price rows: %w", err)
	}

	return result, nil
}
