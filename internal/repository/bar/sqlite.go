package bar

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/sink"
)

const batchSize = 500

// Summary describes what is stored for one ticker.
type Summary struct {
	Ticker string
	Bars   int
	First  time.Time
	Last   time.Time
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Write stores tbl in one transaction. Append upserts on (ticker, date);
// overwrite first removes every stored bar of the ticker.
func (r *Repository) Write(ctx context.Context, ticker string, tbl history.BarTable, mode sink.Mode) error {
	ticker = strings.ToUpper(ticker)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write bars: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if mode == sink.ModeOverwrite {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bars WHERE ticker = ?`, ticker); err != nil {
			return fmt.Errorf("write bars: clear %s: %w", ticker, err)
		}
	}

	for i := 0; i < len(tbl.Bars); i += batchSize {
		end := min(i+batchSize, len(tbl.Bars))
		if err := upsert(ctx, tx, ticker, tbl.Bars[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write bars: commit: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, ticker string, bars []history.Bar) error {
	placeholders := make([]string, len(bars))
	args := make([]any, 0, len(bars)*8)
	for j, b := range bars {
		placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, ticker, b.Date.Format(history.DateFormat),
			b.Open, b.High, b.Low, b.Close, b.Price, b.Volume)
	}

	query := fmt.Sprintf( //nolint:gosec // placeholders are not user input
		`INSERT INTO bars (ticker, date, open, high, low, close, price, volume) VALUES %s
		ON CONFLICT (ticker, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, price = excluded.price, volume = excluded.volume`,
		strings.Join(placeholders, ", "),
	)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write bars: %w", err)
	}
	return nil
}

// ListBars returns the stored bars of ticker within [from, to], oldest first.
// Zero bounds are open.
func (r *Repository) ListBars(ctx context.Context, ticker string, from, to time.Time) (history.BarTable, error) {
	ticker = strings.ToUpper(ticker)
	query := `SELECT date, open, high, low, close, price, volume
		FROM bars WHERE ticker = ?`
	args := []any{ticker}
	if !from.IsZero() {
		query += " AND date >= ?"
		args = append(args, from.Format(history.DateFormat))
	}
	if !to.IsZero() {
		query += " AND date <= ?"
		args = append(args, to.Format(history.DateFormat))
	}
	query += " ORDER BY date ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return history.BarTable{}, fmt.Errorf("list bars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tbl := history.BarTable{Ticker: ticker}
	for rows.Next() {
		b := history.Bar{Ticker: ticker}
		var dateStr string
		if err := rows.Scan(&dateStr, &b.Open, &b.High, &b.Low, &b.Close, &b.Price, &b.Volume); err != nil {
			return history.BarTable{}, fmt.Errorf("scan bar: %w", err)
		}
		b.Date, _ = time.Parse(history.DateFormat, dateStr)
		tbl.Bars = append(tbl.Bars, b)
	}

	return tbl, rows.Err()
}

// Tickers summarizes every stored ticker in name order.
func (r *Repository) Tickers(ctx context.Context) ([]Summary, error) {
	const query = `SELECT ticker, COUNT(*), MIN(date), MAX(date)
		FROM bars GROUP BY ticker ORDER BY ticker`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Summary
	for rows.Next() {
		var s Summary
		var first, last string
		if err := rows.Scan(&s.Ticker, &s.Bars, &first, &last); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		s.First, _ = time.Parse(history.DateFormat, first)
		s.Last, _ = time.Parse(history.DateFormat, last)
		out = append(out, s)
	}

	return out, rows.Err()
}
