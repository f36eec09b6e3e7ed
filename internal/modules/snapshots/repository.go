// Package snapshots persists the per-period portfolio history series that
// feeds the equity-curve and drawdown reports.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brquant/backtest/internal/modules/portfolio"
)

const snapshotColumns = `date, total_value, cash, positions_value, num_positions, daily_return_pct`

const schema = `
CREATE TABLE IF NOT EXISTS portfolio_snapshots (
	date TEXT PRIMARY KEY,
	total_value REAL NOT NULL,
	cash REAL NOT NULL,
	positions_value REAL NOT NULL,
	num_positions INTEGER NOT NULL,
	daily_return_pct REAL NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Repository handles portfolio snapshot database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshots repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// InitSchema applies the snapshots schema to the database.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize snapshots schema: %w", err)
	}
	return nil
}

// Save upserts one history record, keyed by date. Re-running a simulation
// over the same date range overwrites the previous run's snapshots.
func (r *Repository) Save(rec portfolio.HistoryRecord) error {
	query := `
		INSERT INTO portfolio_snapshots
		(date, total_value, cash, positions_value, num_positions, daily_return_pct, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_value = excluded.total_value,
			cash = excluded.cash,
			positions_value = excluded.positions_value,
			num_positions = excluded.num_positions,
			daily_return_pct = excluded.daily_return_pct,
			created_at = excluded.created_at
	`

	_, err := r.db.Exec(query,
		rec.Date.Format("2006-01-02"),
		rec.TotalValue,
		rec.Cash,
		rec.PositionsValue,
		rec.NumPositions,
		rec.DailyReturnPct,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// List returns all snapshots ordered by date, oldest first.
func (r *Repository) List() ([]portfolio.HistoryRecord, error) {
	query := "SELECT " + snapshotColumns + " FROM portfolio_snapshots ORDER BY date ASC"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var records []portfolio.HistoryRecord
	for rows.Next() {
		var (
			rec  portfolio.HistoryRecord
			date string
		)
		if err := rows.Scan(&date, &rec.TotalValue, &rec.Cash, &rec.PositionsValue, &rec.NumPositions, &rec.DailyReturnPct); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot date %q: %w", date, err)
		}
		rec.Date = parsed
		records = append(records, rec)
	}
	return records, rows.Err()
}
