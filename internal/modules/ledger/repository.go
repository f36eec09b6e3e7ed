// Package ledger persists the append-only trade ledger for audit and
// reporting. The in-memory portfolio remains the source of truth during a
// run; this store is what reporting collaborators read afterwards.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brquant/backtest/internal/modules/portfolio"
)

// tradesColumns is the list of columns for the trades table.
// Column order must match the scan helpers below.
const tradesColumns = `id, date, instrument, action, shares, price, commission, total_cost, reason`

// Repository handles trade ledger database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Append inserts one executed trade. The trade ID is unique per execution,
// so replays of the same trade are rejected by the primary key.
func (r *Repository) Append(trade portfolio.Trade) error {
	query := `
		INSERT INTO trades
		(id, date, instrument, action, shares, price, commission, total_cost, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		trade.ID,
		trade.Date.Format("2006-01-02"),
		trade.Instrument,
		string(trade.Action),
		trade.Shares,
		trade.Price,
		trade.Commission,
		trade.TotalCost,
		string(trade.Reason),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append trade: %w", err)
	}

	r.log.Debug().
		Str("instrument", trade.Instrument).
		Str("action", string(trade.Action)).
		Int64("shares", trade.Shares).
		Msg("Trade appended to ledger")

	return nil
}

// AppendAll inserts a batch of trades in one transaction.
func (r *Repository) AppendAll(trades []portfolio.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO trades
		(id, date, instrument, action, shares, price, commission, total_cost, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, trade := range trades {
		if _, err := stmt.Exec(
			trade.ID,
			trade.Date.Format("2006-01-02"),
			trade.Instrument,
			string(trade.Action),
			trade.Shares,
			trade.Price,
			trade.Commission,
			trade.TotalCost,
			string(trade.Reason),
			now,
		); err != nil {
			return fmt.Errorf("failed to append trade %s: %w", trade.ID, err)
		}
	}

	return tx.Commit()
}

// List returns all trades ordered by date, oldest first. Within a date,
// rowid preserves insertion order, which is execution order: the table is
// append-only and rows are never deleted, so rowids stay monotonic.
func (r *Repository) List() ([]portfolio.Trade, error) {
	query := "SELECT " + tradesColumns + " FROM trades ORDER BY date ASC, rowid ASC"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListByInstrument returns all trades for one instrument ordered by date.
func (r *Repository) ListByInstrument(instrument string) ([]portfolio.Trade, error) {
	query := "SELECT " + tradesColumns + " FROM trades WHERE instrument = ? ORDER BY date ASC, rowid ASC"

	rows, err := r.db.Query(query, instrument)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for %s: %w", instrument, err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// Count returns the number of ledger entries.
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM trades").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

func scanTrades(rows *sql.Rows) ([]portfolio.Trade, error) {
	var trades []portfolio.Trade
	for rows.Next() {
		var (
			t      portfolio.Trade
			date   string
			action string
			reason string
		)
		if err := rows.Scan(&t.ID, &date, &t.Instrument, &action, &t.Shares, &t.Price, &t.Commission, &t.TotalCost, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse trade date %q: %w", date, err)
		}
		t.Date = parsed
		t.Action = portfolio.TradeAction(action)
		t.Reason = portfolio.TradeReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
