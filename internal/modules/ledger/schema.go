package ledger

import (
	"database/sql"
	"fmt"
)

// Schema creates the trades table if it does not exist. The table is an
// append-only audit trail: rows are never updated or deleted once written.
const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	instrument TEXT NOT NULL,
	action TEXT NOT NULL,
	shares INTEGER NOT NULL,
	price REAL NOT NULL,
	commission REAL NOT NULL,
	total_cost REAL NOT NULL,
	reason TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(date);
CREATE INDEX IF NOT EXISTS idx_trades_instrument ON trades(instrument);
`

// InitSchema applies the ledger schema to the database.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return nil
}
