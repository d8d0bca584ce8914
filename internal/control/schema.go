package control

import "database/sql"

// Schema is control.db's single KV table. TRADING_ENABLED is one row.
const Schema = `
CREATE TABLE IF NOT EXISTS control_flags (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// InitSchema creates the control_flags table if it does not already exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
