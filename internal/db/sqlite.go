package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var DB *sqlx.DB

// InitSQLite opens the embedded database holding the ingestion ledger and
// the sync history.
func InitSQLite(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
	}

	var err error
	DB, err = sqlx.Connect("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	// sqlite handles one writer at a time
	DB.SetMaxOpenConns(1)

	if _, err := DB.Exec(syncHistorySchema); err != nil {
		return fmt.Errorf("failed to create sync_history table: %w", err)
	}
	return nil
}

const syncHistorySchema = `
CREATE TABLE IF NOT EXISTS sync_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL,
	event TEXT NOT NULL,
	last_sync_at DATETIME NOT NULL,
	UNIQUE(table_name, event)
);
CREATE TABLE IF NOT EXISTS remote_ids (
	table_name TEXT NOT NULL,
	sync_id TEXT NOT NULL,
	PRIMARY KEY (table_name, sync_id)
);`
