package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"hostdesk/syncengine/internal/record"
	"hostdesk/syncengine/internal/store"
	syncpkg "hostdesk/syncengine/internal/sync"
)

type stubTableClient struct{}

func (stubTableClient) Pull(ctx context.Context, tableName, tab string, schema []string) (*record.Table, error) {
	return record.NewTable(tableName, schema), nil
}

func (stubTableClient) Push(ctx context.Context, tab string, tbl *record.Table) error {
	return nil
}

func newTestJob(t *testing.T) *TableSyncJob {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`
		CREATE TABLE sync_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			table_name TEXT NOT NULL,
			event TEXT NOT NULL,
			last_sync_at DATETIME NOT NULL,
			UNIQUE(table_name, event)
		);
		CREATE TABLE remote_ids (
			table_name TEXT NOT NULL,
			sync_id TEXT NOT NULL,
			PRIMARY KEY (table_name, sync_id)
		)`)
	if err != nil {
		t.Fatalf("Failed to create history tables: %v", err)
	}

	registry := syncpkg.NewRegistry()
	registry.Register(syncpkg.TableSpec{Name: "bookings", Tab: "Bookings", Schema: []string{"guest", "check_in"}})
	orch := syncpkg.NewOrchestrator(store.NewFlatFileStore(t.TempDir()), stubTableClient{}, syncpkg.NewHistoryRepo(db), registry, nil)
	return NewTableSyncJob(orch, nil)
}

func TestShouldRunInitialSync(t *testing.T) {
	job := newTestJob(t)
	ctx := context.Background()

	if !job.shouldRunInitialSync(ctx, time.Hour) {
		t.Error("Expected an initial run when no table has ever synced")
	}

	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if job.shouldRunInitialSync(ctx, time.Hour) {
		t.Error("Expected a restart right after a pass to skip the initial run")
	}

	if !job.shouldRunInitialSync(ctx, time.Nanosecond) {
		t.Error("Expected an initial run once the interval has elapsed")
	}
}
