package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// HistoryRepo handles sync_history operations. One row per (table, event),
// updated in place on every successful pass.
type HistoryRepo struct {
	db *sqlx.DB
}

// NewHistoryRepo creates a new sync history repository
func NewHistoryRepo(db *sqlx.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// RecordSync records a successful pass for a table
func (r *HistoryRepo) RecordSync(ctx context.Context, tableName, event string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_history (table_name, event, last_sync_at)
		VALUES (?, ?, ?)
		ON CONFLICT(table_name, event) DO UPDATE SET last_sync_at = excluded.last_sync_at`,
		tableName, event, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record sync for %s/%s: %w", tableName, event, err)
	}
	return nil
}

// GetLastSyncTime retrieves the most recent pass timestamp for a table and
// event, nil when the pass never ran.
func (r *HistoryRepo) GetLastSyncTime(ctx context.Context, tableName, event string) (*time.Time, error) {
	var ts time.Time
	err := r.db.GetContext(ctx, &ts, `
		SELECT last_sync_at FROM sync_history
		WHERE table_name = ? AND event = ?`,
		tableName, event,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query sync history for %s: %w", tableName, err)
	}
	return &ts, nil
}

// RemoteIDs returns the sync_ids the remote table held after the last
// successful pass. Deletion propagation is gated on membership: a local-only
// record whose id is in the snapshot was deleted in the sheet; one that never
// reached the remote (a fresh webhook commit, say) is an addition.
func (r *HistoryRepo) RemoteIDs(ctx context.Context, tableName string) (map[string]bool, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT sync_id FROM remote_ids WHERE table_name = ?`,
		tableName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query remote ids for %s: %w", tableName, err)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	return seen, nil
}

// ReplaceRemoteIDs replaces the snapshot of ids the remote table holds.
// Called after every successful pass with the table as the remote now has it.
func (r *HistoryRepo) ReplaceRemoteIDs(ctx context.Context, tableName string, ids []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin remote id snapshot for %s: %w", tableName, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM remote_ids WHERE table_name = ?`, tableName); err != nil {
		return fmt.Errorf("failed to clear remote ids for %s: %w", tableName, err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO remote_ids (table_name, sync_id) VALUES (?, ?)`,
			tableName, id,
		); err != nil {
			return fmt.Errorf("failed to record remote id %s for %s: %w", id, tableName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit remote id snapshot for %s: %w", tableName, err)
	}
	return nil
}
