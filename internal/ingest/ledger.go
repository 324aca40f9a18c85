package ingest

import (
	"context"
	"fmt"
	"time"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerEntry is one durable sighting of an external event id. The unique
// index on external_id is what makes ingestion idempotent at the storage
// layer: a second insert of the same id affects zero rows.
type LedgerEntry struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ExternalID string    `gorm:"column:external_id;type:text;not null;uniqueIndex:ux_ledger_external_id"`
	Table      string    `gorm:"column:table_name;type:text;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
}

// TableName implements the GORM tabler interface
func (LedgerEntry) TableName() string { return "ingestion_ledger" }

// LedgerRepo handles ingestion_ledger operations
type LedgerRepo struct {
	db *gormlib.DB
}

// NewLedgerRepo creates a new ingestion ledger repository
func NewLedgerRepo(db *gormlib.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// Record inserts a sighting of externalID. Returns true when this call
// recorded the id for the first time, false when it was already present;
// the conflict is expected, not an error.
func (r *LedgerRepo) Record(ctx context.Context, externalID, tableName string) (bool, error) {
	entry := LedgerEntry{
		ExternalID: externalID,
		Table:      tableName,
		ReceivedAt: time.Now().UTC(),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&entry)

	if result.Error != nil {
		return false, fmt.Errorf("failed to record external id %s: %w", externalID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Forget removes a sighting. Used to compensate when the record append that
// should follow the ledger insert fails, so a redelivery can retry.
func (r *LedgerRepo) Forget(ctx context.Context, externalID string) error {
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		Delete(&LedgerEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to forget external id %s: %w", externalID, err)
	}
	return nil
}
