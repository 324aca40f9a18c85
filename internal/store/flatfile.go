package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"hostdesk/syncengine/internal/logging"
	"hostdesk/syncengine/internal/record"
)

// FlatFileStore persists one table per CSV file under a data directory.
// The file is the human-inspectable working cache: UTF-8, one header row,
// sync_id in the first column, all cells plain strings. Bookkeeping columns
// (content_hash, last_sync) are derived and never written to disk.
type FlatFileStore struct {
	dataDir string
}

// NewFlatFileStore creates a store rooted at dataDir.
func NewFlatFileStore(dataDir string) *FlatFileStore {
	return &FlatFileStore{dataDir: dataDir}
}

// Path returns the on-disk location for a table.
func (s *FlatFileStore) Path(tableName string) string {
	return filepath.Join(s.dataDir, tableName+".csv")
}

// Exists reports whether the table's file is present. The orchestrator uses
// this to pick the bootstrap (pull-only) mode.
func (s *FlatFileStore) Exists(tableName string) bool {
	_, err := os.Stat(s.Path(tableName))
	return err == nil
}

// Load reads a table from disk. A missing file yields an empty table, not an
// error. Every returned record has a sync_id; freshly minted ids are
// persisted back to the file immediately so no record ever round-trips
// without an identity.
func (s *FlatFileStore) Load(tableName string, schema []string) (*record.Table, error) {
	tbl := record.NewTable(tableName, schema)

	f, err := os.Open(s.Path(tableName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tbl, nil
		}
		return nil, fmt.Errorf("load table %s: %w", tableName, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", tableName, err)
	}
	if len(rows) == 0 {
		return tbl, nil
	}

	header := rows[0]
	for _, row := range rows[1:] {
		r := record.NewRecord()
		for i, name := range header {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			switch name {
			case record.FieldSyncID:
				r.SyncID = value
			case record.FieldLastSync, record.FieldContentHash:
				// Stale bookkeeping from a manual edit; derived on demand.
			default:
				r.Set(name, value)
			}
		}
		tbl.Append(r)
	}

	if minted := tbl.EnsureIDs(); minted > 0 {
		logging.Info("minted sync_ids for local records", "table", tableName, "minted", minted)
		if err := s.Save(tbl); err != nil {
			return nil, err
		}
	}
	tbl.Rehash()

	return tbl, nil
}

// Save rewrites the table's file in full. The write goes to a temp file in
// the same directory and is renamed over the target, so readers never see a
// half-written table.
func (s *FlatFileStore) Save(tbl *record.Table) error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("save table %s: %w", tbl.Name, err)
	}

	fields := tbl.FieldOrder()
	header := append([]string{record.FieldSyncID}, fields...)

	tmp, err := os.CreateTemp(s.dataDir, tbl.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("save table %s: %w", tbl.Name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("save table %s: %w", tbl.Name, err)
	}
	for _, r := range tbl.Records {
		row := make([]string, 0, len(header))
		row = append(row, r.SyncID)
		for _, name := range fields {
			row = append(row, r.Get(name))
		}
		if err := writer.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("save table %s: %w", tbl.Name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("save table %s: %w", tbl.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save table %s: %w", tbl.Name, err)
	}

	if err := os.Rename(tmpName, s.Path(tbl.Name)); err != nil {
		return fmt.Errorf("save table %s: %w", tbl.Name, err)
	}
	return nil
}

// Append adds one record to the table's file without rewriting it, the
// ingestion fast path. When the file does not exist yet it is created with a
// header derived from the schema; otherwise the existing header dictates the
// column order.
func (s *FlatFileStore) Append(tableName string, schema []string, r *record.Record) error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("append to table %s: %w", tableName, err)
	}

	header := append([]string{record.FieldSyncID}, schema...)
	writeHeader := true

	if existing, err := s.readHeader(tableName); err != nil {
		return err
	} else if existing != nil {
		header = existing
		writeHeader = false
	}

	f, err := os.OpenFile(s.Path(tableName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append to table %s: %w", tableName, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if writeHeader {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("append to table %s: %w", tableName, err)
		}
	}

	row := make([]string, 0, len(header))
	for _, name := range header {
		if name == record.FieldSyncID {
			row = append(row, r.SyncID)
			continue
		}
		row = append(row, r.Get(name))
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("append to table %s: %w", tableName, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("append to table %s: %w", tableName, err)
	}
	return nil
}

// readHeader returns the existing header row, or nil when the file is absent
// or empty.
func (s *FlatFileStore) readHeader(tableName string) ([]string, error) {
	f, err := os.Open(s.Path(tableName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("append to table %s: %w", tableName, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		// Empty file: treat as absent and write a fresh header.
		return nil, nil
	}
	return header, nil
}
