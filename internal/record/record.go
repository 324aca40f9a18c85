package record

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"hostdesk/syncengine/internal/logging"
)

// Reserved field names. These are bookkeeping, not payload: they are excluded
// from content hashing and stripped by the flat-file store on save.
const (
	FieldSyncID      = "sync_id"
	FieldLastSync    = "last_sync"
	FieldContentHash = "content_hash"
)

// TimestampLayout is the wire format for last_sync values.
const TimestampLayout = time.RFC3339

// Record is one logical row of business data. All payload values are strings;
// an empty string is equivalent to the field being absent.
type Record struct {
	SyncID      string
	Payload     map[string]string
	LastSync    time.Time
	ContentHash string
}

// NewRecord creates a record with an empty payload and no identity yet.
func NewRecord() *Record {
	return &Record{Payload: make(map[string]string)}
}

// Get returns the payload value for a field, empty string when absent.
func (r *Record) Get(field string) string {
	return r.Payload[field]
}

// Set assigns a payload value. Bookkeeping fields are rejected silently;
// they have dedicated struct fields.
func (r *Record) Set(field, value string) {
	if IsBookkeepingField(field) {
		return
	}
	if r.Payload == nil {
		r.Payload = make(map[string]string)
	}
	r.Payload[field] = value
}

// Touch stamps the record as reconciled now and refreshes its hash.
func (r *Record) Touch(now time.Time) {
	r.LastSync = now.UTC()
	r.ContentHash = r.Hash()
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	payload := make(map[string]string, len(r.Payload))
	for k, v := range r.Payload {
		payload[k] = v
	}
	return &Record{
		SyncID:      r.SyncID,
		Payload:     payload,
		LastSync:    r.LastSync,
		ContentHash: r.ContentHash,
	}
}

// IsBookkeepingField reports whether a field name is reserved.
func IsBookkeepingField(name string) bool {
	switch name {
	case FieldSyncID, FieldLastSync, FieldContentHash:
		return true
	}
	return false
}

// Table is the full set of records for one entity type, backed by one flat
// file and one remote tab. Schema lists the payload field names in column
// order; bookkeeping columns are managed by the stores, not the schema.
type Table struct {
	Name    string
	Schema  []string
	Records []*Record

	// Minted counts the identities created by the last EnsureIDs call.
	// A side that came back with minted ids has rows whose identity is not
	// persisted yet; callers must write it back even when the content is
	// otherwise unchanged.
	Minted int
}

// NewTable creates an empty table with the given payload schema.
func NewTable(name string, schema []string) *Table {
	return &Table{Name: name, Schema: schema}
}

// MintID returns a fresh process-unique identifier.
func MintID() string {
	return uuid.New().String()
}

// EnsureIDs mints a sync_id for every record lacking one, in place, and
// returns how many were minted. Must run before hashing or remote comparison:
// hashing excludes sync_id but matching depends on it.
func (t *Table) EnsureIDs() int {
	minted := 0
	for _, r := range t.Records {
		if strings.TrimSpace(r.SyncID) == "" {
			r.SyncID = MintID()
			minted++
		}
	}
	t.Minted = minted
	return minted
}

// Rehash recomputes every record's content hash.
func (t *Table) Rehash() {
	for _, r := range t.Records {
		r.ContentHash = r.Hash()
	}
}

// CollapseDuplicateIDs keeps the first-encountered record for each sync_id
// and discards the rest, returning the discarded ids. Duplicate ids mean
// upstream corruption (a human copied a row); the sync must stay usable, so
// this warns instead of failing.
func (t *Table) CollapseDuplicateIDs() []string {
	seen := make(map[string]bool, len(t.Records))
	var discarded []string
	kept := t.Records[:0]
	for _, r := range t.Records {
		if seen[r.SyncID] {
			discarded = append(discarded, r.SyncID)
			continue
		}
		seen[r.SyncID] = true
		kept = append(kept, r)
	}
	t.Records = kept
	if len(discarded) > 0 {
		logging.Warn("duplicate sync_id rows discarded",
			"table", t.Name,
			"count", len(discarded),
			"sync_ids", strings.Join(discarded, ","),
		)
	}
	return discarded
}

// Find returns the record with the given sync_id, or nil.
func (t *Table) Find(syncID string) *Record {
	for _, r := range t.Records {
		if r.SyncID == syncID {
			return r
		}
	}
	return nil
}

// Append adds a record to the table.
func (t *Table) Append(r *Record) {
	t.Records = append(t.Records, r)
}

// FieldOrder returns the schema merged with any extra payload fields found in
// the records, extras sorted and appended after the schema. Keeps column
// layout stable while tolerating fields a human added remotely.
func (t *Table) FieldOrder() []string {
	inSchema := make(map[string]bool, len(t.Schema))
	for _, f := range t.Schema {
		inSchema[f] = true
	}
	extraSet := make(map[string]bool)
	for _, r := range t.Records {
		for f := range r.Payload {
			if !inSchema[f] && !IsBookkeepingField(f) {
				extraSet[f] = true
			}
		}
	}
	extras := make([]string, 0, len(extraSet))
	for f := range extraSet {
		extras = append(extras, f)
	}
	sort.Strings(extras)
	return append(append([]string{}, t.Schema...), extras...)
}

// ParseTimestamp parses a last_sync cell value. Empty or malformed values
// come back as the zero time (treated as "missing" by conflict resolution).
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// FormatTimestamp renders a last_sync value, empty string for the zero time.
func FormatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(TimestampLayout)
}
