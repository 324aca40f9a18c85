package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"hostdesk/syncengine/internal/logging"
	"hostdesk/syncengine/internal/models"
	"hostdesk/syncengine/internal/models/dtos"
	"hostdesk/syncengine/internal/record"
	"hostdesk/syncengine/internal/store"
)

// State is the terminal state of one webhook delivery
type State string

const (
	StateFilteredOut      State = "filtered_out"
	StateDuplicateSkipped State = "duplicate_skipped"
	StateCommitted        State = "committed"
)

// Outcome describes what the gate did with a delivery. Filtered and
// duplicate deliveries are silent successes: no store mutation, no error.
type Outcome struct {
	State      State
	Reason     string
	ExternalID string
	Record     *record.Record
}

// EventFilter is the business eligibility check applied before any dedup or
// storage work.
type EventFilter struct {
	// EligibleTypes lists the event type discriminators that produce records.
	EligibleTypes map[string]bool
	// BlockedSenders are marketplace sender ids to drop outright.
	BlockedSenders map[string]bool
}

// DefaultBookingFilter accepts the booking-shaped event types.
func DefaultBookingFilter() *EventFilter {
	return &EventFilter{
		EligibleTypes: map[string]bool{
			"booking_request":   true,
			"booking_confirmed": true,
		},
		BlockedSenders: map[string]bool{},
	}
}

// Eligible returns ok plus a reason when the event is to be dropped.
func (f *EventFilter) Eligible(event *dtos.MarketplaceEvent) (bool, string) {
	if !f.EligibleTypes[event.Type] {
		return false, fmt.Sprintf("event type %q not eligible", event.Type)
	}
	if f.BlockedSenders[event.Sender.ID] {
		return false, fmt.Sprintf("sender %q blocked", event.Sender.ID)
	}
	return true, ""
}

// Gate accepts marketplace webhook deliveries and guarantees the
// corresponding record is created at most once per external id, no matter
// how many times the marketplace redelivers.
//
// Deliberately independent of the sync orchestrator: the gate commits to the
// local flat file only, and the next orchestrator pass publishes the row.
type Gate struct {
	tableName string
	schema    []string
	files     *store.FlatFileStore
	ledger    *LedgerRepo
	filter    *EventFilter
	secret    []byte

	// mu makes presence-check-then-insert one atomic unit. The ledger's
	// unique index backstops it across processes.
	mu sync.Mutex
}

// NewGate creates an ingestion gate for one table. An empty secret disables
// signature verification (development only).
func NewGate(tableName string, schema []string, files *store.FlatFileStore, ledger *LedgerRepo, filter *EventFilter, secret []byte) *Gate {
	if filter == nil {
		filter = DefaultBookingFilter()
	}
	return &Gate{
		tableName: tableName,
		schema:    schema,
		files:     files,
		ledger:    ledger,
		filter:    filter,
		secret:    secret,
	}
}

// TableName returns the table this gate commits to.
func (g *Gate) TableName() string { return g.tableName }

// Ingest runs one delivery through the state machine
// RECEIVED → FILTERED-OUT | ACCEPTED → DUPLICATE-SKIPPED | COMMITTED.
// An error is returned only for storage failures; every business outcome is
// an Outcome, not an error.
func (g *Gate) Ingest(ctx context.Context, body []byte, signature string) (*Outcome, error) {
	// A missing or wrong signature is a first-class filtered branch, not an
	// exception path.
	if len(g.secret) > 0 {
		if signature == "" {
			return filtered("", "missing signature header"), nil
		}
		if !g.verifySignature(body, signature) {
			return filtered("", "signature mismatch"), nil
		}
	}

	var event dtos.MarketplaceEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return filtered("", "malformed event body"), nil
	}
	if event.ID == "" {
		return filtered("", "event has no id"), nil
	}

	log := logging.WithIngestion("", event.ID)

	if ok, reason := g.filter.Eligible(&event); !ok {
		log.Debugw("delivery filtered out", "reason", reason)
		return filtered(event.ID, reason), nil
	}

	var payload dtos.BookingPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		log.Debugw("delivery filtered out", "reason", "malformed payload")
		return filtered(event.ID, "malformed payload"), nil
	}

	// ACCEPTED: presence check and commit are one critical section so a
	// concurrent duplicate delivery cannot interleave between them.
	g.mu.Lock()
	defer g.mu.Unlock()

	inserted, err := g.ledger.Record(ctx, event.ID, g.tableName)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", event.ID, err)
	}
	if !inserted {
		log.Infow("duplicate delivery skipped")
		return &Outcome{State: StateDuplicateSkipped, ExternalID: event.ID}, nil
	}

	rec := g.buildRecord(&event, &payload)
	if err := g.files.Append(g.tableName, g.schema, rec); err != nil {
		// Roll the sighting back so a redelivery can retry the commit.
		if forgetErr := g.ledger.Forget(ctx, event.ID); forgetErr != nil {
			log.Errorw("failed to roll back ledger entry", "error", forgetErr.Error())
		}
		return nil, fmt.Errorf("ingest %s: %w", event.ID, err)
	}

	log.Infow("delivery committed",
		"table", g.tableName,
		"sync_id", rec.SyncID,
		"guest", payload.GuestName,
	)
	return &Outcome{State: StateCommitted, ExternalID: event.ID, Record: rec}, nil
}

// buildRecord maps an accepted event onto a new table record
func (g *Gate) buildRecord(event *dtos.MarketplaceEvent, payload *dtos.BookingPayload) *record.Record {
	booking := models.Booking{
		SyncID:     record.MintID(),
		Guest:      payload.GuestName,
		Phone:      payload.Phone,
		CheckIn:    payload.CheckIn,
		CheckOut:   payload.CheckOut,
		Property:   payload.Property,
		Rate:       payload.Rate,
		Prepayment: payload.Prepayment,
		Source:     event.Type,
		ExternalID: event.ID,
		Note:       payload.Note,
	}
	rec := booking.ToRecord()
	rec.Touch(time.Now())
	return rec
}

// verifySignature checks the hex HMAC-SHA256 of the raw body
func (g *Gate) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the signature the gate expects for a body. Exported for the
// bot-side sender and tests.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func filtered(externalID, reason string) *Outcome {
	return &Outcome{State: StateFilteredOut, Reason: reason, ExternalID: externalID}
}
