package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hostdesk/syncengine/internal/logging"
	"hostdesk/syncengine/internal/record"
)

// CommittedRecord is the message published for each record that reached a
// durable store, for downstream consumers (the bot's notification senders).
type CommittedRecord struct {
	Table      string            `json:"table"`
	SyncID     string            `json:"sync_id"`
	ExternalID string            `json:"external_id,omitempty"`
	Payload    map[string]string `json:"payload"`
	Committed  time.Time         `json:"committed_at"`
}

// Dispatcher publishes committed records to Redis Streams, one stream per
// table. A nil client disables dispatch entirely; the engine never depends
// on Redis being up.
type Dispatcher struct {
	client *redis.Client
}

// NewDispatcher creates a dispatcher. client may be nil.
func NewDispatcher(client *redis.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// Enabled reports whether dispatch is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && d.client != nil
}

func streamName(table string) string {
	return fmt.Sprintf("booking:committed:%s", table)
}

// DispatchRecord publishes one committed record.
// XADD booking:committed:<table> * data <json>
func (d *Dispatcher) DispatchRecord(ctx context.Context, table string, r *record.Record) error {
	if !d.Enabled() {
		return nil
	}

	msg := toMessage(table, r)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal committed record: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamName(table),
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if _, err := d.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}
	return nil
}

// DispatchBatch publishes several committed records in one pipeline, used
// after a successful reconcile pass.
func (d *Dispatcher) DispatchBatch(ctx context.Context, table string, records []*record.Record) error {
	if !d.Enabled() || len(records) == 0 {
		return nil
	}

	pipe := d.client.Pipeline()
	for _, r := range records {
		data, err := json.Marshal(toMessage(table, r))
		if err != nil {
			logging.Warn("skipping unmarshalable committed record",
				"table", table,
				"sync_id", r.SyncID,
				"error", err.Error(),
			)
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: streamName(table),
			Values: map[string]interface{}{
				"data": string(data),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

func toMessage(table string, r *record.Record) *CommittedRecord {
	payload := make(map[string]string, len(r.Payload))
	for k, v := range r.Payload {
		payload[k] = v
	}
	return &CommittedRecord{
		Table:      table,
		SyncID:     r.SyncID,
		ExternalID: r.Get("external_id"),
		Payload:    payload,
		Committed:  time.Now().UTC(),
	}
}
