package responses

import "time"

type APIResponse[T any] struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
	Data      *T        `json:"data,omitempty"`
}

// IngestResponse reports the outcome of one webhook delivery
type IngestResponse struct {
	Outcome    string `json:"outcome"`
	ExternalID string `json:"external_id,omitempty"`
	SyncID     string `json:"sync_id,omitempty"`
	Table      string `json:"table,omitempty"`
}

// SyncResponse reports the outcome of one manual reconcile pass
type SyncResponse struct {
	Table      string `json:"table"`
	Mode       string `json:"mode"`
	Added      int    `json:"added"`
	KeptLocal  int    `json:"kept_local"`
	KeptRemote int    `json:"kept_remote"`
	Deleted    int    `json:"deleted"`
	NoOp       bool   `json:"no_op"`
	DurationMs int    `json:"duration_ms"`
}
