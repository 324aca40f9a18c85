package constants

// Sync event names for the sync_history table. Pull and bidirectional passes
// establish the deletion baseline for a table; push passes do not.
const (
	SyncEventPull          = "TABLE_PULL"
	SyncEventPush          = "TABLE_PUSH"
	SyncEventBidirectional = "TABLE_BIDIRECTIONAL"
)
