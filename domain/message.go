package domain

// Message kinds broadcast to open application views after a drain.
const (
	MessageSyncComplete      = "SYNC_COMPLETE"
	MessagePreferencesSynced = "PREFERENCES_SYNCED"
)

// Message is an outbound notification to the application views, used to let the
// UI reconcile state after a queue drain. Delivery is best effort; a lost
// message does not affect queue correctness.
type Message struct {
	Kind    string         // One of the Message* constants
	Payload map[string]any // Kind-specific fields (count, timestamp)
}
