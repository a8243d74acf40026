package domain

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Queue store names. Each QueueItem belongs to exactly one store, identified
// by its Kind, and a drain signal carries the store name it applies to.
const (
	StorePendingCalculations = "pendingCalculations"
	StoreUserPreferences     = "userPreferences"
)

// SyncRepository defines the interface for the durable queue of deferred mutating
// operations. Items are persisted when a write cannot reach the network and are
// removed only after a confirmed successful replay, giving at-least-once delivery.
type SyncRepository interface {
	// InsertQueueItem durably persists a new queue item. The item must survive
	// process termination immediately after this call returns.
	InsertQueueItem(item *QueueItem) error

	// GetQueueItems retrieves every queue item belonging to the given store,
	// ordered by creation time.
	GetQueueItems(kind string) ([]*QueueItem, error)

	// DeleteQueueItem removes a single item after a confirmed successful replay.
	// Deleting an item that no longer exists is not an error.
	DeleteQueueItem(id uuid.UUID) error

	// CountQueueItems returns the number of items currently held for the given store.
	CountQueueItems(kind string) (int32, error)
}

// QueueItem represents one deferred mutating operation. The item captures enough
// of the original request to replay it verbatim once connectivity returns.
type QueueItem struct {
	ID        uuid.UUID   // Unique identifier, caller-assigned or V7 (timestamp-derived)
	Kind      string      // Store name identifying the target sync handler
	Method    string      // HTTP method of the deferred request
	URL       string      // Absolute URL of the deferred request
	Header    http.Header // Headers to replay with the request
	Payload   []byte      // Opaque JSON body of the deferred request
	CreatedAt time.Time   // Timestamp when the item was enqueued
}
