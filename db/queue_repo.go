package db

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/caravel-app/caravel/domain"
)

var _ domain.SyncRepository = (*Repository)(nil)

// dbQueueItem represents a deferred mutating operation as stored in the database.
type dbQueueItem struct {
	ID        uuid.UUID `db:"id"`         // Unique identifier for the queue item.
	Kind      string    `db:"kind"`       // Store name identifying the target sync handler.
	Method    string    `db:"method"`     // HTTP method of the deferred request.
	URL       string    `db:"url"`        // Absolute URL of the deferred request.
	Header    Headers   `db:"headers"`    // Headers to replay with the request, stored as JSON.
	Payload   []byte    `db:"payload"`    // Opaque JSON body of the deferred request.
	CreatedAt time.Time `db:"created_at"` // Timestamp when the item was enqueued.
}

// toDomainQueueItem converts a dbQueueItem to a domain.QueueItem.
func toDomainQueueItem(item *dbQueueItem) *domain.QueueItem {
	return &domain.QueueItem{
		ID:        item.ID,
		Kind:      item.Kind,
		Method:    item.Method,
		URL:       item.URL,
		Header:    http.Header(item.Header),
		Payload:   item.Payload,
		CreatedAt: item.CreatedAt,
	}
}

// fromDomainQueueItem converts a domain.QueueItem to a dbQueueItem.
func fromDomainQueueItem(item *domain.QueueItem) *dbQueueItem {
	return &dbQueueItem{
		ID:        item.ID,
		Kind:      item.Kind,
		Method:    item.Method,
		URL:       item.URL,
		Header:    Headers(item.Header),
		Payload:   item.Payload,
		CreatedAt: item.CreatedAt,
	}
}

// InsertQueueItem durably persists a new queue item.
func (repo *Repository) InsertQueueItem(item *domain.QueueItem) error {
	dbItem := fromDomainQueueItem(item)
	query := `INSERT INTO queue_item (id, kind, method, url, headers, payload, created_at)
	          VALUES (:id, :kind, :method, :url, :headers, :payload, :created_at)`

	_, err := repo.dbConn.NamedExec(query, dbItem)
	if err != nil {
		return fmt.Errorf("inserting queue item %s : %w", item.ID, err)
	}

	return nil
}

// GetQueueItems retrieves every queue item belonging to the given store, ordered by creation time.
func (repo *Repository) GetQueueItems(kind string) ([]*domain.QueueItem, error) {
	var dbItems []*dbQueueItem
	query := `SELECT id, kind, method, url, headers, payload, created_at
	          FROM queue_item WHERE kind = ? ORDER BY created_at`

	err := repo.dbConn.Select(&dbItems, query, kind)
	if err != nil {
		return nil, fmt.Errorf("fetching queue items for %s : %w", kind, err)
	}

	domainItems := make([]*domain.QueueItem, len(dbItems))
	for i, dbItem := range dbItems {
		domainItems[i] = toDomainQueueItem(dbItem)
	}

	return domainItems, nil
}

// DeleteQueueItem removes a single item after a confirmed successful replay.
// Deleting an item that no longer exists is not an error, which keeps replay
// idempotent across overlapping drain signals.
func (repo *Repository) DeleteQueueItem(id uuid.UUID) error {
	query := `DELETE FROM queue_item WHERE id = ?`

	_, err := repo.dbConn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("deleting queue item %s : %w", id, err)
	}

	return nil
}

// CountQueueItems returns the number of items currently held for the given store.
func (repo *Repository) CountQueueItems(kind string) (int32, error) {
	var count int32
	query := `SELECT COUNT(*) FROM queue_item WHERE kind = ?`

	err := repo.dbConn.Get(&count, query, kind)
	if err != nil {
		return 0, fmt.Errorf("counting queue items for %s : %w", kind, err)
	}

	return count, nil
}
