package caravel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/caravel-app/caravel/core"
	"github.com/caravel-app/caravel/domain"
)

var (
	// ErrRepoUndefined is returned when a queue operation runs without a repository configured.
	ErrRepoUndefined = errors.New("no repository configured")
)

// Enqueue durably persists a deferred operation. The item survives process
// termination as soon as this call returns. A zero ID is replaced with a
// timestamp-derived one and a zero CreatedAt with the current time.
func (worker *Worker) Enqueue(item *domain.QueueItem) error {
	if worker.Repo == nil {
		return ErrRepoUndefined
	}
	if item.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating queue item id : %w", err)
		}
		item.ID = id
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Kind == "" {
		item.Kind = domain.StorePendingCalculations
	}
	if err := worker.Repo.InsertQueueItem(item); err != nil {
		return fmt.Errorf("enqueueing item %s : %w", item.ID, err)
	}
	return nil
}

// Drain processes the store named by the connectivity-restored signal. Each
// item is replayed as the network request the original caller intended; only
// items answered with a 2xx are deleted, so a failed replay is retried on the
// next signal (at-least-once delivery). After a drain that cleared at least
// one item, open application views receive a SYNC_COMPLETE message with the
// count and timestamp.
func (worker *Worker) Drain(ctx context.Context, kind string) error {
	if worker.Repo == nil {
		return ErrRepoUndefined
	}
	if kind == domain.StoreUserPreferences {
		return worker.drainPreferences(ctx)
	}

	items, err := worker.Repo.GetQueueItems(kind)
	if err != nil {
		return fmt.Errorf("loading queue items for %s : %w", kind, err)
	}

	var count int
	for _, item := range items {
		ok, err := worker.replay(ctx, item)
		if err != nil {
			worker.WriteLog("WARN", fmt.Sprintf("replaying queue item : %v", err), core.LogWithQueueItemID(item.ID))
			continue
		}
		if !ok {
			worker.WriteLog("WARN", "replay rejected by server, leaving item queued", core.LogWithQueueItemID(item.ID))
			continue
		}
		if err := worker.Repo.DeleteQueueItem(item.ID); err != nil {
			// The item stays queued; the next drain replays it again, which
			// is why replay handlers must tolerate duplicates.
			worker.WriteLog("WARN", fmt.Sprintf("deleting replayed item : %v", err), core.LogWithQueueItemID(item.ID))
			continue
		}
		count++
	}

	if count > 0 {
		worker.broadcast(domain.Message{
			Kind: domain.MessageSyncComplete,
			Payload: map[string]any{
				"count":     count,
				"timestamp": time.Now().Format(time.RFC3339),
			},
		})
	}

	return nil
}

// replay issues the network request a queue item captured. It reports whether
// the server confirmed the replay with a 2xx response.
func (worker *Worker) replay(ctx context.Context, item *domain.QueueItem) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, item.Method, item.URL, bytes.NewReader(item.Payload))
	if err != nil {
		return false, fmt.Errorf("building replay request for %s : %w", item.ID, err)
	}
	for name, values := range item.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	res, err := worker.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("replaying %s : %w", item.ID, err)
	}
	defer res.Body.Close()

	return res.StatusCode >= 200 && res.StatusCode < 300, nil
}

// drainPreferences replays the singleton preference record. A confirmed replay
// flips its synced flag rather than deleting it, and the views receive a
// PREFERENCES_SYNCED message.
func (worker *Worker) drainPreferences(ctx context.Context) error {
	record, err := worker.Repo.GetPreferences()
	if err != nil {
		if errors.Is(err, domain.ErrNoPreferences) {
			return nil
		}
		return fmt.Errorf("loading preference record : %w", err)
	}
	if record.Synced {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, worker.resolve(worker.Config.PreferencesEndpoint), bytes.NewReader(record.Payload))
	if err != nil {
		return fmt.Errorf("building preference replay request : %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := worker.Client.Do(req)
	if err != nil {
		return fmt.Errorf("replaying preferences : %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		worker.WriteLog("WARN", fmt.Sprintf("preference replay rejected with status %d", res.StatusCode))
		return nil
	}

	if err := worker.Repo.MarkPreferencesSynced(); err != nil {
		return fmt.Errorf("marking preferences synced : %w", err)
	}

	worker.broadcast(domain.Message{
		Kind: domain.MessagePreferencesSynced,
		Payload: map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})

	return nil
}
