package caravel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/caravel-app/caravel/cache"
	"github.com/caravel-app/caravel/domain"
	"github.com/caravel-app/caravel/snapshot"
)

// entryResponse rebuilds a servable response from a stored cache entry.
func entryResponse(entry *cache.Entry, req *http.Request) *http.Response {
	return snapshot.NewResponse(req, entry.StatusCode, entry.Header, entry.Body)
}

// fetchAndStore performs a network fetch and, on a successful (2xx) response,
// snapshots it into the current generation before returning it. The cache
// write never happens speculatively; a store failure is logged and the live
// response still returned.
func (transport *Transport) fetchAndStore(req *http.Request) (*http.Response, error) {
	res, err := transport.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if storeErr := transport.store(req, res); storeErr != nil {
			transport.worker.WriteLog("WARN", fmt.Sprintf("storing response for %s : %v", req.URL.Path, storeErr))
		}
	}

	return res, nil
}

// store snapshots the response into the cache under the current generation.
func (transport *Transport) store(req *http.Request, res *http.Response) error {
	snap, err := snapshot.Capture(res)
	if err != nil {
		return fmt.Errorf("capturing response : %w", err)
	}

	entry := &cache.Entry{
		Generation:  transport.worker.CurrentGeneration(),
		Method:      req.Method,
		URL:         cache.Key(req.URL),
		StatusCode:  snap.StatusCode,
		Header:      snap.Header,
		Body:        snap.Body,
		ContentType: snap.ContentType,
		StoredAt:    time.Now(),
	}

	return transport.worker.Cache.Put(req.Context(), entry)
}

// match looks the request up in the current generation.
func (transport *Transport) match(ctx context.Context, method string, key string) (*cache.Entry, error) {
	return transport.worker.Cache.Match(ctx, transport.worker.CurrentGeneration(), method, key)
}

// cacheFirst serves assets: a cache hit is returned without touching the
// network; a miss is fetched and stored. On network failure image requests
// receive the offline placeholder, everything else propagates the failure.
func (transport *Transport) cacheFirst(req *http.Request) (*http.Response, error) {
	entry, err := transport.match(req.Context(), req.Method, cache.Key(req.URL))
	if err == nil {
		return entryResponse(entry, req), nil
	}

	res, fetchErr := transport.fetchAndStore(req)
	if fetchErr == nil {
		return res, nil
	}

	if isImageRequest(req) {
		placeholder, placeholderErr := transport.match(req.Context(), http.MethodGet, transport.worker.Config.PlaceholderImagePath)
		if placeholderErr == nil {
			return entryResponse(placeholder, req), nil
		}
	}

	return nil, fmt.Errorf("fetching asset %s : %w", req.URL.Path, fetchErr)
}

// networkFirst serves navigations: the network response wins and is stored
// only after it succeeds; on failure the cached page is served, and the
// offline document covers a cold cache.
func (transport *Transport) networkFirst(req *http.Request) (*http.Response, error) {
	res, fetchErr := transport.fetchAndStore(req)
	if fetchErr == nil {
		return res, nil
	}

	entry, err := transport.match(req.Context(), req.Method, cache.Key(req.URL))
	if err == nil {
		return entryResponse(entry, req), nil
	}

	offline, err := transport.match(req.Context(), http.MethodGet, transport.worker.Config.OfflineDocPath)
	if err == nil {
		return entryResponse(offline, req), nil
	}

	return nil, fmt.Errorf("fetching navigation %s : %w", req.URL.Path, fetchErr)
}

// staleWhileRevalidate serves API reads: a cached entry is returned
// immediately and a detached background refresh updates the cache for future
// reads. The returned entry is read before the refresh is started, so the
// current caller never observes its own revalidation. Without a cached entry
// the fetch is synchronous, and a network failure synthesizes a structured
// offline response instead of an error.
func (transport *Transport) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	entry, err := transport.match(req.Context(), req.Method, cache.Key(req.URL))
	if err == nil {
		refresh := req.Clone(context.Background())
		go transport.Revalidate(refresh)
		return entryResponse(entry, req), nil
	}

	res, fetchErr := transport.fetchAndStore(req)
	if fetchErr != nil {
		return transport.offlineResponse(req), nil
	}
	return res, nil
}

// Revalidate refreshes the cache entry for the request. It is normally run as
// a detached task whose result is only ever observed by a future read, but is
// exported so callers can refresh synchronously as well.
func (transport *Transport) Revalidate(req *http.Request) error {
	res, err := transport.base().RoundTrip(req)
	if err != nil {
		transport.worker.WriteLog("DEBUG", fmt.Sprintf("revalidating %s : %v", req.URL.Path, err))
		return fmt.Errorf("revalidating %s : %w", req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil
	}

	if err := transport.store(req, res); err != nil {
		transport.worker.WriteLog("WARN", fmt.Sprintf("storing revalidated response for %s : %v", req.URL.Path, err))
		return err
	}
	return nil
}

// offlineResponse synthesizes the structured "you are offline" API result so
// calling code always receives a well-formed response object it can branch on.
func (transport *Transport) offlineResponse(req *http.Request) *http.Response {
	body, _ := json.Marshal(map[string]any{
		"error":     "You are offline. This request requires a connection.",
		"offline":   true,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return snapshot.NewResponse(req, http.StatusServiceUnavailable, header, body)
}

// deferredWrite handles mutating API requests: the network is attempted first,
// and on failure the request is captured durably so a later drain can replay
// it. Preference updates overwrite the singleton record instead of growing the
// queue. The caller receives an accepted response carrying the queue id.
func (transport *Transport) deferredWrite(req *http.Request) (*http.Response, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body : %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(payload))
	}

	res, fetchErr := transport.base().RoundTrip(req)
	if fetchErr == nil {
		return res, nil
	}

	worker := transport.worker
	if worker.Repo == nil {
		return nil, fetchErr
	}

	if req.URL.Path == worker.Config.PreferencesEndpoint {
		if _, err := worker.Repo.SetPreferences(payload); err != nil {
			worker.WriteLog("ERROR", fmt.Sprintf("persisting offline preferences : %v", err))
			return nil, fetchErr
		}
		return transport.queuedResponse(req, ""), nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating queue item id : %w", err)
	}
	item := &domain.QueueItem{
		ID:        id,
		Kind:      domain.StorePendingCalculations,
		Method:    req.Method,
		URL:       req.URL.String(),
		Header:    req.Header.Clone(),
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := worker.Repo.InsertQueueItem(item); err != nil {
		worker.WriteLog("ERROR", fmt.Sprintf("enqueueing offline write : %v", err))
		return nil, fetchErr
	}

	return transport.queuedResponse(req, id.String()), nil
}

// queuedResponse tells the caller its write was captured for later replay.
func (transport *Transport) queuedResponse(req *http.Request, id string) *http.Response {
	fields := map[string]any{
		"queued":    true,
		"offline":   true,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if id != "" {
		fields["id"] = id
	}
	body, _ := json.Marshal(fields)
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return snapshot.NewResponse(req, http.StatusAccepted, header, body)
}
