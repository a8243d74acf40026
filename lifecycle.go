package caravel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/caravel-app/caravel/cache"
	"github.com/caravel-app/caravel/snapshot"
)

// Install warms the cache for a new generation. The offline bundle (fallback
// document and placeholder image) must fully succeed or installation fails;
// the precache manifest is attempted opportunistically, with failures logged
// and retried in the background without ever blocking installation.
func (worker *Worker) Install(ctx context.Context, generation string) error {
	bundle := []string{
		worker.Config.OfflineDocPath,
		worker.Config.PlaceholderImagePath,
	}
	for _, assetPath := range bundle {
		if err := worker.precacheAsset(ctx, generation, assetPath); err != nil {
			return fmt.Errorf("installing offline bundle %s : %w", assetPath, err)
		}
	}

	var failed []string
	for _, assetPath := range worker.Config.Precache {
		if err := worker.precacheAsset(ctx, generation, assetPath); err != nil {
			worker.WriteLog("WARN", fmt.Sprintf("precaching %s : %v", assetPath, err))
			failed = append(failed, assetPath)
		}
	}

	if len(failed) > 0 {
		go worker.retryPrecache(context.Background(), generation, failed)
	}

	worker.WriteLog("INFO", fmt.Sprintf("installed cache generation %s", generation))
	return nil
}

// Activate makes the generation current: every other stored generation is
// deleted first, then the dispatcher is flipped so all in-flight and future
// fetches immediately resolve against the new generation.
func (worker *Worker) Activate(ctx context.Context, generation string) error {
	if err := worker.Cache.PurgeExcept(ctx, generation); err != nil {
		return fmt.Errorf("purging stale generations : %w", err)
	}
	worker.setGeneration(generation)
	worker.WriteLog("INFO", fmt.Sprintf("activated cache generation %s", generation))
	return nil
}

// precacheAsset fetches a well-known path from the origin and stores the
// snapshot under the given generation.
func (worker *Worker) precacheAsset(ctx context.Context, generation string, assetPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, worker.resolve(assetPath), nil)
	if err != nil {
		return fmt.Errorf("building precache request : %w", err)
	}

	res, err := worker.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s : %w", assetPath, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("fetching %s : unexpected status %d", assetPath, res.StatusCode)
	}

	snap, err := snapshot.Capture(res)
	if err != nil {
		return fmt.Errorf("capturing %s : %w", assetPath, err)
	}

	entry := &cache.Entry{
		Generation:  generation,
		Method:      http.MethodGet,
		URL:         assetPath,
		StatusCode:  snap.StatusCode,
		Header:      snap.Header,
		Body:        snap.Body,
		ContentType: snap.ContentType,
		StoredAt:    time.Now(),
	}

	if err := worker.Cache.Put(ctx, entry); err != nil {
		return fmt.Errorf("storing %s : %w", assetPath, err)
	}
	return nil
}

// retryPrecache re-attempts failed precache assets with capped exponential
// backoff. An asset that never caches stays uncached; the retry is an
// opportunistic improvement, not a correctness requirement.
func (worker *Worker) retryPrecache(ctx context.Context, generation string, assets []string) {
	for _, assetPath := range assets {
		backoff := retry.WithMaxRetries(5, retry.WithCappedDuration(time.Minute, retry.NewExponential(2*time.Second)))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := worker.precacheAsset(ctx, generation, assetPath); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			worker.WriteLog("WARN", fmt.Sprintf("precache retry exhausted for %s : %v", assetPath, err))
		}
	}
}
