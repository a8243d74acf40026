// Package cache provides content-addressed storage of request/response pairs,
// versioned by named generations. At most one generation is current at any
// time; activating a generation deletes every other one, so storage never
// grows unboundedly across deploys.
package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrNotFound is returned when no entry is stored for a key.
	ErrNotFound = errors.New("cache entry not found")
)

// Entry is one stored response snapshot. Entries are never mutated in place;
// a refresh replaces the whole entry atomically.
type Entry struct {
	Generation  string      // Generation the entry belongs to
	Method      string      // Request method of the key
	URL         string      // Normalized request URL of the key
	StatusCode  int         // Response status code
	Header      http.Header // Response headers (identity encoded)
	Body        []byte      // Response body bytes
	ContentType string      // Parsed response content type
	StoredAt    time.Time   // Timestamp of the snapshot
}

// Store is the contract for cache backends. Implementations must make Put an
// atomic replacement for its key and must tolerate concurrent access under
// their own transaction discipline.
type Store interface {
	// Match returns the entry stored under (generation, method, url),
	// or ErrNotFound.
	Match(ctx context.Context, generation string, method string, url string) (*Entry, error)

	// Put stores the entry under its (generation, method, url) key,
	// atomically replacing any previous entry.
	Put(ctx context.Context, entry *Entry) error

	// Delete removes the entry for the key. Missing entries are not an error.
	Delete(ctx context.Context, generation string, method string, url string) error

	// Generations enumerates every generation with at least one stored entry.
	Generations(ctx context.Context) ([]string, error)

	// PurgeExcept deletes every entry outside the given generation. It is
	// called during activation to enforce generation exclusivity.
	PurgeExcept(ctx context.Context, generation string) error
}

// Key normalizes a request URL into its cache key form: path plus raw query,
// fragment dropped. The worker only caches same-origin traffic, so host and
// scheme carry no information.
func Key(u *url.URL) string {
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}
