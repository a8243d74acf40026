package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/caravel-app/caravel/cache"
)

var _ cache.Store = (*Repository)(nil)

// dbCacheEntry represents a stored response snapshot as persisted in the database.
type dbCacheEntry struct {
	Generation  string    `db:"generation"`   // Generation the entry belongs to.
	Method      string    `db:"method"`       // Request method of the key.
	URL         string    `db:"url"`          // Normalized request URL of the key.
	StatusCode  int       `db:"status_code"`  // Response status code.
	Header      Headers   `db:"headers"`      // Response headers, stored as JSON.
	Body        []byte    `db:"body"`         // Response body bytes.
	ContentType string    `db:"content_type"` // Parsed response content type.
	StoredAt    time.Time `db:"stored_at"`    // Timestamp of the snapshot.
}

// toCacheEntry converts a dbCacheEntry to a cache.Entry.
func toCacheEntry(entry *dbCacheEntry) *cache.Entry {
	return &cache.Entry{
		Generation:  entry.Generation,
		Method:      entry.Method,
		URL:         entry.URL,
		StatusCode:  entry.StatusCode,
		Header:      http.Header(entry.Header),
		Body:        entry.Body,
		ContentType: entry.ContentType,
		StoredAt:    entry.StoredAt,
	}
}

// fromCacheEntry converts a cache.Entry to a dbCacheEntry.
func fromCacheEntry(entry *cache.Entry) *dbCacheEntry {
	return &dbCacheEntry{
		Generation:  entry.Generation,
		Method:      entry.Method,
		URL:         entry.URL,
		StatusCode:  entry.StatusCode,
		Header:      Headers(entry.Header),
		Body:        entry.Body,
		ContentType: entry.ContentType,
		StoredAt:    entry.StoredAt,
	}
}

// Match implements the cache.Store interface.
func (repo *Repository) Match(ctx context.Context, generation string, method string, url string) (*cache.Entry, error) {
	var entry dbCacheEntry
	query := `SELECT generation, method, url, status_code, headers, body, content_type, stored_at
	          FROM cache_entry WHERE generation = ? AND method = ? AND url = ?`

	err := repo.dbConn.GetContext(ctx, &entry, query, generation, method, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("fetching cache entry %s %s : %w", method, url, err)
	}

	return toCacheEntry(&entry), nil
}

// Put implements the cache.Store interface. The UPSERT makes the replacement
// atomic under SQLite's transaction discipline.
func (repo *Repository) Put(ctx context.Context, entry *cache.Entry) error {
	dbEntry := fromCacheEntry(entry)
	query := `INSERT INTO cache_entry (generation, method, url, status_code, headers, body, content_type, stored_at)
	          VALUES (:generation, :method, :url, :status_code, :headers, :body, :content_type, :stored_at)
	          ON CONFLICT(generation, method, url) DO UPDATE SET
	              status_code=excluded.status_code,
	              headers=excluded.headers,
	              body=excluded.body,
	              content_type=excluded.content_type,
	              stored_at=excluded.stored_at`

	_, err := repo.dbConn.NamedExecContext(ctx, query, dbEntry)
	if err != nil {
		return fmt.Errorf("storing cache entry %s %s : %w", entry.Method, entry.URL, err)
	}

	return nil
}

// Delete implements the cache.Store interface.
func (repo *Repository) Delete(ctx context.Context, generation string, method string, url string) error {
	query := `DELETE FROM cache_entry WHERE generation = ? AND method = ? AND url = ?`

	_, err := repo.dbConn.ExecContext(ctx, query, generation, method, url)
	if err != nil {
		return fmt.Errorf("deleting cache entry %s %s : %w", method, url, err)
	}

	return nil
}

// Generations implements the cache.Store interface.
func (repo *Repository) Generations(ctx context.Context) ([]string, error) {
	var generations []string
	query := `SELECT DISTINCT generation FROM cache_entry ORDER BY generation`

	err := repo.dbConn.SelectContext(ctx, &generations, query)
	if err != nil {
		return nil, fmt.Errorf("enumerating cache generations : %w", err)
	}

	return generations, nil
}

// PurgeExcept implements the cache.Store interface.
func (repo *Repository) PurgeExcept(ctx context.Context, generation string) error {
	query := `DELETE FROM cache_entry WHERE generation != ?`

	_, err := repo.dbConn.ExecContext(ctx, query, generation)
	if err != nil {
		return fmt.Errorf("purging cache generations except %s : %w", generation, err)
	}

	return nil
}
