package db

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/caravel-app/caravel/cache"
)

func testCacheEntry(generation string, url string) *cache.Entry {
	return &cache.Entry{
		Generation: generation,
		Method:     http.MethodGet,
		URL:        url,
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Content-Type": []string{"text/html; charset=utf-8"},
		},
		Body:        []byte("<html><body>cached</body></html>"),
		ContentType: "text/html",
		StoredAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestCacheRepo_Match(t *testing.T) {
	t.Run("should return ErrNotFound for an unknown key", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		_, err := repo.Match(context.Background(), "caravel-v1", http.MethodGet, "/missing")
		if !errors.Is(err, cache.ErrNotFound) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", cache.ErrNotFound, err)
		}
	})

	t.Run("should round-trip a stored entry", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		entry := testCacheEntry("caravel-v1", "/index.html")
		if err := repo.Put(context.Background(), entry); err != nil {
			t.Fatalf("storing entry: %v", err)
		}

		got, err := repo.Match(context.Background(), "caravel-v1", http.MethodGet, "/index.html")
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if got.StatusCode != entry.StatusCode {
			t.Fatalf("\nwanted:\n%d\ngot:\n%d", entry.StatusCode, got.StatusCode)
		}
		if string(got.Body) != string(entry.Body) {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", entry.Body, got.Body)
		}
		if !reflect.DeepEqual(got.Header, entry.Header) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", entry.Header, got.Header)
		}
		if got.ContentType != entry.ContentType {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", entry.ContentType, got.ContentType)
		}
	})

	t.Run("should not match an entry from another generation", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		if err := repo.Put(context.Background(), testCacheEntry("caravel-v1", "/index.html")); err != nil {
			t.Fatalf("storing entry: %v", err)
		}

		_, err := repo.Match(context.Background(), "caravel-v2", http.MethodGet, "/index.html")
		if !errors.Is(err, cache.ErrNotFound) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", cache.ErrNotFound, err)
		}
	})
}

func TestCacheRepo_Put(t *testing.T) {
	t.Run("should replace an existing entry for the same key", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		entry := testCacheEntry("caravel-v1", "/app.js")
		if err := repo.Put(context.Background(), entry); err != nil {
			t.Fatalf("storing entry: %v", err)
		}

		entry.Body = []byte("console.log('updated')")
		entry.StatusCode = http.StatusOK
		if err := repo.Put(context.Background(), entry); err != nil {
			t.Fatalf("replacing entry: %v", err)
		}

		got, err := repo.Match(context.Background(), "caravel-v1", http.MethodGet, "/app.js")
		if err != nil {
			t.Fatalf("fetching entry: %v", err)
		}
		if string(got.Body) != "console.log('updated')" {
			t.Fatalf("\nwanted:\nreplaced body\ngot:\n%s", got.Body)
		}
	})
}

func TestCacheRepo_Generations(t *testing.T) {
	t.Run("should list distinct generations in order", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		for _, entry := range []*cache.Entry{
			testCacheEntry("caravel-v2", "/index.html"),
			testCacheEntry("caravel-v1", "/index.html"),
			testCacheEntry("caravel-v1", "/app.js"),
		} {
			if err := repo.Put(context.Background(), entry); err != nil {
				t.Fatalf("storing entry: %v", err)
			}
		}

		generations, err := repo.Generations(context.Background())
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		wanted := []string{"caravel-v1", "caravel-v2"}
		if !reflect.DeepEqual(generations, wanted) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", wanted, generations)
		}
	})
}

func TestCacheRepo_PurgeExcept(t *testing.T) {
	t.Run("should delete every generation but the survivor", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		for _, entry := range []*cache.Entry{
			testCacheEntry("caravel-v1", "/index.html"),
			testCacheEntry("caravel-v2", "/index.html"),
			testCacheEntry("caravel-v3", "/index.html"),
		} {
			if err := repo.Put(context.Background(), entry); err != nil {
				t.Fatalf("storing entry: %v", err)
			}
		}

		if err := repo.PurgeExcept(context.Background(), "caravel-v3"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		generations, err := repo.Generations(context.Background())
		if err != nil {
			t.Fatalf("listing generations: %v", err)
		}

		wanted := []string{"caravel-v3"}
		if !reflect.DeepEqual(generations, wanted) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", wanted, generations)
		}
	})
}

func TestCacheRepo_Delete(t *testing.T) {
	t.Run("should remove a single entry", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		if err := repo.Put(context.Background(), testCacheEntry("caravel-v1", "/index.html")); err != nil {
			t.Fatalf("storing entry: %v", err)
		}

		if err := repo.Delete(context.Background(), "caravel-v1", http.MethodGet, "/index.html"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		_, err := repo.Match(context.Background(), "caravel-v1", http.MethodGet, "/index.html")
		if !errors.Is(err, cache.ErrNotFound) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", cache.ErrNotFound, err)
		}
	})
}
