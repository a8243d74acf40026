package db

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caravel-app/caravel/domain"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tempFile, err := os.CreateTemp(t.TempDir(), "test_*.db")
	if err != nil {
		t.Fatalf("os.CreateTemp() failed: %v", err)
	}
	tempFile.Close()

	dbConn, err := New(tempFile.Name())
	if err != nil {
		t.Fatalf("db.New() failed: %v", err)
	}

	repo := NewRepository(dbConn)

	teardown := func() {
		repo.Close()
		os.Remove(tempFile.Name())
	}

	return repo, teardown
}

func testQueueItem(t *testing.T, repo *Repository, kind string) uuid.UUID {
	t.Helper()

	id, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("creating uuid: %v", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	item := &domain.QueueItem{
		ID:        id,
		Kind:      kind,
		Method:    http.MethodPost,
		URL:       "https://app.caravel.test/api/calculations",
		Header:    header,
		Payload:   []byte(`{"hs":"8471.30","value":1200}`),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	err = repo.InsertQueueItem(item)
	if err != nil {
		t.Fatalf("inserting queue item: %v", err)
	}
	return id
}
