package caravel

import (
	"net/http"
	"os"
	"testing"

	"github.com/caravel-app/caravel/domain"
)

// roundTripperFunc allows plain functions to serve as the base transport in tests.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func setupTestWorker(t *testing.T, options ...func(*Worker) error) (*Worker, func()) {
	t.Helper()

	tempFile, err := os.CreateTemp(t.TempDir(), "test_*.db")
	if err != nil {
		t.Fatalf("os.CreateTemp() failed: %v", err)
	}
	tempFile.Close()

	opts := append([]func(*Worker) error{WithDatabase(tempFile.Name())}, options...)
	worker, err := New(opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	worker.setGeneration("caravel-v1")

	teardown := func() {
		worker.Close()
		worker.Repo.Close()
		os.Remove(tempFile.Name())
	}

	return worker, teardown
}

func TestNew(t *testing.T) {
	t.Run("should apply defaults when no options are given", func(t *testing.T) {
		worker, err := New()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer worker.Close()

		if worker.Config.OfflineDocPath != "/offline.html" {
			t.Fatalf("\nwanted:\n/offline.html\ngot:\n%s", worker.Config.OfflineDocPath)
		}
		if worker.Origin() == nil {
			t.Fatalf("\nwanted:\nparsed origin\ngot:\nnil")
		}
		if worker.Cache == nil {
			t.Fatalf("\nwanted:\nmemory cache store\ngot:\nnil")
		}
	})

	t.Run("should reject an option that fails", func(t *testing.T) {
		_, err := New(WithOrigin("://not-a-url"))
		if err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})

	t.Run("should use the database as both repository and cache store", func(t *testing.T) {
		worker, teardown := setupTestWorker(t)
		defer teardown()

		if worker.Repo == nil {
			t.Fatalf("\nwanted:\nrepository\ngot:\nnil")
		}
		if worker.Cache == nil {
			t.Fatalf("\nwanted:\ncache store\ngot:\nnil")
		}
	})
}

func TestWriteLog(t *testing.T) {
	t.Run("should reject an unknown level", func(t *testing.T) {
		worker, teardown := setupTestWorker(t)
		defer teardown()

		err := worker.WriteLog("LOUD", "nope")
		if err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})

	t.Run("should queue a log entry for persistence", func(t *testing.T) {
		worker, teardown := setupTestWorker(t)
		defer teardown()

		err := worker.WriteLog("INFO", "hello")
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		entry := <-worker.LogChannel
		if entry.Level != "INFO" || entry.Message != "hello" {
			t.Fatalf("\nwanted:\nINFO hello\ngot:\n%s %s", entry.Level, entry.Message)
		}
	})
}

func TestBroadcast(t *testing.T) {
	t.Run("should be a no-op without an OnMessage callback", func(t *testing.T) {
		worker, teardown := setupTestWorker(t)
		defer teardown()

		worker.broadcast(domain.Message{Kind: domain.MessageSyncComplete})
	})

	t.Run("should deliver messages to the callback", func(t *testing.T) {
		worker, teardown := setupTestWorker(t)
		defer teardown()

		var got domain.Message
		worker.OnMessage = func(msg domain.Message) error {
			got = msg
			return nil
		}

		worker.broadcast(domain.Message{Kind: domain.MessageSyncComplete, Payload: map[string]any{"count": 2}})
		if got.Kind != domain.MessageSyncComplete {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", domain.MessageSyncComplete, got.Kind)
		}
	})
}
