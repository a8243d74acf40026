package caravel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func installServer(t *testing.T, failing map[string]bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing[r.URL.Path] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("asset:" + r.URL.Path))
	}))
}

func TestInstall(t *testing.T) {
	t.Run("should cache the offline bundle and precache assets", func(t *testing.T) {
		server := installServer(t, nil)
		defer server.Close()

		worker, teardown := setupTestWorker(t, WithOrigin(server.URL))
		defer teardown()
		worker.Config.Precache = []string{"/assets/index.css"}

		if err := worker.Install(context.Background(), "caravel-v2"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		for _, path := range []string{worker.Config.OfflineDocPath, worker.Config.PlaceholderImagePath, "/assets/index.css"} {
			if _, err := worker.Cache.Match(context.Background(), "caravel-v2", http.MethodGet, path); err != nil {
				t.Fatalf("\nwanted:\ncached %s\ngot:\n%v", path, err)
			}
		}
	})

	t.Run("should fail installation when the offline bundle fails", func(t *testing.T) {
		server := installServer(t, map[string]bool{"/offline.html": true})
		defer server.Close()

		worker, teardown := setupTestWorker(t, WithOrigin(server.URL))
		defer teardown()

		if err := worker.Install(context.Background(), "caravel-v2"); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})

	t.Run("should complete installation despite precache failures", func(t *testing.T) {
		server := installServer(t, map[string]bool{"/assets/broken.js": true})
		defer server.Close()

		worker, teardown := setupTestWorker(t, WithOrigin(server.URL))
		defer teardown()
		worker.Config.Precache = []string{"/assets/broken.js", "/assets/index.css"}

		if err := worker.Install(context.Background(), "caravel-v2"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		if _, err := worker.Cache.Match(context.Background(), "caravel-v2", http.MethodGet, "/assets/index.css"); err != nil {
			t.Fatalf("\nwanted:\ncached /assets/index.css\ngot:\n%v", err)
		}
	})
}

func TestActivate(t *testing.T) {
	t.Run("should leave exactly one generation after successive activations", func(t *testing.T) {
		server := installServer(t, nil)
		defer server.Close()

		worker, teardown := setupTestWorker(t, WithOrigin(server.URL))
		defer teardown()

		generations := []string{"caravel-v1", "caravel-v2", "caravel-v3"}
		for _, generation := range generations {
			if err := worker.Install(context.Background(), generation); err != nil {
				t.Fatalf("installing %s: %v", generation, err)
			}
			if err := worker.Activate(context.Background(), generation); err != nil {
				t.Fatalf("activating %s: %v", generation, err)
			}
		}

		stored, err := worker.Cache.Generations(context.Background())
		if err != nil {
			t.Fatalf("enumerating generations: %v", err)
		}
		if len(stored) != 1 || stored[0] != "caravel-v3" {
			t.Fatalf("\nwanted:\n[caravel-v3]\ngot:\n%v", stored)
		}
		if worker.CurrentGeneration() != "caravel-v3" {
			t.Fatalf("\nwanted:\ncaravel-v3\ngot:\n%s", worker.CurrentGeneration())
		}
	})

	t.Run("should route fetches to the new generation immediately", func(t *testing.T) {
		server := installServer(t, nil)
		defer server.Close()

		worker, teardown := setupTestWorker(t, WithOrigin(server.URL))
		defer teardown()

		if err := worker.Install(context.Background(), "caravel-v2"); err != nil {
			t.Fatalf("installing: %v", err)
		}
		if err := worker.Activate(context.Background(), "caravel-v2"); err != nil {
			t.Fatalf("activating: %v", err)
		}

		res, err := worker.Transport().RoundTrip(testRequest(t, worker, http.MethodGet, worker.Config.OfflineDocPath))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if got := readBody(t, res); got != "asset:"+worker.Config.OfflineDocPath {
			t.Fatalf("\nwanted:\nasset body\ngot:\n%s", got)
		}
	})
}
