// Package caravel provides the offline caching and synchronization layer for the
// Caravel trade-cost client. It intercepts all outbound network activity of the
// hosting application, applies a per-request caching strategy, persists pending
// writes in a SQLite database while offline, and replays them when connectivity
// returns. It is designed to be decoupled from UI implementations and exposes
// callbacks and interfaces the hosting application wires in for notification
// rendering and view messaging.
//
// The core functionality includes:
//   - Request dispatcher with cache-first, network-first, and
//     stale-while-revalidate strategies
//   - Generation-versioned cache store with install/activate lifecycle
//   - Durable sync queue with at-least-once replay on connectivity signals
//   - SQLite database storage for queue items, preferences, cache entries, and logs
//   - Push notification decoding with focus-or-open click handling
package caravel

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/martian"
	"github.com/google/martian/fifo"
	"github.com/google/uuid"

	"github.com/caravel-app/caravel/cache"
	"github.com/caravel-app/caravel/domain"
)

// Repository defines the persistence methods consumed by the worker. It provides
// an abstraction layer over the SQLite backend for queue, preference, and log
// operations; the cache store is abstracted separately through cache.Store.
type Repository interface {
	domain.SyncRepository
	domain.PreferenceRepository
	domain.LogRepository
	Close() error
}

// Worker is the main struct that orchestrates all offline functionality: request
// dispatch, cache lifecycle, sync queue draining, and notification delivery. One
// Worker is constructed per process and passed to every event handler, so there
// are no hidden global singletons.
type Worker struct {
	ConfigDir    string          // The configuration directory
	Config       *Config         // The worker configuration (separate from the hosting app's config)
	Repo         Repository      // DB Repository Interface
	Cache        cache.Store     // Cache store backend (SQLite-backed by default, in-memory available)
	Client       *http.Client    // HTTP client used for network fetches and queue replays
	Modifiers    *fifo.Group     // Modifier group pipeline applied when serving as a local proxy
	LogChannel   chan domain.Log // Buffered channel drained into the log repository
	OnMessage    func(msg domain.Message) error // Ran for each outbound view message - used by the hosting app to reconcile UI state
	OnLog        func(log domain.Log) error     // Ran for each persisted log - used by the hosting app to surface logs live
	Notifier     Notifier        // Renders and dismisses system notifications
	Windows      WindowRegistry  // Enumerates, focuses, and opens application windows
	martianProxy *martian.Proxy  // The underlying martian.Proxy used by Serve
	transport    *Transport      // The request dispatcher
	handlers     map[EventKind]EventHandler

	mutex      sync.RWMutex
	generation string // The single active cache generation
	origin     *url.URL
}

// New creates a new Worker instance with default configuration and applies any
// provided options. It initializes the cache store, HTTP client, modifier group,
// log channel, and the event handler table.
func New(options ...func(*Worker) error) (*Worker, error) {
	worker := &Worker{
		Config:       defaultConfig(),
		Cache:        cache.NewMemoryStore(),
		Client:       &http.Client{},
		Modifiers:    fifo.NewGroup(),
		LogChannel:   make(chan domain.Log, 10),
		martianProxy: martian.NewProxy(),
	}
	worker.transport = &Transport{worker: worker}
	worker.registerHandlers()

	if err := worker.WithOptions(options...); err != nil {
		return nil, err
	}

	if worker.origin == nil {
		origin, err := url.Parse(worker.Config.Origin)
		if err != nil {
			return nil, fmt.Errorf("parsing origin %s : %w", worker.Config.Origin, err)
		}
		worker.origin = origin
	}

	return worker, nil
}

// WithOptions applies a series of configuration functions to the worker instance.
// Each option function can modify the worker configuration and return an error if it fails.
func (worker *Worker) WithOptions(options ...func(*Worker) error) error {
	for _, option := range options {
		err := option(worker)
		if err != nil {
			return fmt.Errorf("applying option on caravel : %w", err)
		}
	}
	return nil
}

// CurrentGeneration returns the name of the active cache generation, or the
// empty string before the first activation.
func (worker *Worker) CurrentGeneration() string {
	worker.mutex.RLock()
	defer worker.mutex.RUnlock()
	return worker.generation
}

func (worker *Worker) setGeneration(generation string) {
	worker.mutex.Lock()
	defer worker.mutex.Unlock()
	worker.generation = generation
}

// Origin returns the application origin all intercepted traffic must match.
func (worker *Worker) Origin() *url.URL {
	worker.mutex.RLock()
	defer worker.mutex.RUnlock()
	return worker.origin
}

func (worker *Worker) setOrigin(origin *url.URL) {
	worker.mutex.Lock()
	defer worker.mutex.Unlock()
	worker.origin = origin
}

// resolve joins a well-known path onto the application origin.
func (worker *Worker) resolve(path string) string {
	return worker.Origin().ResolveReference(&url.URL{Path: path}).String()
}

// Transport returns the request dispatcher as an http.RoundTripper so the
// hosting application can install it directly on its HTTP client.
func (worker *Worker) Transport() *Transport {
	return worker.transport
}

// WriteToDB drains the log channel into the repository. It runs as a single
// goroutine so database writes never contend with suspended fetches.
func (worker *Worker) WriteToDB() {
	for entry := range worker.LogChannel {
		if worker.Repo != nil {
			if err := worker.Repo.InsertLog(&entry); err != nil {
				log.Println(err)
			}
		}
		if worker.OnLog != nil {
			if err := worker.OnLog(entry); err != nil {
				log.Println(err)
			}
		}
	}
}

// WriteLog creates a log entry and queues it for persistence. The entry is
// dropped onto the standard logger when the channel is saturated, so logging
// never blocks a strategy or a drain.
func (worker *Worker) WriteLog(level string, message string, options ...func(log *domain.Log) error) error {
	switch level {
	case "DEBUG":
	case "INFO":
	case "WARN":
	case "ERROR":
	case "FATAL":
	default:
		return fmt.Errorf("level should be either: debug, info, warn, error, fatal")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating new uuid : %w", err)
	}
	entry := domain.Log{
		ID:        id,
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
	for _, option := range options {
		err := option(&entry)
		if err != nil {
			return fmt.Errorf("applying log option : %w", err)
		}
	}
	select {
	case worker.LogChannel <- entry:
	default:
		log.Printf("[%s] %s", entry.Level, entry.Message)
	}
	return nil
}

// broadcast delivers an outbound message to the hosting application's views.
// Delivery is best effort; failures are logged and swallowed because message
// loss never affects queue correctness.
func (worker *Worker) broadcast(msg domain.Message) {
	if worker.OnMessage == nil {
		return
	}
	if err := worker.OnMessage(msg); err != nil {
		worker.WriteLog("WARN", fmt.Sprintf("broadcasting %s message : %v", msg.Kind, err))
	}
}

// GetListener sets up the TCP listener used when running the dispatcher as a
// local intercepting proxy.
func (worker *Worker) GetListener(address string, port string) (net.Listener, error) {
	rawListener, err := net.Listen("tcp", fmt.Sprintf("%s:%s", address, port))
	if err != nil {
		return rawListener, fmt.Errorf("setting up listener on address:port %s:%s", address, port)
	}
	worker.WriteLog("INFO", fmt.Sprintf("Caravel Service Started on %s:%s", address, port))
	return rawListener, nil
}

// Serve runs the dispatcher as a local HTTP proxy for hosting applications that
// cannot inject a transport. The modifier pipeline observes traffic before and
// after dispatch; the dispatcher itself is installed as the round tripper.
func (worker *Worker) Serve(listener net.Listener) error {
	go worker.WriteToDB()
	worker.martianProxy.SetRequestModifier(worker.Modifiers)
	worker.martianProxy.SetResponseModifier(worker.Modifiers)
	worker.martianProxy.SetRoundTripper(worker.transport)
	return worker.martianProxy.Serve(listener)
}

// AddRequestModifier adds a request observer to the proxy pipeline.
func (worker *Worker) AddRequestModifier(modifier martian.RequestModifier) {
	worker.Modifiers.AddRequestModifier(modifier)
}

// AddResponseModifier adds a response observer to the proxy pipeline.
func (worker *Worker) AddResponseModifier(modifier martian.ResponseModifier) {
	worker.Modifiers.AddResponseModifier(modifier)
}

// Close shuts the proxy down. The repository is owned by the caller that opened
// it and is closed separately.
func (worker *Worker) Close() {
	worker.martianProxy.Close()
}
