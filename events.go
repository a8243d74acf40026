package caravel

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/caravel-app/caravel/domain"
)

var (
	// ErrUnknownEvent is returned when no handler is registered for an event kind.
	ErrUnknownEvent = errors.New("no handler registered for event kind")
)

// EventKind identifies a lifecycle event the worker handles.
type EventKind string

const (
	EventInstall           EventKind = "install"
	EventActivate          EventKind = "activate"
	EventFetch             EventKind = "fetch"
	EventSync              EventKind = "sync"
	EventPush              EventKind = "push"
	EventNotificationClick EventKind = "notificationclick"
)

// Event carries the kind-specific inputs of one lifecycle event. Only the
// fields relevant to the kind are populated.
type Event struct {
	Kind         EventKind
	Generation   string               // install, activate
	Request      *http.Request        // fetch
	Tag          string               // sync: store name to drain
	Payload      []byte               // push: raw UTF-8 JSON bytes
	Notification *domain.Notification // notificationclick
}

// EventHandler processes one event. Fetch handlers return the *http.Response;
// all other kinds return a nil result.
type EventHandler func(ctx context.Context, event Event) (any, error)

// registerHandlers builds the event table. Keeping dispatch behind a table
// keeps the strategy logic independent of whatever event-delivery mechanism
// the hosting platform offers.
func (worker *Worker) registerHandlers() {
	worker.handlers = map[EventKind]EventHandler{
		EventInstall: func(ctx context.Context, event Event) (any, error) {
			return nil, worker.Install(ctx, event.Generation)
		},
		EventActivate: func(ctx context.Context, event Event) (any, error) {
			return nil, worker.Activate(ctx, event.Generation)
		},
		EventFetch: func(ctx context.Context, event Event) (any, error) {
			return worker.transport.RoundTrip(event.Request.WithContext(ctx))
		},
		EventSync: func(ctx context.Context, event Event) (any, error) {
			return nil, worker.Drain(ctx, event.Tag)
		},
		EventPush: func(ctx context.Context, event Event) (any, error) {
			return nil, worker.Push(ctx, event.Payload)
		},
		EventNotificationClick: func(ctx context.Context, event Event) (any, error) {
			return nil, worker.NotificationClick(ctx, event.Notification)
		},
	}
}

// Dispatch routes an event to its registered handler.
func (worker *Worker) Dispatch(ctx context.Context, event Event) (any, error) {
	handler, ok := worker.handlers[event.Kind]
	if !ok {
		return nil, fmt.Errorf("%w : %s", ErrUnknownEvent, event.Kind)
	}
	return handler(ctx, event)
}
