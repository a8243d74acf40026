package caravel

import (
	"context"
	"errors"
	"fmt"

	"github.com/caravel-app/caravel/domain"
)

var (
	// ErrNotifierUndefined is returned when no notification renderer is configured.
	ErrNotifierUndefined = errors.New("no notifier configured")

	// ErrWindowsUndefined is returned when no window registry is configured.
	ErrWindowsUndefined = errors.New("no window registry configured")
)

// Notifier renders and dismisses user-visible notifications. Implementations
// are provided by the hosting application.
type Notifier interface {
	// Show renders the notification.
	Show(notification *domain.Notification) error
	// Dismiss removes a rendered notification by its identifier.
	Dismiss(id string) error
}

// Window is one open application view.
type Window struct {
	ID  string // Opaque identifier usable with Focus
	URL string // URL the window currently shows
}

// WindowRegistry enumerates and controls open application windows.
// Implementations are provided by the hosting application.
type WindowRegistry interface {
	// Windows lists every open application window.
	Windows() ([]Window, error)
	// Focus brings an existing window to the foreground.
	Focus(id string) error
	// Open opens a new window at the given URL.
	Open(url string) error
}

// Push handles an inbound push message. An empty payload is a no-op; a
// malformed payload is logged and dropped without ever escaping as a failure,
// so a bad push can never crash the receiver.
func (worker *Worker) Push(ctx context.Context, payload []byte) error {
	decoded, err := domain.DecodePushPayload(payload)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPayload) {
			return nil
		}
		worker.WriteLog("WARN", fmt.Sprintf("dropping push event : %v", err))
		return nil
	}

	notification, err := decoded.Notification(worker.Config.NotificationIcon, worker.Config.NotificationBadge)
	if err != nil {
		return fmt.Errorf("building notification : %w", err)
	}

	if worker.Notifier == nil {
		return ErrNotifierUndefined
	}
	if err := worker.Notifier.Show(notification); err != nil {
		return fmt.Errorf("showing notification %s : %w", notification.ID, err)
	}
	return nil
}

// NotificationClick handles user interaction with a rendered notification. The
// notification is always dismissed first; then exactly one of two outcomes
// occurs: an existing window showing the target URL is focused, or a new
// window is opened at the target URL.
func (worker *Worker) NotificationClick(ctx context.Context, notification *domain.Notification) error {
	if worker.Notifier != nil {
		if err := worker.Notifier.Dismiss(notification.ID); err != nil {
			worker.WriteLog("WARN", fmt.Sprintf("dismissing notification %s : %v", notification.ID, err))
		}
	}

	if worker.Windows == nil {
		return ErrWindowsUndefined
	}

	target := notification.URL
	if target == "" {
		target = "/"
	}

	windows, err := worker.Windows.Windows()
	if err != nil {
		return fmt.Errorf("listing windows : %w", err)
	}

	for _, window := range windows {
		if window.URL == target {
			if err := worker.Windows.Focus(window.ID); err != nil {
				return fmt.Errorf("focusing window %s : %w", window.ID, err)
			}
			return nil
		}
	}

	if err := worker.Windows.Open(target); err != nil {
		return fmt.Errorf("opening window at %s : %w", target, err)
	}
	return nil
}
