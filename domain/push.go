package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyPayload is returned when a push event arrives without a payload.
	// The event is a no-op, not a failure.
	ErrEmptyPayload = errors.New("push event carries no payload")

	// ErrDecodePayload is returned when a push payload is not valid JSON or is
	// missing required fields. The receiver logs and drops such events.
	ErrDecodePayload = errors.New("malformed push payload")
)

// PushPayload is the decoded form of an inbound push message. It is transient
// and never persisted; it exists only long enough to render a notification.
type PushPayload struct {
	Title   string               `json:"title"`
	Message string               `json:"message"`
	URL     string               `json:"url,omitempty"`
	ID      string               `json:"id,omitempty"`
	Actions []NotificationAction `json:"actions,omitempty"`
}

// NotificationAction is an optional action button carried verbatim from the
// push payload onto the rendered notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Notification is a rendered user-visible notification handed to the hosting
// application for display.
type Notification struct {
	ID        string               // Identifier, taken from the payload or generated
	Title     string               // Notification title
	Body      string               // Notification body text
	Icon      string               // Icon asset reference
	Badge     string               // Badge asset reference
	URL       string               // Target URL opened or focused on click
	Timestamp time.Time            // Generation timestamp
	Actions   []NotificationAction // Action buttons, verbatim from the payload
}

// DecodePushPayload validates and decodes raw push bytes into a PushPayload.
// Empty input yields ErrEmptyPayload. Invalid JSON or a payload without both a
// title and a message yields ErrDecodePayload wrapping the cause, so callers
// can branch on the failure class without inspecting message text.
func DecodePushPayload(raw []byte) (*PushPayload, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	var payload PushPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w : %w", ErrDecodePayload, err)
	}

	if payload.Title == "" || payload.Message == "" {
		return nil, fmt.Errorf("%w : title and message are required", ErrDecodePayload)
	}

	return &payload, nil
}

// Notification builds the rendered notification for the payload, generating an
// identifier when the payload does not carry one.
func (payload *PushPayload) Notification(icon string, badge string) (*Notification, error) {
	id := payload.ID
	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generating notification id : %w", err)
		}
		id = generated.String()
	}

	url := payload.URL
	if url == "" {
		url = "/"
	}

	return &Notification{
		ID:        id,
		Title:     payload.Title,
		Body:      payload.Message,
		Icon:      icon,
		Badge:     badge,
		URL:       url,
		Timestamp: time.Now(),
		Actions:   payload.Actions,
	}, nil
}
