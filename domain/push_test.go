package domain

import (
	"errors"
	"testing"
)

func TestDecodePushPayload(t *testing.T) {
	t.Run("should return ErrEmptyPayload on empty input", func(t *testing.T) {
		_, err := DecodePushPayload(nil)
		if !errors.Is(err, ErrEmptyPayload) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrEmptyPayload, err)
		}

		_, err = DecodePushPayload([]byte{})
		if !errors.Is(err, ErrEmptyPayload) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrEmptyPayload, err)
		}
	})

	t.Run("should return ErrDecodePayload on invalid JSON", func(t *testing.T) {
		_, err := DecodePushPayload([]byte("not json"))
		if !errors.Is(err, ErrDecodePayload) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrDecodePayload, err)
		}
	})

	t.Run("should require both title and message", func(t *testing.T) {
		cases := []struct {
			name string
			raw  string
		}{
			{"missing message", `{"title":"Report ready"}`},
			{"missing title", `{"message":"Your report is ready"}`},
			{"both empty", `{"title":"","message":""}`},
		}

		for _, testCase := range cases {
			t.Run(testCase.name, func(t *testing.T) {
				_, err := DecodePushPayload([]byte(testCase.raw))
				if !errors.Is(err, ErrDecodePayload) {
					t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrDecodePayload, err)
				}
			})
		}
	})

	t.Run("should decode a complete payload", func(t *testing.T) {
		raw := []byte(`{
			"title": "Report ready",
			"message": "Your monthly report is ready",
			"url": "/reports/2026-08",
			"id": "report-2026-08",
			"actions": [{"action": "open", "title": "Open report"}]
		}`)

		payload, err := DecodePushPayload(raw)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if payload.Title != "Report ready" {
			t.Fatalf("\nwanted:\nReport ready\ngot:\n%s", payload.Title)
		}
		if payload.URL != "/reports/2026-08" {
			t.Fatalf("\nwanted:\n/reports/2026-08\ngot:\n%s", payload.URL)
		}
		if len(payload.Actions) != 1 || payload.Actions[0].Action != "open" {
			t.Fatalf("\nwanted:\none open action\ngot:\n%v", payload.Actions)
		}
	})
}

func TestPushPayloadNotification(t *testing.T) {
	t.Run("should carry the payload id and url through", func(t *testing.T) {
		payload := &PushPayload{
			Title:   "Report ready",
			Message: "Your monthly report is ready",
			URL:     "/reports/2026-08",
			ID:      "report-2026-08",
		}

		notification, err := payload.Notification("/static/img/icon.png", "/static/img/badge.png")
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if notification.ID != "report-2026-08" {
			t.Fatalf("\nwanted:\nreport-2026-08\ngot:\n%s", notification.ID)
		}
		if notification.URL != "/reports/2026-08" {
			t.Fatalf("\nwanted:\n/reports/2026-08\ngot:\n%s", notification.URL)
		}
		if notification.Icon != "/static/img/icon.png" {
			t.Fatalf("\nwanted:\nconfigured icon\ngot:\n%s", notification.Icon)
		}
	})

	t.Run("should generate an id and default the url", func(t *testing.T) {
		payload := &PushPayload{Title: "Heads up", Message: "Something happened"}

		notification, err := payload.Notification("", "")
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if notification.ID == "" {
			t.Fatalf("\nwanted:\ngenerated id\ngot:\nempty")
		}
		if notification.URL != "/" {
			t.Fatalf("\nwanted:\n/\ngot:\n%s", notification.URL)
		}
	})
}
