package domain

import (
	"errors"
	"time"
)

var (
	// ErrNoPreferences is returned when the preference record has not been written yet.
	ErrNoPreferences = errors.New("no preference record stored")
)

// PreferenceKey is the key of the singleton preference record. There is exactly
// one PreferenceRecord per installation; local writes overwrite it in place.
const PreferenceKey = "current"

// PreferenceRepository defines the interface for the singleton user preference
// snapshot. Unlike queue items, the record is never deleted during normal
// operation; a successful replay flips its Synced flag instead.
type PreferenceRepository interface {
	// GetPreferences retrieves the current preference record.
	// It returns ErrNoPreferences when no record has been written yet.
	GetPreferences() (*PreferenceRecord, error)

	// SetPreferences writes a new preference snapshot with Synced set to false.
	SetPreferences(payload []byte) (*PreferenceRecord, error)

	// MarkPreferencesSynced flips the Synced flag after a successful replay.
	MarkPreferencesSynced() error
}

// PreferenceRecord holds the latest user preference snapshot together with its
// synchronization state.
type PreferenceRecord struct {
	Key       string    // Record key, always PreferenceKey
	Payload   []byte    // Opaque JSON preference snapshot
	Synced    bool      // Whether the snapshot has reached the server
	UpdatedAt time.Time // Timestamp of the last local write or sync
}
