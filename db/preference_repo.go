package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/caravel-app/caravel/domain"
)

var _ domain.PreferenceRepository = (*Repository)(nil)

// dbPreference represents the singleton preference record as stored in the database.
type dbPreference struct {
	Key       string    `db:"key"`        // Record key, always domain.PreferenceKey.
	Payload   []byte    `db:"payload"`    // Opaque JSON preference snapshot.
	Synced    bool      `db:"synced"`     // Whether the snapshot has reached the server.
	UpdatedAt time.Time `db:"updated_at"` // Timestamp of the last local write or sync.
}

// toDomainPreference converts a dbPreference to a domain.PreferenceRecord.
func toDomainPreference(record *dbPreference) *domain.PreferenceRecord {
	return &domain.PreferenceRecord{
		Key:       record.Key,
		Payload:   record.Payload,
		Synced:    record.Synced,
		UpdatedAt: record.UpdatedAt,
	}
}

// GetPreferences retrieves the current preference record.
func (repo *Repository) GetPreferences() (*domain.PreferenceRecord, error) {
	var record dbPreference
	query := `SELECT key, payload, synced, updated_at FROM preference WHERE key = ?`

	err := repo.dbConn.Get(&record, query, domain.PreferenceKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoPreferences
		}
		return nil, fmt.Errorf("fetching preference record : %w", err)
	}

	return toDomainPreference(&record), nil
}

// SetPreferences writes a new preference snapshot with Synced set to false.
// The record is replaced atomically; local writes always mark it unsynced.
func (repo *Repository) SetPreferences(payload []byte) (*domain.PreferenceRecord, error) {
	record := &dbPreference{
		Key:       domain.PreferenceKey,
		Payload:   payload,
		Synced:    false,
		UpdatedAt: time.Now(),
	}

	query := `INSERT INTO preference (key, payload, synced, updated_at)
	          VALUES (:key, :payload, :synced, :updated_at)
	          ON CONFLICT(key) DO UPDATE SET
	              payload=excluded.payload,
	              synced=excluded.synced,
	              updated_at=excluded.updated_at`

	_, err := repo.dbConn.NamedExec(query, record)
	if err != nil {
		return nil, fmt.Errorf("setting preference record : %w", err)
	}

	return toDomainPreference(record), nil
}

// MarkPreferencesSynced flips the Synced flag after a successful replay.
func (repo *Repository) MarkPreferencesSynced() error {
	query := `UPDATE preference SET synced = 1, updated_at = ? WHERE key = ?`

	result, err := repo.dbConn.Exec(query, time.Now(), domain.PreferenceKey)
	if err != nil {
		return fmt.Errorf("marking preferences synced : %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking synced rows affected : %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrNoPreferences
	}

	return nil
}
