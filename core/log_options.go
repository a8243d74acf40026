// Package core provides fundamental utilities for the Caravel worker.
// This file contains option functions for customizing log entries.
package core

import (
	"github.com/google/uuid"

	"github.com/caravel-app/caravel/domain"
)

// LogWithContext is an option to add a context map to a log entry.
func LogWithContext(context map[string]any) func(log *domain.Log) error {
	return func(log *domain.Log) error {
		log.Context = context
		return nil
	}
}

// LogWithQueueItemID is an option to associate a log entry with a queue item ID.
func LogWithQueueItemID(id uuid.UUID) func(log *domain.Log) error {
	return func(log *domain.Log) error {
		log.QueueItemID = &id
		return nil
	}
}
