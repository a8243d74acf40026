// Package db provides the persistence layer for the Caravel worker.
// It encapsulates all interactions with the underlying SQLite database,
// managing durable state for the sync queue, the user preference record,
// cache entries, and logs.
//
// This package is responsible for:
// - Establishing and managing database connections (`db.go`).
// - Defining database-specific data structures that map to SQL table schemas.
// - Implementing repository interfaces (e.g., `SyncRepository`, `PreferenceRepository`)
//   to perform CRUD operations.
// - Handling data conversion between domain-specific structs (from the `domain` package)
//   and database-friendly structs, including the use of `sql.Null*` types for nullable fields.
// - Managing database migrations (`migrations/`).
// - Providing common database utility types (`types.go`).
package db
