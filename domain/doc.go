// Package domain defines the core business logic and data structures of the Caravel worker.
// It contains the primary domain models, such as QueueItem, PreferenceRecord, and
// PushPayload, as well as the repository interfaces that define the contracts for
// data persistence.
//
// This package serves as the central point for application-wide types and business rules,
// ensuring a clean separation between the worker's core logic and its implementation details,
// such as the database, the hosting application, or external services. By defining interfaces
// for repositories, the domain package remains independent of the data storage technology.
package domain
