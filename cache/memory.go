package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store backed by a map. It is used in tests and
// by applications that do not need cache persistence across restarts.
type MemoryStore struct {
	generations map[string]map[string]*Entry

	lock sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		generations: make(map[string]map[string]*Entry),
	}
}

func entryKey(method string, url string) string {
	return method + " " + url
}

// Match implements the Store interface.
func (store *MemoryStore) Match(_ context.Context, generation string, method string, url string) (*Entry, error) {
	store.lock.RLock()
	defer store.lock.RUnlock()

	entries, found := store.generations[generation]
	if !found {
		return nil, ErrNotFound
	}

	entry, found := entries[entryKey(method, url)]
	if !found {
		return nil, ErrNotFound
	}

	return entry, nil
}

// Put implements the Store interface.
func (store *MemoryStore) Put(_ context.Context, entry *Entry) error {
	store.lock.Lock()
	defer store.lock.Unlock()

	entries, found := store.generations[entry.Generation]
	if !found {
		entries = make(map[string]*Entry)
		store.generations[entry.Generation] = entries
	}

	entries[entryKey(entry.Method, entry.URL)] = entry
	return nil
}

// Delete implements the Store interface.
func (store *MemoryStore) Delete(_ context.Context, generation string, method string, url string) error {
	store.lock.Lock()
	defer store.lock.Unlock()

	if entries, found := store.generations[generation]; found {
		delete(entries, entryKey(method, url))
	}
	return nil
}

// Generations implements the Store interface.
func (store *MemoryStore) Generations(_ context.Context) ([]string, error) {
	store.lock.RLock()
	defer store.lock.RUnlock()

	generations := make([]string, 0, len(store.generations))
	for generation, entries := range store.generations {
		if len(entries) > 0 {
			generations = append(generations, generation)
		}
	}
	return generations, nil
}

// PurgeExcept implements the Store interface.
func (store *MemoryStore) PurgeExcept(_ context.Context, generation string) error {
	store.lock.Lock()
	defer store.lock.Unlock()

	for name := range store.generations {
		if name != generation {
			delete(store.generations, name)
		}
	}
	return nil
}
