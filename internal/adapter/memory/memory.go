// Package memory implements an in-memory key-value store for development and testing.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"bookstore/internal/domain"
)

// DB implements domain.KV in memory.
type DB struct {
	mu     sync.Mutex
	values map[string][]byte
}

// New creates a new in-memory store.
func New() *DB {
	return &DB{values: make(map[string][]byte)}
}

// Ensure interfaces are met.
var _ domain.KV = (*DB)(nil)

// Get returns a copy of the value stored under key.
func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	v, ok := db.values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Put replaces the value stored under key.
func (db *DB) Put(ctx context.Context, key string, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.values[key] = slices.Clone(value)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.values, key)
	return nil
}

// Keys lists the stored keys in sorted order.
func (db *DB) Keys() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	keys := make([]string, 0, len(db.values))
	for k := range db.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
