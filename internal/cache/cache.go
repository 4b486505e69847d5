// Package cache provides the durable key-value store that keeps the client's
// last-known transactions, its pending operation queue and its settings
// across restarts.
//
// Backends store opaque bytes under fixed logical keys; Load and Save add JSON
// encoding on top. Available backends:
//
//   - SQLite: a single kv table in an embedded database (WAL mode)
//   - Bolt:   one bucket in a bbolt file
//   - Memory: process-local, for tests and throwaway sessions
//
// Any backend can be wrapped with Encrypted to seal values at rest.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Fixed logical keys.
const (
	KeyTransactions = "transactions"
	KeyQueue        = "queue"
	KeySettings     = "settings"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache is closed")

// ErrCorrupt marks a stored value that could not be decoded.
var ErrCorrupt = errors.New("corrupt cache value")

// Store is a durable byte store addressed by key.
type Store interface {
	// Get returns the value for key. ok is false when the key was never set.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put durably stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Close releases the underlying resources.
	Close() error
}

// Load decodes the JSON value stored under key into v. It reports false,
// leaving v untouched, when the key is absent.
func Load(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w (%w)", key, err, ErrCorrupt)
	}
	return true, nil
}

// Save encodes v as JSON and stores it under key.
func Save(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Open opens the backend named by kind ("sqlite", "bolt" or "memory") at path.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "sqlite":
		return OpenSQLite(path)
	case "bolt":
		return OpenBolt(path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want sqlite, bolt or memory)", kind)
	}
}
