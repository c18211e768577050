// Package storage persists the single saved code buffer. Backends share one
// key/value table layout.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// CodeKey is the key the free-text code buffer is saved under.
const CodeKey = "lego_python_code"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// KV is a string key/value store.
type KV interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set creates or replaces a value.
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open creates a store for the given driver: "sqlite" (dsn is a file path),
// "postgres" (dsn is a connection string, or $DATABASE_URL when empty), or
// "memory".
func Open(ctx context.Context, driver, dsn string) (KV, error) {
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "legocoder.db"
		}
		return OpenSQLite(ctx, dsn)
	case "postgres", "pg":
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage: connection required (set storage.dsn or DATABASE_URL)")
		}
		return OpenPostgres(ctx, dsn)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}

// Memory is an in-process KV, used when persistence is disabled and in tests.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
