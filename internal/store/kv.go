package store

import (
	"errors"
	"fmt"
	"sync"
)

var ErrKeyNotFound = errors.New("key not found")

// KV is the durable key/value backend behind the persistent store adapter.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Open returns the backend named by kind ("sqlite" or "pebble").
func Open(kind, sqlitePath, pebbleDir string) (KV, error) {
	switch kind {
	case "sqlite", "":
		return NewSQLiteStore(sqlitePath)
	case "pebble":
		return NewPebbleStore(pebbleDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

// MemoryStore is an in-process KV, used by tests and throwaway CLI runs.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	m.puts++
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Puts reports how many writes reached the store.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
