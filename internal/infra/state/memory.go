// Package state implements port.StateStore, the per-device key/value
// storage that stands in for the browser's local storage.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory keeps JSON-encoded values in process memory.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemory creates an empty in-memory state store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

// Load decodes the value at key into v.
func (m *Memory) Load(_ context.Context, key string, v any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode state %q: %w", key, err)
	}
	return true, nil
}

// Save stores v at key. Values are encoded so callers never share memory
// with the store.
func (m *Memory) Save(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %q: %w", key, err)
	}
	m.mu.Lock()
	m.items[key] = raw
	m.mu.Unlock()
	return nil
}

// Delete removes keys; missing keys are ignored.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Put stores raw bytes at key, bypassing encoding. Used to seed corrupt
// entries in tests and by the reset tooling.
func (m *Memory) Put(key string, raw []byte) {
	m.mu.Lock()
	m.items[key] = append([]byte(nil), raw...)
	m.mu.Unlock()
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }
