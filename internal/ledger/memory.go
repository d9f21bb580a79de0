package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is a non-durable Ledger.
type MemoryLedger struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemory returns an empty MemoryLedger, optionally seeded with keys.
func NewMemory(keys ...string) *MemoryLedger {
	m := &MemoryLedger{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		m.keys[k] = struct{}{}
	}
	return m
}

func (m *MemoryLedger) IsRecorded(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *MemoryLedger) Record(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return duplicate(key)
	}
	m.keys[key] = struct{}{}
	return nil
}

// Len returns the number of recorded keys.
func (m *MemoryLedger) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}
