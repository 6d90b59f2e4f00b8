// Package storage provides localStorage-shaped string stores for page state:
// an in-memory map, a JSON file on disk, and the localStorage of a page open
// in a Kernel browser.
package storage

import (
	"context"
	"sync"

	"github.com/samber/lo"
)

// Memory is an in-process store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemory returns a store seeded with items.
func NewMemory(items map[string]string) *Memory {
	m := &Memory{items: make(map[string]string, len(items))}
	for k, v := range items {
		m.items[k] = v
	}
	return m
}

func (m *Memory) GetItem(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) SetItem(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// Keys returns the stored keys in no particular order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Keys(m.items)
}
