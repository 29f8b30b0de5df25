// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package persistence

import (
	"context"
	"sync"
)

// MemoryMedium implements Medium using a map (thread-safe). Values are copied
// on the way in and out so callers can never alias stored bytes.
type MemoryMedium struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryMedium creates an empty in-memory medium.
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{data: make(map[string][]byte)}
}

func (m *MemoryMedium) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, ErrClosed
	}
	val, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

func (m *MemoryMedium) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return ErrClosed
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryMedium) Close() error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}
