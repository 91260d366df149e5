package storage

import (
	"sync"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/google/uuid"
)

// Memory is an in-memory provider.
type Memory struct {
	mu     sync.RWMutex
	states map[uuid.UUID]envelope.Payload
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{states: make(map[uuid.UUID]envelope.Payload)}
}

// For returns the storage slot of the given plugin.
func (m *Memory) For(info plugin.Info) plugin.Storage {
	return &memorySlot{m: m, id: info.ID}
}

// Len returns the number of stored snapshots.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Close does nothing.
func (m *Memory) Close() error {
	return nil
}

type memorySlot struct {
	m  *Memory
	id uuid.UUID
}

func (s *memorySlot) StoreState(value envelope.Payload) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.states[s.id] = value
	return nil
}

func (s *memorySlot) LoadState() (envelope.Payload, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return s.m.states[s.id], nil
}
