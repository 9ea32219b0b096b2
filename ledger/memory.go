package ledger

import (
	"context"
	"sync"
	"time"
)

type Memory struct {
	mu       sync.Mutex
	sessions map[VehicleID]time.Time
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[VehicleID]time.Time)}
}

func (m *Memory) RecordEntry(_ context.Context, id VehicleID, entry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = entry
	return nil
}

func (m *Memory) TakeExit(_ context.Context, id VehicleID) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	delete(m.sessions, id)
	return entry, nil
}

// Len returns the number of open sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
