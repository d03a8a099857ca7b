package state

import (
	"context"
	"sync"
)

type memoryStateService struct {
	mu    sync.Mutex
	state SyncState
}

// NewMemoryStateService returns a Service that keeps the state in process
// memory. It is used with the in-memory storage backend.
func NewMemoryStateService() Service {
	return &memoryStateService{state: *Default()}
}

func (m *memoryStateService) Load(_ context.Context) (*SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	return &s, nil
}

func (m *memoryStateService) Save(_ context.Context, s *SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = *s
	return nil
}

func (m *memoryStateService) Update(_ context.Context, fn func(s *SyncState) bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	if !fn(&s) {
		return false, nil
	}
	m.state = s
	return true, nil
}
