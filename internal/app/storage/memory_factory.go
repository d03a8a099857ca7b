package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/supplier-sync/internal/config"
	"github.com/stacklok/supplier-sync/internal/inmemory"
	"github.com/stacklok/supplier-sync/internal/sync/state"
)

// MemoryFactory creates process local components. Every store returned
// shares the same inmemory.Store.
type MemoryFactory struct {
	config *config.Config
	store  *inmemory.Store
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates an in-memory storage factory.
func NewMemoryFactory(cfg *config.Config) (*MemoryFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	slog.Info("Creating in-memory storage factory")
	return &MemoryFactory{config: cfg, store: inmemory.New()}, nil
}

// Store returns the shared in-memory store, e.g. for seeding.
func (m *MemoryFactory) Store() *inmemory.Store {
	return m.store
}

// CreateStores implements Factory.
func (m *MemoryFactory) CreateStores(_ context.Context) (*Stores, error) {
	return &Stores{Catalog: m.store, Records: m.store, Changes: m.store}, nil
}

// CreateStateService implements Factory. Without a database the default
// database backend degrades to process memory; a file backend is honoured.
func (m *MemoryFactory) CreateStateService(_ context.Context) (state.Service, error) {
	backend := m.config.Sync.GetStateBackend()
	if backend == state.BackendDatabase {
		backend = state.BackendMemory
	}
	slog.Debug("Creating state service", "backend", backend)
	return state.NewStateService(backend, m.config.Sync.GetStateFile(), nil)
}

// Cleanup is a no-op.
func (*MemoryFactory) Cleanup() {}
