// Package storage creates the store family used by the application. The
// catalog, supplier record and change log stores plus the sync state always
// come from one factory so that they share a backend.
package storage

import (
	"context"
	"fmt"

	"github.com/stacklok/supplier-sync/internal/catalog"
	"github.com/stacklok/supplier-sync/internal/changelog"
	"github.com/stacklok/supplier-sync/internal/config"
	"github.com/stacklok/supplier-sync/internal/supplier"
	"github.com/stacklok/supplier-sync/internal/sync/state"
)

// ReadinessChecker reports whether a store can serve requests.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Stores groups the store ports of one backend.
type Stores struct {
	Catalog catalog.Store
	Records supplier.RecordStore
	Changes changelog.Store
	// Readiness is nil for backends that are always ready.
	Readiness ReadinessChecker
}

// Factory creates storage-dependent components as a family.
type Factory interface {
	// CreateStores returns the catalog, record and change log stores.
	CreateStores(ctx context.Context) (*Stores, error)

	// CreateStateService returns the sync state backend selected by
	// sync.state, falling back to the factory's own storage.
	CreateStateService(ctx context.Context) (state.Service, error)

	// Cleanup releases resources such as the database pool.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.Storage.GetType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg, opts...)
	case config.StorageTypeMemory:
		return NewMemoryFactory(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.GetType())
	}
}
