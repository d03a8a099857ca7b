package app

import (
	"github.com/stacklok/supplier-sync/internal/app/storage"
	"github.com/stacklok/supplier-sync/internal/changelog"
	pkgsync "github.com/stacklok/supplier-sync/internal/sync"
	"github.com/stacklok/supplier-sync/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Engine runs single ticks
	Engine *pkgsync.Engine

	// SyncCoordinator triggers the engine periodically
	SyncCoordinator coordinator.Coordinator

	// Review implements the change log review workflow
	Review changelog.ReviewService

	// Stores are the catalog, record and change log stores
	Stores *storage.Stores
}
