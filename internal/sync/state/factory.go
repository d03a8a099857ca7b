package state

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend names accepted by NewStateService
const (
	BackendDatabase = "database"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

// NewStateService creates the Service for backend. The pool is required for
// the database backend, path for the file backend.
func NewStateService(backend, path string, pool *pgxpool.Pool) (Service, error) {
	switch backend {
	case BackendDatabase, "":
		if pool == nil {
			return nil, fmt.Errorf("database pool is required for the %s state backend", BackendDatabase)
		}
		return NewDBStateService(pool), nil
	case BackendFile:
		if path == "" {
			path = DefaultStateFile
		}
		return NewFileStateService(path), nil
	case BackendMemory:
		return NewMemoryStateService(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
