package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/supplier-sync/internal/config"
	"github.com/stacklok/supplier-sync/internal/db"
	"github.com/stacklok/supplier-sync/internal/sync/state"
)

// DatabaseFactory creates PostgreSQL backed components sharing one pool.
type DatabaseFactory struct {
	config *config.Config
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ Factory = (*DatabaseFactory)(nil)

// DatabaseFactoryOption is a functional option for configuring the DatabaseFactory
type DatabaseFactoryOption func(*DatabaseFactory)

// WithTracer sets the OpenTelemetry tracer for the database stores.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.tracer = tracer
	}
}

// WithPool makes the factory use an existing pool instead of dialing one.
// Cleanup closes it.
func WithPool(pool *pgxpool.Pool) DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.pool = pool
	}
}

// NewDatabaseFactory creates a database-backed storage factory and connects
// to the configured database.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	factory := &DatabaseFactory{config: cfg}
	for _, opt := range opts {
		opt(factory)
	}

	if factory.pool == nil {
		if cfg.Database == nil {
			return nil, fmt.Errorf("database configuration is required for database storage type")
		}
		slog.Info("Creating database-backed storage factory")
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection pool: %w", err)
		}
		factory.pool = pool
	}

	return factory, nil
}

// CreateStores implements Factory.
func (d *DatabaseFactory) CreateStores(_ context.Context) (*Stores, error) {
	slog.Debug("Creating database-backed stores")

	opts := []db.Option{db.WithConnectionPool(d.pool)}
	if d.tracer != nil {
		opts = append(opts, db.WithTracer(d.tracer))
		slog.Debug("Database store tracing enabled")
	}

	store, err := db.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Stores{Catalog: store, Records: store, Changes: store, Readiness: store}, nil
}

// CreateStateService implements Factory.
func (d *DatabaseFactory) CreateStateService(_ context.Context) (state.Service, error) {
	backend := d.config.Sync.GetStateBackend()
	slog.Debug("Creating state service", "backend", backend)
	return state.NewStateService(backend, d.config.Sync.GetStateFile(), d.pool)
}

// Cleanup closes the database connection pool.
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}
