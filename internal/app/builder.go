package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/supplier-sync/internal/api"
	"github.com/stacklok/supplier-sync/internal/app/storage"
	"github.com/stacklok/supplier-sync/internal/changelog"
	"github.com/stacklok/supplier-sync/internal/config"
	"github.com/stacklok/supplier-sync/internal/db"
	"github.com/stacklok/supplier-sync/internal/reconcile"
	"github.com/stacklok/supplier-sync/internal/supplier"
	"github.com/stacklok/supplier-sync/internal/supplier/mouser"
	pkgsync "github.com/stacklok/supplier-sync/internal/sync"
	"github.com/stacklok/supplier-sync/internal/sync/coordinator"
	"github.com/stacklok/supplier-sync/internal/telemetry"
)

const (
	defaultHTTPAddress = ":8080"
	// On-demand ticks wait for one supplier round trip
	defaultRequestTimeout  = 45 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// SupplierSyncAppOptions is a function that configures the app builder
type SupplierSyncAppOptions func(*appConfig) error

// appConfig collects the builder inputs. Component overrides are mainly
// used by tests.
type appConfig struct {
	config *config.Config

	storageFactory storage.Factory
	client         supplier.Client

	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...SupplierSyncAppOptions) (*appConfig, error) {
	cfg := &appConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewSupplierSyncApp builds the application from its configuration
func NewSupplierSyncApp(ctx context.Context, opts ...SupplierSyncAppOptions) (*SupplierSyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.storageFactory == nil {
		var factoryOpts []storage.DatabaseFactoryOption
		if cfg.tracerProvider != nil {
			factoryOpts = append(factoryOpts, storage.WithTracer(cfg.tracerProvider.Tracer(db.StoreTracerName)))
		}
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config, factoryOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	components, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	factory := cfg.storageFactory
	cancelFunc := func() {
		factory.Cleanup()
		cancel()
	}

	return &SupplierSyncApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SupplierSyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SupplierSyncAppOptions {
	return func(cfg *appConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SupplierSyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) SupplierSyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithSupplierClient replaces the Mouser client built from the config
func WithSupplierClient(c supplier.Client) SupplierSyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.client = c
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for sync and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) SupplierSyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) SupplierSyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler mounts a Prometheus scrape handler at /metrics
func WithMetricsHandler(h http.Handler) SupplierSyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildSyncComponents wires stores, supplier client, reconciler, engine,
// coordinator and the review service
func buildSyncComponents(ctx context.Context, b *appConfig) (*AppComponents, error) {
	slog.Info("Initializing sync components")

	stores, err := b.storageFactory.CreateStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create stores: %w", err)
	}

	stateService, err := b.storageFactory.CreateStateService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create state service: %w", err)
	}

	if b.client == nil {
		b.client, err = buildSupplierClient(&b.config.Supplier)
		if err != nil {
			return nil, err
		}
	}

	policy, err := reconcile.ParseMultiMatchPolicy(b.config.Sync.GetMultiMatchPolicy())
	if err != nil {
		return nil, err
	}

	syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	var tracer trace.Tracer
	if b.tracerProvider != nil {
		tracer = b.tracerProvider.Tracer(pkgsync.TracerName)
	}

	reconciler := reconcile.New(b.client, stores.Records, stores.Changes,
		reconcile.WithSearchURL(b.config.Supplier.GetSearchURL()),
		reconcile.WithMultiMatchPolicy(policy),
		reconcile.WithMetrics(syncMetrics),
		reconcile.WithTracer(tracer),
	)

	engine := pkgsync.NewEngine(stores.Catalog, reconciler, stateService,
		pkgsync.WithFailureThreshold(b.config.Sync.GetFailureThreshold()),
		pkgsync.WithMetrics(syncMetrics),
		pkgsync.WithTracer(tracer),
	)

	components := &AppComponents{
		Engine:          engine,
		SyncCoordinator: coordinator.New(engine, b.config.Sync.GetInterval()),
		Review:          changelog.NewReviewService(stores.Changes, stores.Records, stores.Catalog, b.client),
		Stores:          stores,
	}

	slog.Info("Sync components initialized",
		"supplier", b.client.Name(),
		"interval", b.config.Sync.GetInterval(),
		"failure_threshold", b.config.Sync.GetFailureThreshold(),
		"multi_match_policy", policy)
	return components, nil
}

func buildSupplierClient(cfg *config.SupplierConfig) (supplier.Client, error) {
	apiKey, err := cfg.GetAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier API key: %w", err)
	}
	client, err := mouser.NewFromSettings(apiKey, cfg.GetEndpoint(), cfg.ProxyURL, cfg.GetTimeout(),
		mouser.WithName(cfg.GetName()))
	if err != nil {
		return nil, fmt.Errorf("failed to create supplier client: %w", err)
	}
	return client, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *appConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry runs first so that rejected and timed out requests are
	// measured too
	httpMetrics, err := telemetry.NewHTTPMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	b.middlewares = append([]func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(b.tracerProvider),
		httpMetrics.Middleware,
	}, b.middlewares...)

	serverOpts := []api.ServerOption{api.WithMiddlewares(b.middlewares...)}
	if components.Stores.Readiness != nil {
		serverOpts = append(serverOpts, api.WithReadinessChecker(components.Stores.Readiness))
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}

	router := api.NewServer(components.Engine, components.Review, components.Stores.Catalog, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
