// Package config provides configuration loading for the supplier sync service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/supplier-sync/internal/telemetry"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "SUPPLIER_SYNC"

const (
	// StorageTypeDatabase stores catalog, records and change log in Postgres
	StorageTypeDatabase = "database"

	// StorageTypeMemory keeps everything in process memory
	StorageTypeMemory = "memory"
)

const (
	// StateBackendDatabase keeps the sync state in the sync_state table
	StateBackendDatabase = "database"

	// StateBackendFile keeps the sync state in a locked JSON file
	StateBackendFile = "file"
)

// Defaults
const (
	DefaultSupplierName     = "Mouser"
	DefaultSupplierEndpoint = "https://api.mouser.com/api/v1.0/search/partnumber"
	DefaultSearchURL        = "https://www.mouser.de/c/?q="
	DefaultSupplierTimeout  = 20 * time.Second
	DefaultSyncInterval     = 3 * time.Minute
	DefaultFailureThreshold = 10
	DefaultMultiMatchPolicy = "log"
	DefaultStateFile        = "./data/sync-state.json"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Supplier  SupplierConfig    `yaml:"supplier"`
	Sync      SyncConfig        `yaml:"sync"`
	Storage   StorageConfig     `yaml:"storage"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// SupplierConfig configures the remote supplier catalog
type SupplierConfig struct {
	// Name is stored on every supplier record. Defaults to "Mouser"
	Name string `yaml:"name,omitempty"`

	// Endpoint is the part number search endpoint
	Endpoint string `yaml:"endpoint,omitempty"`

	// APIKey is the supplier API key. Prefer APIKeyFile or the
	// SUPPLIER_SYNC_SUPPLIER_API_KEY environment variable.
	APIKey string `yaml:"apiKey,omitempty"`

	// APIKeyFile is a file containing only the API key
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`

	// ProxyURL routes supplier requests through an HTTP proxy
	ProxyURL string `yaml:"proxyURL,omitempty"`

	// Timeout is the per-request timeout (e.g. "20s")
	Timeout string `yaml:"timeout,omitempty"`

	// SearchURL prefixes the item name in links of ambiguous search results
	SearchURL string `yaml:"searchURL,omitempty"`
}

// SyncConfig configures the tick engine
type SyncConfig struct {
	// Interval between ticks (e.g. "3m")
	Interval string `yaml:"interval,omitempty"`

	// FailureThreshold is the number of consecutive failures that disables syncing
	FailureThreshold int `yaml:"failureThreshold,omitempty"`

	// MultiMatchPolicy is "log" or "changelog"
	MultiMatchPolicy string `yaml:"multiMatchPolicy,omitempty"`

	// State is the sync state backend, "database" or "file"
	State string `yaml:"state,omitempty"`

	// StateFile is the path of the file state backend
	StateFile string `yaml:"stateFile,omitempty"`
}

// StorageConfig selects where catalog data lives
type StorageConfig struct {
	Type string `yaml:"type,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// LoadConfig reads the YAML file given by WithConfigPath, applies
// SUPPLIER_SYNC_* environment overrides and validates the result. Without a
// path only defaults and the environment are used.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	config.applyEnvOverrides(newEnv())

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyEnvOverrides replaces string settings whose environment variable is
// set, e.g. SUPPLIER_SYNC_SUPPLIER_API_KEY for supplier.api_key.
func (c *Config) applyEnvOverrides(v *viper.Viper) {
	if c.Database == nil && v.GetString("database.host") != "" {
		c.Database = &DatabaseConfig{}
	}

	overrides := map[string]*string{
		"supplier.name":           &c.Supplier.Name,
		"supplier.endpoint":       &c.Supplier.Endpoint,
		"supplier.api_key":        &c.Supplier.APIKey,
		"supplier.api_key_file":   &c.Supplier.APIKeyFile,
		"supplier.proxy_url":      &c.Supplier.ProxyURL,
		"supplier.timeout":        &c.Supplier.Timeout,
		"sync.interval":           &c.Sync.Interval,
		"sync.multi_match_policy": &c.Sync.MultiMatchPolicy,
		"sync.state":              &c.Sync.State,
		"sync.state_file":         &c.Sync.StateFile,
		"storage.type":            &c.Storage.Type,
	}
	if c.Database != nil {
		overrides["database.host"] = &c.Database.Host
		overrides["database.user"] = &c.Database.User
		overrides["database.database"] = &c.Database.Database
		overrides["database.ssl_mode"] = &c.Database.SSLMode
	}

	for key, target := range overrides {
		if value := v.GetString(key); value != "" {
			*target = value
		}
	}

	if c.Database != nil {
		if port := v.GetInt("database.port"); port != 0 {
			c.Database.Port = port
		}
	}
	if threshold := v.GetInt("sync.failure_threshold"); threshold != 0 {
		c.Sync.FailureThreshold = threshold
	}
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Supplier.Timeout != "" {
		if d, err := time.ParseDuration(c.Supplier.Timeout); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("supplier.timeout: invalid duration %q", c.Supplier.Timeout))
		}
	}
	if c.Supplier.ProxyURL != "" {
		if _, err := url.Parse(c.Supplier.ProxyURL); err != nil {
			errs = append(errs, fmt.Errorf("supplier.proxyURL: %w", err))
		}
	}

	if c.Sync.Interval != "" {
		if d, err := time.ParseDuration(c.Sync.Interval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("sync.interval: invalid duration %q", c.Sync.Interval))
		}
	}
	if c.Sync.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("sync.failureThreshold must not be negative"))
	}
	switch c.Sync.GetMultiMatchPolicy() {
	case "log", "changelog":
	default:
		errs = append(errs, fmt.Errorf("sync.multiMatchPolicy must be \"log\" or \"changelog\", got %q", c.Sync.MultiMatchPolicy))
	}

	switch c.Storage.GetType() {
	case StorageTypeDatabase, StorageTypeMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.type must be %q or %q, got %q",
			StorageTypeDatabase, StorageTypeMemory, c.Storage.Type))
	}

	switch c.Sync.GetStateBackend() {
	case StateBackendDatabase, StateBackendFile:
	default:
		errs = append(errs, fmt.Errorf("sync.state must be %q or %q, got %q",
			StateBackendDatabase, StateBackendFile, c.Sync.State))
	}

	if c.NeedsDatabase() {
		if c.Database == nil {
			errs = append(errs, fmt.Errorf("database configuration is required for database storage or state"))
		} else if err := c.Database.validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// NeedsDatabase reports whether storage or sync state uses Postgres
func (c *Config) NeedsDatabase() bool {
	return c.Storage.GetType() == StorageTypeDatabase ||
		(c.Storage.GetType() != StorageTypeMemory && c.Sync.GetStateBackend() == StateBackendDatabase)
}

// GetType returns the storage type, defaulting to database
func (s *StorageConfig) GetType() string {
	if s.Type == "" {
		return StorageTypeDatabase
	}
	return s.Type
}

// GetName returns the supplier name
func (s *SupplierConfig) GetName() string {
	if s.Name == "" {
		return DefaultSupplierName
	}
	return s.Name
}

// GetEndpoint returns the search endpoint
func (s *SupplierConfig) GetEndpoint() string {
	if s.Endpoint == "" {
		return DefaultSupplierEndpoint
	}
	return s.Endpoint
}

// GetSearchURL returns the generic search link prefix
func (s *SupplierConfig) GetSearchURL() string {
	if s.SearchURL == "" {
		return DefaultSearchURL
	}
	return s.SearchURL
}

// GetTimeout returns the request timeout
func (s *SupplierConfig) GetTimeout() time.Duration {
	if d, err := time.ParseDuration(s.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultSupplierTimeout
}

// GetAPIKey returns the API key from APIKeyFile if set, otherwise APIKey
// (which environment overrides have already been applied to).
func (s *SupplierConfig) GetAPIKey() (string, error) {
	if s.APIKeyFile != "" {
		data, err := os.ReadFile(filepath.Clean(s.APIKeyFile))
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", s.APIKeyFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if s.APIKey != "" {
		return s.APIKey, nil
	}
	return "", fmt.Errorf(
		"no supplier API key configured: set supplier.apiKeyFile or %s_SUPPLIER_API_KEY", EnvPrefix)
}

// GetInterval returns the tick interval
func (s *SyncConfig) GetInterval() time.Duration {
	if d, err := time.ParseDuration(s.Interval); err == nil && d > 0 {
		return d
	}
	return DefaultSyncInterval
}

// GetFailureThreshold returns the circuit breaker threshold
func (s *SyncConfig) GetFailureThreshold() int {
	if s.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return s.FailureThreshold
}

// GetMultiMatchPolicy returns the ambiguous exact match policy
func (s *SyncConfig) GetMultiMatchPolicy() string {
	if s.MultiMatchPolicy == "" {
		return DefaultMultiMatchPolicy
	}
	return s.MultiMatchPolicy
}

// GetStateBackend returns the sync state backend
func (s *SyncConfig) GetStateBackend() string {
	if s.State == "" {
		return StateBackendDatabase
	}
	return s.State
}

// GetStateFile returns the file state backend path
func (s *SyncConfig) GetStateFile() string {
	if s.StateFile == "" {
		return DefaultStateFile
	}
	return s.StateFile
}

func (d *DatabaseConfig) validate() error {
	switch {
	case d.Host == "":
		return fmt.Errorf("database host is required")
	case d.Port == 0:
		return fmt.Errorf("database port is required")
	case d.User == "":
		return fmt.Errorf("database user is required")
	case d.Database == "":
		return fmt.Errorf("database name is required")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("invalid connection max lifetime: %w", err)
		}
	}
	return nil
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from SUPPLIER_SYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(d.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := newEnv().GetString("database.password"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// GetConnMaxLifetime returns the parsed connection lifetime, or zero if unset
func (d *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	if d.ConnMaxLifetime == "" {
		return 0
	}
	lifetime, err := time.ParseDuration(d.ConnMaxLifetime)
	if err != nil {
		return 0
	}
	return lifetime
}
