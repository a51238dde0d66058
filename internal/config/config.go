// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/spatialsql"
	"github.com/Tqy43/ZSQL-gis/internal/tabular"
)

// EnvPrefix prefixes every environment variable, e.g. ZSQLGIS_STORE_DSN.
const EnvPrefix = "ZSQLGIS"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Import  ImportConfig  `mapstructure:"import"`
	Storage StorageConfig `mapstructure:"storage"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Project ProjectConfig `mapstructure:"project"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	FrontendEnabled bool          `mapstructure:"frontend_enabled"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// Store drivers.
const (
	DriverNone       = "none"
	DriverPostGIS    = "postgis"
	DriverSpatiaLite = "spatialite"
)

// StoreConfig holds spatial relational store configuration.
type StoreConfig struct {
	Driver       string                                `mapstructure:"driver"` // none, postgis, spatialite
	DSN          string                                `mapstructure:"dsn"`
	Path         string                                `mapstructure:"path"`
	MaxConns     int32                                 `mapstructure:"max_conns"`
	InitSchema   bool                                  `mapstructure:"init_schema"`
	DefaultLimit int                                   `mapstructure:"default_limit"`
	Timeout      time.Duration                         `mapstructure:"timeout"`
	Tables       map[domain.LayerKind]spatialsql.Table `mapstructure:"tables"`
}

// Enabled reports whether a store driver is configured.
func (c *StoreConfig) Enabled() bool {
	return c.Driver != "" && c.Driver != DriverNone
}

// ResolvedTables returns the default tables with configured overrides applied.
func (c *StoreConfig) ResolvedTables() spatialsql.Tables {
	tables := spatialsql.DefaultTables()
	for kind, t := range c.Tables {
		if t.Kind == "" {
			t.Kind = kind
		}
		if t.Name == "" {
			t.Name = tables[kind].Name
		}
		if t.Columns == nil {
			t.Columns = tables[kind].Columns
		}
		tables[kind] = t
	}
	return tables
}

// ImportConfig holds import pipeline configuration.
type ImportConfig struct {
	Inbox    string          `mapstructure:"inbox"`
	Watch    bool            `mapstructure:"watch"`
	Debounce time.Duration   `mapstructure:"debounce"`
	Aliases  tabular.Aliases `mapstructure:"aliases"`
}

// StorageConfig holds object storage configuration. Objects are imported
// as layers by the sync service and exports can be written back.
type StorageConfig struct {
	Type         string        `mapstructure:"type"` // none, s3, azure, http, local
	LocalPath    string        `mapstructure:"local_path"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	ExportPrefix string        `mapstructure:"export_prefix"`
	S3           S3Config      `mapstructure:"s3"`
	Azure        AzureConfig   `mapstructure:"azure"`
	HTTP         HTTPConfig    `mapstructure:"http"`
}

// Enabled reports whether an object storage backend is configured.
func (c *StorageConfig) Enabled() bool {
	return c.Type != "" && c.Type != "none"
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP source configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// NATSConfig holds layer event notification configuration.
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// ProjectConfig holds project file configuration.
type ProjectConfig struct {
	// File is opened at startup when it exists.
	File           string `mapstructure:"file"`
	SaveOnShutdown bool   `mapstructure:"save_on_shutdown"`
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Domains  []string     `mapstructure:"domains"`
	Email    string       `mapstructure:"email"`
	CacheDir string       `mapstructure:"cache_dir"`
	Staging  bool         `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      TLSDNSConfig `mapstructure:"dns"`
}

// TLSDNSConfig holds the Azure DNS settings for DNS-01 challenges.
type TLSDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.max_upload_bytes", 64<<20)
	viper.SetDefault("server.frontend_enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// Store defaults
	viper.SetDefault("store.driver", DriverNone)
	viper.SetDefault("store.dsn", "")
	viper.SetDefault("store.path", "./zsqlgis.sqlite")
	viper.SetDefault("store.max_conns", 10)
	viper.SetDefault("store.init_schema", false)
	viper.SetDefault("store.default_limit", spatialsql.DefaultLimit)
	viper.SetDefault("store.timeout", 30*time.Second)

	// Import defaults
	viper.SetDefault("import.inbox", "")
	viper.SetDefault("import.watch", false)
	viper.SetDefault("import.debounce", 500*time.Millisecond)
	viper.SetDefault("import.aliases.longitude", tabular.DefaultAliases.Longitude)
	viper.SetDefault("import.aliases.latitude", tabular.DefaultAliases.Latitude)

	// Storage defaults
	viper.SetDefault("storage.type", "none")
	viper.SetDefault("storage.local_path", "./data")
	viper.SetDefault("storage.sync_interval", 5*time.Minute)
	viper.SetDefault("storage.export_prefix", "exports")
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	// NATS defaults
	viper.SetDefault("nats.enabled", false)
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.subject_prefix", "zsqlgis.layers")

	// Project defaults
	viper.SetDefault("project.file", "")
	viper.SetDefault("project.save_on_shutdown", false)

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.namespace", "zsqlgis")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/zsqlgis")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func invalid(field, format string, args ...any) error {
	return &domain.ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", "invalid server port: %d", c.Server.Port)
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return invalid("tls.domains", "TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			return invalid("tls.email", "TLS enabled but no email specified")
		}
	}

	if err := c.Store.validate(); err != nil {
		return err
	}

	if len(c.Import.Aliases.Longitude) == 0 || len(c.Import.Aliases.Latitude) == 0 {
		return invalid("import.aliases", "longitude and latitude aliases must not be empty")
	}
	if c.Import.Watch && c.Import.Inbox == "" {
		return invalid("import.inbox", "watching requires an inbox directory")
	}

	if c.Project.SaveOnShutdown && c.Project.File == "" {
		return invalid("project.file", "saving on shutdown requires a project file")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return invalid("nats.url", "NATS enabled but no URL specified")
	}

	return c.Storage.validate()
}

func (c *StoreConfig) validate() error {
	switch c.Driver {
	case "", DriverNone:
		return nil
	case DriverPostGIS:
		if c.DSN == "" {
			return invalid("store.dsn", "postgis store requires a DSN")
		}
	case DriverSpatiaLite:
		if c.Path == "" {
			return invalid("store.path", "spatialite store requires a path")
		}
	default:
		return invalid("store.driver", "unknown store driver: %s", c.Driver)
	}

	if c.DefaultLimit < 1 {
		return invalid("store.default_limit", "must be positive: %d", c.DefaultLimit)
	}
	for kind, t := range c.Tables {
		if _, err := domain.ParseLayerKind(string(kind)); err != nil {
			return invalid("store.tables", "unknown layer kind %q", kind)
		}
		if t.Kind != "" && t.Kind != kind {
			return invalid("store.tables", "table for %s declares kind %s", kind, t.Kind)
		}
	}
	return nil
}

func (c *StorageConfig) validate() error {
	switch c.Type {
	case "", "none":
	case "local":
		if c.LocalPath == "" {
			return invalid("storage.local_path", "local storage path is required")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return invalid("storage.s3.bucket", "S3 bucket is required")
		}
		if c.S3.Region == "" {
			return invalid("storage.s3.region", "S3 region is required")
		}
	case "azure":
		if c.Azure.Container == "" {
			return invalid("storage.azure.container", "azure container is required")
		}
		if c.Azure.AccountName == "" && c.Azure.ConnectionString == "" {
			return invalid("storage.azure", "azure account name or connection string is required")
		}
	case "http":
		if c.HTTP.BaseURL == "" {
			return invalid("storage.http.base_url", "HTTP base URL is required")
		}
	default:
		return invalid("storage.type", "unknown storage type: %s", c.Type)
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
