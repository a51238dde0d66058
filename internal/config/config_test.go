package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/spatialsql"
	"github.com/Tqy43/ZSQL-gis/internal/tabular"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("Address() = %q", cfg.Server.Address())
	}
	if cfg.Store.Enabled() {
		t.Error("store should be disabled by default")
	}
	if cfg.Store.InitSchema {
		t.Error("schema creation should be opt-in")
	}
	if cfg.Store.DefaultLimit != spatialsql.DefaultLimit {
		t.Errorf("DefaultLimit = %d", cfg.Store.DefaultLimit)
	}
	if cfg.Storage.Enabled() {
		t.Error("object storage should be disabled by default")
	}
	if len(cfg.Import.Aliases.Longitude) != 6 || cfg.Import.Aliases.Latitude[4] != "纬度" {
		t.Errorf("Aliases = %+v", cfg.Import.Aliases)
	}
	if cfg.Import.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Import.Debounce)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("ZSQLGIS_STORE_DSN", "postgres://gis@localhost/gis")

	path := writeConfig(t, `
server:
  port: 9090
store:
  driver: postgis
  init_schema: true
  tables:
    point:
      name: cities
import:
  aliases:
    longitude: [lon_deg]
    latitude: [lat_deg]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Store.DSN != "postgres://gis@localhost/gis" {
		t.Errorf("DSN = %q", cfg.Store.DSN)
	}
	if cfg.Import.Aliases.Longitude[0] != "lon_deg" {
		t.Errorf("Aliases = %+v", cfg.Import.Aliases)
	}

	tables := cfg.Store.ResolvedTables()
	points := tables[domain.KindPointSet]
	if points.Name != "cities" || points.Kind != domain.KindPointSet || len(points.Columns) == 0 {
		t.Errorf("point table = %+v", points)
	}
	if tables[domain.KindLineSet].Name != "line_features" {
		t.Errorf("line table = %+v", tables[domain.KindLineSet])
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080},
			Store:   StoreConfig{Driver: DriverNone, DefaultLimit: 1000},
			Import:  ImportConfig{Aliases: tabular.Aliases{Longitude: []string{"lon"}, Latitude: []string{"lat"}}},
			Storage: StorageConfig{Type: "none"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"tls without domains", func(c *Config) { c.TLS.Enabled = true }, "tls.domains"},
		{"save without project file", func(c *Config) { c.Project.SaveOnShutdown = true }, "project.file"},
		{"postgis without dsn", func(c *Config) { c.Store.Driver = DriverPostGIS }, "store.dsn"},
		{"spatialite ok", func(c *Config) { c.Store.Driver = DriverSpatiaLite; c.Store.Path = "x.db" }, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }, "store.driver"},
		{"bad limit", func(c *Config) {
			c.Store.Driver = DriverSpatiaLite
			c.Store.Path = "x.db"
			c.Store.DefaultLimit = 0
		}, "store.default_limit"},
		{"unknown table kind", func(c *Config) {
			c.Store.Driver = DriverSpatiaLite
			c.Store.Path = "x.db"
			c.Store.Tables = map[domain.LayerKind]spatialsql.Table{"circle": {Name: "c"}}
		}, "store.tables"},
		{"empty aliases", func(c *Config) { c.Import.Aliases.Latitude = nil }, "import.aliases"},
		{"watch without inbox", func(c *Config) { c.Import.Watch = true }, "import.inbox"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, "storage.s3.bucket"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, "storage.type"},
		{"nats without url", func(c *Config) { c.NATS.Enabled = true }, "nats.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Error("ConfigError should unwrap to ErrInvalidInput")
			}
		})
	}
}
