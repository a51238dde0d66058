// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	httpAdapter "github.com/Tqy43/ZSQL-gis/internal/adapters/http"
	"github.com/Tqy43/ZSQL-gis/internal/adapters/metrics"
	"github.com/Tqy43/ZSQL-gis/internal/adapters/notify"
	"github.com/Tqy43/ZSQL-gis/internal/adapters/postgis"
	"github.com/Tqy43/ZSQL-gis/internal/adapters/project"
	"github.com/Tqy43/ZSQL-gis/internal/adapters/spatialite"
	"github.com/Tqy43/ZSQL-gis/internal/adapters/storage"
	tlsAdapter "github.com/Tqy43/ZSQL-gis/internal/adapters/tls"
	"github.com/Tqy43/ZSQL-gis/internal/adapters/watcher"
	"github.com/Tqy43/ZSQL-gis/internal/application"
	"github.com/Tqy43/ZSQL-gis/internal/config"
	"github.com/Tqy43/ZSQL-gis/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Metrics       *metrics.Collector
	Notifier      *notify.Publisher
	Storage       output.ObjectStorage
	SpatialStore  output.SpatialStore
	Layers        *application.LayerStore
	Importer      *application.Importer
	Exporter      *application.Exporter
	StoreService  *application.StoreService
	HealthService *application.HealthService
	SyncService   *application.SyncService
	HTTPServer    *httpAdapter.Server
	Watcher       *watcher.Watcher
}

// New creates and initializes a new application. Nothing is served or
// watched until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector(cfg.Metrics.Namespace)
		metricsCollector = app.Metrics
	}

	var notifier output.LayerNotifier
	if cfg.NATS.Enabled {
		publisher, err := notify.NewPublisher(notify.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing notifier: %w", err)
		}
		app.Notifier = publisher
		notifier = publisher
	}

	app.Layers = application.NewLayerStore(notifier, metricsCollector, logger)
	app.Importer = application.NewImporter(app.Layers, cfg.Import.Aliases, metricsCollector, logger)
	app.Exporter = application.NewExporter(app.Layers, metricsCollector, logger)

	if cfg.Store.Enabled() {
		spatialStore, err := openStore(ctx, cfg.Store, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("initializing spatial store: %w", err)
		}
		app.SpatialStore = spatialStore
	}
	app.StoreService = application.NewStoreService(
		app.SpatialStore,
		app.Layers,
		metricsCollector,
		logger,
		cfg.Store.DefaultLimit,
	)
	app.HealthService = application.NewHealthService(app.Layers, app.StoreService)

	objects, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	services := httpAdapter.Services{
		Layers:   app.Layers,
		Importer: app.Importer,
		Store:    app.StoreService,
		Health:   app.HealthService,
	}
	if objects != nil {
		app.Storage = objects
		app.Exporter.WithStorage(objects, cfg.Storage.ExportPrefix)
		app.SyncService = application.NewSyncService(
			application.NewSourceSync(objects, app.Importer, app.Layers, logger),
			app.Layers,
			cfg.Storage.SyncInterval,
			logger,
		)
		services.Sync = app.SyncService
		services.Uploader = app.Exporter
	}

	if cfg.Import.Watch {
		if err := os.MkdirAll(cfg.Import.Inbox, 0o750); err != nil {
			app.Close()
			return nil, fmt.Errorf("creating inbox: %w", err)
		}
		w, err := watcher.New(
			watcher.Config{
				Paths:    []string{cfg.Import.Inbox},
				Debounce: cfg.Import.Debounce,
			},
			watcher.ImportHandler(app.Importer, logger),
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize inbox watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	var httpMetrics httpAdapter.Metrics
	if app.Metrics != nil {
		httpMetrics = httpAdapter.Metrics{
			Path:       cfg.Metrics.Path,
			Handler:    metrics.Handler(),
			Middleware: app.Metrics.Middleware,
		}
	}
	app.HTTPServer = httpAdapter.NewServer(cfg.Server, services, httpMetrics, logger)

	if err := app.openProject(ctx); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

// openStore connects the configured spatial store and creates its schema
// when asked to.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (output.SpatialStore, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var (
		store output.SpatialStore
		err   error
	)
	switch cfg.Driver {
	case config.DriverPostGIS:
		var s *postgis.Store
		if s, err = postgis.Open(ctx, cfg.DSN, cfg.MaxConns, cfg.ResolvedTables(), logger); err == nil {
			store = s
		}
	case config.DriverSpatiaLite:
		var s *spatialite.Store
		if s, err = spatialite.Open(ctx, cfg.Path, cfg.ResolvedTables(), logger); err == nil {
			store = s
		}
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.InitSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return store, nil
}

// openProject loads the configured project file if it exists.
func (a *App) openProject(ctx context.Context) error {
	path := a.Config.Project.File
	if path == "" {
		return nil
	}
	layers, err := project.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		a.Logger.Info("project file not found, starting empty", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening project %s: %w", path, err)
	}
	infos := a.Layers.Replace(ctx, layers)
	a.Logger.Info("project opened", "path", path, "layers", len(infos))
	return nil
}

// Start starts background components and serves the HTTP API. It blocks
// until the server stops.
func (a *App) Start(ctx context.Context) error {
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start inbox watcher", "error", err)
		}
	}

	if a.SyncService != nil {
		if stats, err := a.SyncService.SyncNow(ctx); err != nil {
			a.Logger.Warn("initial sync failed", "error", err)
		} else {
			a.Logger.Info("initial sync complete", "added", stats.Added, "failed", stats.Failed)
		}
		if a.Config.Storage.SyncInterval > 0 {
			a.SyncService.Start(ctx)
		}
	}

	if a.Config.TLS.Enabled {
		manager, err := tlsAdapter.New(a.Config.TLS, a.Logger)
		if err != nil {
			return fmt.Errorf("initializing TLS: %w", err)
		}
		return a.HTTPServer.StartTLS(manager.TLSConfig())
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	if a.SyncService != nil && a.Config.Storage.SyncInterval > 0 {
		a.SyncService.Stop()
	}

	var errs []error
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
		errs = append(errs, err)
	}

	if a.Config.Project.SaveOnShutdown {
		if err := project.Save(a.Config.Project.File, a.Layers.Layers(ctx)); err != nil {
			a.Logger.Error("failed to save project", "path", a.Config.Project.File, "error", err)
			errs = append(errs, err)
		} else {
			a.Logger.Info("project saved", "path", a.Config.Project.File, "layers", a.Layers.Len())
		}
	}

	a.Close()
	return errors.Join(errs...)
}

// Close releases the store connection and the notifier.
func (a *App) Close() {
	if a.SpatialStore != nil {
		if err := a.SpatialStore.Close(); err != nil {
			a.Logger.Error("failed to close spatial store", "error", err)
		}
	}
	if a.Notifier != nil {
		if err := a.Notifier.Close(); err != nil {
			a.Logger.Error("failed to close notifier", "error", err)
		}
	}
}

// initStorage initializes the configured object storage adapter. It returns
// nil when object storage is disabled.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "local":
		if err := os.MkdirAll(cfg.LocalPath, 0o750); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
