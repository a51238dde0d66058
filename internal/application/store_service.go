package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/ports/output"
)

// StoreService moves features between the layer store and the spatial
// relational store.
type StoreService struct {
	store        output.SpatialStore
	layers       *LayerStore
	metrics      output.MetricsCollector
	logger       *slog.Logger
	defaultLimit int
}

// NewStoreService creates a new store service. A nil store disables every
// operation with domain.ErrStoreDisabled.
func NewStoreService(store output.SpatialStore, layers *LayerStore, metrics output.MetricsCollector, logger *slog.Logger, defaultLimit int) *StoreService {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreService{
		store:        store,
		layers:       layers,
		metrics:      metrics,
		logger:       logger,
		defaultLimit: defaultLimit,
	}
}

// Enabled reports whether a store is configured.
func (s *StoreService) Enabled() bool {
	return s.store != nil
}

// PushLayer inserts every feature of the named layer into the table of its
// kind. A failed insert is logged and counted; it does not stop the others.
func (s *StoreService) PushLayer(ctx context.Context, name string) (*domain.PushResult, error) {
	if !s.Enabled() {
		return nil, domain.ErrStoreDisabled
	}
	layer, err := s.layers.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	table, err := s.store.TableName(layer.Kind)
	if err != nil {
		return nil, err
	}

	result := &domain.PushResult{Layer: layer.Name, Table: table}
	for i, f := range layer.Features() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.store.InsertFeature(ctx, f); err != nil {
			result.Failed++
			s.metrics.IncStoreOperations("insert", false)
			s.logger.Warn("failed to insert feature", "layer", layer.Name, "index", i, "name", f.Name, "error", err)
			continue
		}
		result.Inserted++
		s.metrics.IncStoreOperations("insert", true)
	}
	s.metrics.AddSkippedFeatures("store", result.Failed)

	s.logger.Info("layer pushed", "layer", layer.Name, "table", table, "inserted", result.Inserted, "failed", result.Failed)
	return result, nil
}

// Pull selects features of a kind intersecting bbox (nil selects all). When
// load is set and features were found, they are appended to the layer store
// as a layer named after the table.
func (s *StoreService) Pull(ctx context.Context, kind domain.LayerKind, bbox *domain.BBox, limit int, load bool) (*domain.PullResult, error) {
	if !s.Enabled() {
		return nil, domain.ErrStoreDisabled
	}
	table, err := s.store.TableName(kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	start := time.Now()
	features, skipped, err := s.store.QueryFeatures(ctx, kind, bbox, limit)
	s.metrics.ObserveQueryDuration("store", time.Since(start))
	s.metrics.IncQueryCount("store", err == nil)
	s.metrics.IncStoreOperations("select", err == nil)
	if err != nil {
		s.logger.Error("store query failed", "table", table, "error", err)
		return nil, err
	}
	s.metrics.AddSkippedFeatures("store", skipped)

	result := &domain.PullResult{Table: table, Kind: kind, Features: features, Skipped: skipped}
	if load && len(features) > 0 {
		layer, err := domain.NewLayer(table, kind, features)
		if err != nil {
			return nil, err
		}
		layer.Source = table
		info := s.layers.Add(ctx, layer)
		result.Layer = &info
	}

	s.logger.Info("store features pulled", "table", table, "features", len(features), "skipped", skipped, "loaded", result.Layer != nil)
	return result, nil
}

// Summary returns the row count of every table.
func (s *StoreService) Summary(ctx context.Context) ([]domain.TableCount, error) {
	if !s.Enabled() {
		return nil, domain.ErrStoreDisabled
	}

	counts := make([]domain.TableCount, 0, len(domain.LayerKinds))
	for _, kind := range domain.LayerKinds {
		table, err := s.store.TableName(kind)
		if err != nil {
			return nil, err
		}
		n, err := s.store.CountFeatures(ctx, kind)
		s.metrics.IncStoreOperations("count", err == nil)
		if err != nil {
			return nil, err
		}
		counts = append(counts, domain.TableCount{Kind: kind, Table: table, Count: n})
	}
	return counts, nil
}

// Ping checks the store connection.
func (s *StoreService) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return domain.ErrStoreDisabled
	}
	return s.store.Ping(ctx)
}
