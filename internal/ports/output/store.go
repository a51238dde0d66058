package output

import (
	"context"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// SpatialStore defines the secondary port for the spatial relational store.
// Every layer kind maps to one table.
type SpatialStore interface {
	// EnsureSchema creates missing feature tables and spatial indexes.
	EnsureSchema(ctx context.Context) error

	// InsertFeature writes one feature into the table of its kind.
	InsertFeature(ctx context.Context, f domain.Feature) error

	// QueryFeatures returns up to limit features of the kind intersecting
	// bbox (nil selects all). Rows that cannot be mapped are counted in skipped.
	QueryFeatures(ctx context.Context, kind domain.LayerKind, bbox *domain.BBox, limit int) (features []domain.Feature, skipped int, err error)

	// CountFeatures returns the number of rows with a geometry.
	CountFeatures(ctx context.Context, kind domain.LayerKind) (int64, error)

	// TableName returns the table holding the kind.
	TableName(kind domain.LayerKind) (string, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close() error
}

// LayerNotifier defines the secondary port announcing layer store changes
// to renderers.
type LayerNotifier interface {
	Publish(ctx context.Context, event domain.LayerEvent) error
	Close() error
}

// NoOpNotifier discards events.
type NoOpNotifier struct{}

// Publish implements LayerNotifier.
func (NoOpNotifier) Publish(_ context.Context, _ domain.LayerEvent) error { return nil }

// Close implements LayerNotifier.
func (NoOpNotifier) Close() error { return nil }
