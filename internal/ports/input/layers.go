// Package input defines the primary/driving ports of the application.
package input

import (
	"context"
	"io"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// LayerCatalog defines the primary port for the ordered layer collection.
type LayerCatalog interface {
	// List returns all layers in insertion order.
	List(ctx context.Context) []domain.LayerInfo

	// Layers returns copies of all layers in insertion order.
	Layers(ctx context.Context) []*domain.Layer

	// Replace swaps the whole collection.
	Replace(ctx context.Context, layers []*domain.Layer) []domain.LayerInfo

	// Get returns a layer by name.
	Get(ctx context.Context, name string) (*domain.Layer, error)

	// Remove deletes a layer by name.
	Remove(ctx context.Context, name string) error

	// Clear removes every layer.
	Clear(ctx context.Context)

	// SetVisible toggles a layer's visibility.
	SetVisible(ctx context.Context, name string, visible bool) error

	// Query returns the features of visible layers intersecting the box.
	Query(ctx context.Context, bbox domain.BBox) (*domain.QueryResponse, error)

	// Extent returns the union of the visible layers' extents.
	Extent(ctx context.Context) (domain.BBox, bool)

	// Render returns the renderer view of every layer.
	Render(ctx context.Context) []domain.RenderLayer
}

// Source is one importable input stream.
type Source struct {
	Name   string
	Kind   domain.SourceKind
	Reader io.Reader
}

// ImportService defines the primary port for loading sources into layers.
type ImportService interface {
	Import(ctx context.Context, src Source) (*domain.ImportResult, error)
	ImportFile(ctx context.Context, path string) (*domain.ImportResult, error)
}

// StoreGateway defines the primary port for the spatial relational store.
type StoreGateway interface {
	// Enabled reports whether a store is configured.
	Enabled() bool

	// PushLayer inserts every feature of a layer into its kind's table.
	PushLayer(ctx context.Context, name string) (*domain.PushResult, error)

	// Pull selects features of a kind, optionally loading them as a layer.
	Pull(ctx context.Context, kind domain.LayerKind, bbox *domain.BBox, limit int, load bool) (*domain.PullResult, error)

	// Summary returns row counts per table.
	Summary(ctx context.Context) ([]domain.TableCount, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy       bool              // Overall health status
	Ready         bool              // Ready to accept requests
	LayersLoaded  int               // Number of layers in the store
	LayersVisible int               // Number of visible layers
	Components    map[string]string // Component statuses
}
