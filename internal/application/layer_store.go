// Package application contains the application services.
package application

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/ports/output"
)

// LayerStore is the ordered collection of map layers. Names are unique and
// insertion order is the enumeration order.
type LayerStore struct {
	mu       sync.RWMutex
	layers   []*domain.Layer
	notifier output.LayerNotifier
	metrics  output.MetricsCollector
	logger   *slog.Logger
}

// NewLayerStore creates an empty layer store.
func NewLayerStore(notifier output.LayerNotifier, metrics output.MetricsCollector, logger *slog.Logger) *LayerStore {
	if notifier == nil {
		notifier = output.NoOpNotifier{}
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LayerStore{
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Add appends a layer. A name already in use gets the first free "_<n>"
// suffix, starting at 2. The stored info is returned.
func (s *LayerStore) Add(ctx context.Context, layer *domain.Layer) domain.LayerInfo {
	s.mu.Lock()
	layer.Name = s.uniqueName(layer.Name)
	s.layers = append(s.layers, layer)
	info := layer.Info()
	s.mu.Unlock()

	s.logger.Info("layer added", "layer", info.Name, "kind", info.Kind, "features", info.FeatureCount)
	s.updateMetrics()
	s.publish(ctx, domain.LayerEvent{Type: domain.LayerAdded, Layer: info.Name, Kind: info.Kind, Visible: info.Visible})
	return info
}

// uniqueName must be called with the write lock held.
func (s *LayerStore) uniqueName(name string) string {
	if s.indexOf(name) < 0 {
		return name
	}
	for n := 2; ; n++ {
		candidate := name + "_" + strconv.Itoa(n)
		if s.indexOf(candidate) < 0 {
			return candidate
		}
	}
}

func (s *LayerStore) indexOf(name string) int {
	for i, l := range s.layers {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// Remove deletes a layer by name.
func (s *LayerStore) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	i := s.indexOf(name)
	if i < 0 {
		s.mu.Unlock()
		return domain.ErrLayerNotFound
	}
	removed := s.layers[i]
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	s.mu.Unlock()

	s.logger.Info("layer removed", "layer", name)
	s.updateMetrics()
	s.publish(ctx, domain.LayerEvent{Type: domain.LayerRemoved, Layer: name, Kind: removed.Kind})
	return nil
}

// SetVisible toggles a layer's visibility.
func (s *LayerStore) SetVisible(ctx context.Context, name string, visible bool) error {
	s.mu.Lock()
	i := s.indexOf(name)
	if i < 0 {
		s.mu.Unlock()
		return domain.ErrLayerNotFound
	}
	l := s.layers[i]
	changed := l.Visible != visible
	l.Visible = visible
	kind := l.Kind
	s.mu.Unlock()

	if !changed {
		return nil
	}
	s.logger.Debug("layer visibility changed", "layer", name, "visible", visible)
	s.updateMetrics()
	s.publish(ctx, domain.LayerEvent{Type: domain.LayerVisibility, Layer: name, Kind: kind, Visible: visible})
	return nil
}

// Get returns a copy of the named layer.
func (s *LayerStore) Get(_ context.Context, name string) (*domain.Layer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(name)
	if i < 0 {
		return nil, domain.ErrLayerNotFound
	}
	c := *s.layers[i]
	return &c, nil
}

// List returns the layers in insertion order.
func (s *LayerStore) List(_ context.Context) []domain.LayerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]domain.LayerInfo, 0, len(s.layers))
	for _, l := range s.layers {
		infos = append(infos, l.Info())
	}
	return infos
}

// Layers returns copies of every layer in insertion order.
func (s *LayerStore) Layers(_ context.Context) []*domain.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layers := make([]*domain.Layer, 0, len(s.layers))
	for _, l := range s.layers {
		c := *l
		layers = append(layers, &c)
	}
	return layers
}

// Len returns the number of layers.
func (s *LayerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}

// Query returns the features of visible layers intersecting the box,
// boundary included.
func (s *LayerStore) Query(_ context.Context, bbox domain.BBox) (*domain.QueryResponse, error) {
	start := time.Now()

	if err := bbox.Validate(); err != nil {
		s.metrics.IncQueryCount("memory", false)
		return nil, err
	}

	response := &domain.QueryResponse{BBox: bbox}

	s.mu.RLock()
	for _, l := range s.layers {
		if !l.Visible {
			continue
		}
		response.AddMatch(domain.LayerMatch{Layer: l.Info(), Features: l.Search(bbox)})
	}
	s.mu.RUnlock()

	response.ProcessingTime = time.Since(start)
	s.metrics.IncQueryCount("memory", true)
	s.metrics.ObserveQueryDuration("memory", response.ProcessingTime)
	return response, nil
}

// Extent returns the union of the extents of visible, non-empty layers.
func (s *LayerStore) Extent(_ context.Context) (domain.BBox, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		extent domain.BBox
		found  bool
	)
	for _, l := range s.layers {
		if !l.Visible {
			continue
		}
		e, ok := l.Extent()
		if !ok {
			continue
		}
		if found {
			extent = extent.Union(e)
		} else {
			extent, found = e, true
		}
	}
	return extent, found
}

// Render returns the renderer view of every layer.
func (s *LayerStore) Render(_ context.Context) []domain.RenderLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RenderLayer, 0, len(s.layers))
	for _, l := range s.layers {
		out = append(out, domain.NewRenderLayer(l))
	}
	return out
}

// Clear removes every layer.
func (s *LayerStore) Clear(ctx context.Context) {
	s.mu.Lock()
	n := len(s.layers)
	s.layers = nil
	s.mu.Unlock()

	s.logger.Info("layers cleared", "count", n)
	s.updateMetrics()
	s.publish(ctx, domain.LayerEvent{Type: domain.LayersCleared})
}

// Replace swaps the whole collection, as when a project is opened. Names
// are made unique in the given order.
func (s *LayerStore) Replace(ctx context.Context, layers []*domain.Layer) []domain.LayerInfo {
	s.mu.Lock()
	s.layers = make([]*domain.Layer, 0, len(layers))
	infos := make([]domain.LayerInfo, 0, len(layers))
	for _, l := range layers {
		l.Name = s.uniqueName(l.Name)
		s.layers = append(s.layers, l)
		infos = append(infos, l.Info())
	}
	s.mu.Unlock()

	s.logger.Info("layers replaced", "count", len(infos))
	s.updateMetrics()
	s.publish(ctx, domain.LayerEvent{Type: domain.LayersCleared})
	for _, info := range infos {
		s.publish(ctx, domain.LayerEvent{Type: domain.LayerAdded, Layer: info.Name, Kind: info.Kind, Visible: info.Visible})
	}
	return infos
}

// updateMetrics updates the metrics collector with current layer counts.
func (s *LayerStore) updateMetrics() {
	s.mu.RLock()
	total := len(s.layers)
	visible := 0
	for _, l := range s.layers {
		if l.Visible {
			visible++
		}
	}
	s.mu.RUnlock()

	s.metrics.SetLayersLoaded(total)
	s.metrics.SetLayersVisible(visible)
}

func (s *LayerStore) publish(ctx context.Context, event domain.LayerEvent) {
	event.Timestamp = time.Now().UTC()
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish layer event", "type", event.Type, "layer", event.Layer, "error", err)
	}
}
