package application

import (
	"context"
	"time"

	"github.com/Tqy43/ZSQL-gis/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	layers *LayerStore
	store  *StoreService
}

// NewHealthService creates a new health service. store may be nil.
func NewHealthService(layers *LayerStore, store *StoreService) *HealthService {
	return &HealthService{
		layers: layers,
		store:  store,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true if the service is ready to accept requests. A
// configured store must answer a ping.
func (s *HealthService) IsReady(ctx context.Context) bool {
	return s.storeStatus(ctx) != "error"
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	layers := s.layers.List(ctx)
	visible := 0
	for _, l := range layers {
		if l.Visible {
			visible++
		}
	}

	store := s.storeStatus(ctx)
	return input.HealthDetails{
		Healthy:       s.IsHealthy(ctx),
		Ready:         store != "error",
		LayersLoaded:  len(layers),
		LayersVisible: visible,
		Components: map[string]string{
			"layers": "ok",
			"store":  store,
		},
	}
}

func (s *HealthService) storeStatus(ctx context.Context) string {
	if s.store == nil || !s.store.Enabled() {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return "error"
	}
	return "ok"
}
