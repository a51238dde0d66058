package application

import (
	"context"
	"errors"
	"testing"
)

func TestHealthServiceIsHealthy(t *testing.T) {
	service := NewHealthService(newTestStore(), nil)

	if !service.IsHealthy(context.Background()) {
		t.Error("IsHealthy should return true")
	}
}

func TestHealthServiceIsReady(t *testing.T) {
	tests := []struct {
		name  string
		store *StoreService
		want  bool
	}{
		{
			name:  "no store configured",
			store: nil,
			want:  true,
		},
		{
			name:  "disabled store",
			store: NewStoreService(nil, newTestStore(), nil, testLogger(), 0),
			want:  true,
		},
		{
			name:  "store answers ping",
			store: NewStoreService(&mockSpatialStore{}, newTestStore(), nil, testLogger(), 0),
			want:  true,
		},
		{
			name:  "store unreachable",
			store: NewStoreService(&mockSpatialStore{pingErr: errors.New("dial tcp: refused")}, newTestStore(), nil, testLogger(), 0),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewHealthService(newTestStore(), tt.store)
			if got := service.IsReady(context.Background()); got != tt.want {
				t.Errorf("IsReady() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthServiceGetHealthDetails(t *testing.T) {
	ctx := context.Background()
	layers := newTestStore()
	layers.Add(ctx, pointLayer(t, "a", [2]float64{0, 0}))
	layers.Add(ctx, pointLayer(t, "b", [2]float64{0, 0}))
	if err := layers.SetVisible(ctx, "b", false); err != nil {
		t.Fatal(err)
	}

	store := NewStoreService(&mockSpatialStore{}, layers, nil, testLogger(), 0)
	details := NewHealthService(layers, store).GetHealthDetails(ctx)

	if !details.Healthy || !details.Ready {
		t.Errorf("details = %+v", details)
	}
	if details.LayersLoaded != 2 || details.LayersVisible != 1 {
		t.Errorf("layers loaded=%d visible=%d", details.LayersLoaded, details.LayersVisible)
	}
	if details.Components["store"] != "ok" || details.Components["layers"] != "ok" {
		t.Errorf("components = %v", details.Components)
	}

	details = NewHealthService(layers, nil).GetHealthDetails(ctx)
	if details.Components["store"] != "disabled" {
		t.Errorf("store component = %q", details.Components["store"])
	}
}
