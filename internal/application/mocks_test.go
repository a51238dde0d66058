package application

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore() *LayerStore {
	return NewLayerStore(nil, nil, testLogger())
}

func pointLayer(t *testing.T, name string, coords ...[2]float64) *domain.Layer {
	t.Helper()
	features := make([]domain.Feature, 0, len(coords))
	for _, c := range coords {
		f, err := domain.NewFeature(domain.NewPoint(c[0], c[1]), domain.Properties{})
		if err != nil {
			t.Fatalf("NewFeature() error = %v", err)
		}
		features = append(features, f)
	}
	layer, err := domain.NewLayer(name, domain.KindPointSet, features)
	if err != nil {
		t.Fatalf("NewLayer() error = %v", err)
	}
	return layer
}

// mockSpatialStore implements output.SpatialStore for testing.
type mockSpatialStore struct {
	mu        sync.Mutex
	inserted  []domain.Feature
	insertErr func(f domain.Feature) error
	features  []domain.Feature
	skipped   int
	queryErr  error
	counts    map[domain.LayerKind]int64
	pingErr   error
	lastBBox  *domain.BBox
	lastLimit int
}

func (m *mockSpatialStore) EnsureSchema(_ context.Context) error { return nil }

func (m *mockSpatialStore) InsertFeature(_ context.Context, f domain.Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		if err := m.insertErr(f); err != nil {
			return err
		}
	}
	m.inserted = append(m.inserted, f)
	return nil
}

func (m *mockSpatialStore) QueryFeatures(_ context.Context, _ domain.LayerKind, bbox *domain.BBox, limit int) ([]domain.Feature, int, error) {
	m.lastBBox = bbox
	m.lastLimit = limit
	if m.queryErr != nil {
		return nil, 0, m.queryErr
	}
	return m.features, m.skipped, nil
}

func (m *mockSpatialStore) CountFeatures(_ context.Context, kind domain.LayerKind) (int64, error) {
	return m.counts[kind], nil
}

func (m *mockSpatialStore) TableName(kind domain.LayerKind) (string, error) {
	return string(kind) + "_features", nil
}

func (m *mockSpatialStore) Ping(_ context.Context) error { return m.pingErr }

func (m *mockSpatialStore) Close() error { return nil }

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	etags   map[string]string
	listErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (m *mockStorage) set(key, etag, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte(data)
	m.etags[key] = etag
}

func (m *mockStorage) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.etags, key)
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	objects := make([]output.StorageObject, 0, len(m.objects))
	for key, data := range m.objects {
		objects = append(objects, output.StorageObject{Key: key, Size: int64(len(data)), ETag: m.etags[key]})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *mockStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockStorage) Put(_ context.Context, key string, data []byte) error {
	m.set(key, "", string(data))
	return nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// mockNotifier implements output.LayerNotifier for testing.
type mockNotifier struct {
	mu     sync.Mutex
	events []domain.LayerEvent
}

func (m *mockNotifier) Publish(_ context.Context, e domain.LayerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockNotifier) Close() error { return nil }

func (m *mockNotifier) types() []domain.LayerEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]domain.LayerEventType, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// mockMetrics records the gauges and counters the services set.
type mockMetrics struct {
	output.NoOpMetrics
	mu       sync.Mutex
	loaded   int
	visible  int
	skipped  map[string]int
	imports  map[bool]int
	storeOps map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{skipped: map[string]int{}, imports: map[bool]int{}, storeOps: map[string]int{}}
}

func (m *mockMetrics) SetLayersLoaded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = n
}

func (m *mockMetrics) SetLayersVisible(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = n
}

func (m *mockMetrics) AddSkippedFeatures(stage string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[stage] += n
}

func (m *mockMetrics) IncImports(_ string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports[success]++
}

func (m *mockMetrics) IncStoreOperations(op string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.storeOps[op]++
	}
}
