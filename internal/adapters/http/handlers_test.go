package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tqy43/ZSQL-gis/internal/adapters/storage"
	"github.com/Tqy43/ZSQL-gis/internal/application"
	"github.com/Tqy43/ZSQL-gis/internal/config"
	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/tabular"
)

const citiesCSV = "name,lng,lat\nBeijing,116.4,39.9\nA,200,50\nShanghai,121.5,31.2\n"

const regionsGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]},"properties":{"name":"square"}},
 {"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[5,5]]},"properties":{"name":"diagonal"}},
 {"type":"Feature","geometry":{"type":"MultiPoint","coordinates":[[1,1]]},"properties":{}}
]}`

// fakeStore implements output.SpatialStore in memory.
type fakeStore struct {
	inserted []domain.Feature
}

func (f *fakeStore) EnsureSchema(context.Context) error { return nil }

func (f *fakeStore) InsertFeature(_ context.Context, feat domain.Feature) error {
	f.inserted = append(f.inserted, feat)
	return nil
}

func (f *fakeStore) QueryFeatures(_ context.Context, kind domain.LayerKind, bbox *domain.BBox, _ int) ([]domain.Feature, int, error) {
	var out []domain.Feature
	for _, feat := range f.inserted {
		if feat.Kind() == kind && (bbox == nil || feat.Geometry.Intersects(*bbox)) {
			out = append(out, feat)
		}
	}
	return out, 0, nil
}

func (f *fakeStore) CountFeatures(_ context.Context, kind domain.LayerKind) (int64, error) {
	features, _, _ := f.QueryFeatures(context.Background(), kind, nil, 0)
	return int64(len(features)), nil
}

func (f *fakeStore) TableName(kind domain.LayerKind) (string, error) { return string(kind) + "_features", nil }
func (f *fakeStore) Ping(context.Context) error                     { return nil }
func (f *fakeStore) Close() error                                   { return nil }

type fakeSync struct {
	err error
}

func (f *fakeSync) TriggerSync(context.Context) (application.SyncResult, error) {
	return application.SyncResult{LayersAdded: 1}, f.err
}

type testEnv struct {
	server    *Server
	layers    *application.LayerStore
	store     *fakeStore
	sync      *fakeSync
	exportDir string
}

func newTestEnv(t *testing.T, withStore bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	layers := application.NewLayerStore(nil, nil, logger)
	env := &testEnv{layers: layers, sync: &fakeSync{}, exportDir: t.TempDir()}
	exporter := application.NewExporter(layers, nil, logger).
		WithStorage(storage.NewLocalStorage(env.exportDir), "exports")

	var storeSvc *application.StoreService
	if withStore {
		env.store = &fakeStore{}
		storeSvc = application.NewStoreService(env.store, layers, nil, logger, 100)
	} else {
		storeSvc = application.NewStoreService(nil, layers, nil, logger, 100)
	}

	env.server = NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: 8080, MaxUploadBytes: 1 << 20, FrontendEnabled: true},
		Services{
			Layers:   layers,
			Importer: application.NewImporter(layers, tabular.DefaultAliases, nil, logger),
			Store:    storeSvc,
			Health:   application.NewHealthService(layers, storeSvc),
			Sync:     env.sync,
			Uploader: exporter,
		},
		Metrics{},
		logger,
	)
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rr := env.do(t, http.MethodGet, path, nil, "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}

	body := decode(t, env.do(t, http.MethodGet, "/health", nil, ""))
	components := body["components"].(map[string]interface{})
	if components["store"] != "disabled" {
		t.Errorf("store component = %v", components["store"])
	}
}

func TestImportAndLayerLifecycle(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPost, "/api/v1/layers?name=cities.csv", strings.NewReader(citiesCSV), "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", rr.Code, rr.Body.String())
	}
	result := decode(t, rr)
	if result["features"] != 2.0 || result["skipped"] != 1.0 {
		t.Errorf("import result = %v", result)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/layers?name=regions", strings.NewReader(regionsGeoJSON), "application/geo+json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("geojson import status = %d: %s", rr.Code, rr.Body.String())
	}

	list := decode(t, env.do(t, http.MethodGet, "/api/v1/layers", nil, ""))
	if list["count"] != 3.0 {
		t.Fatalf("layer count = %v", list["count"])
	}
	var names []string
	for _, l := range list["layers"].([]interface{}) {
		names = append(names, l.(map[string]interface{})["name"].(string))
	}
	if strings.Join(names, ",") != "cities,regions_line,regions_polygon" {
		t.Errorf("layer order = %v", names)
	}

	rr = env.do(t, http.MethodPut, "/api/v1/layers/regions_polygon/visibility", strings.NewReader(`{"visible":false}`), "application/json")
	if rr.Code != http.StatusOK || decode(t, rr)["visible"] != false {
		t.Errorf("visibility status = %d: %s", rr.Code, rr.Body.String())
	}

	query := decode(t, env.do(t, http.MethodGet, "/api/v1/query?bbox=-1,-1,11,11", nil, ""))
	if query["total_features"] != 1.0 {
		t.Errorf("query total = %v (hidden polygon layer must be excluded)", query["total_features"])
	}

	extent := decode(t, env.do(t, http.MethodGet, "/api/v1/extent", nil, ""))
	box := extent["extent"].(map[string]interface{})
	if box["min_lon"] != 0.0 || box["max_lon"] != 121.5 {
		t.Errorf("extent = %v", box)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/layers/cities/export", nil, "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/geo+json" {
		t.Fatalf("export status = %d, type %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), `"FeatureCollection"`) || !strings.Contains(rr.Body.String(), "Beijing") {
		t.Errorf("export body = %s", rr.Body.String())
	}

	render := decode(t, env.do(t, http.MethodGet, "/api/v1/render", nil, ""))
	first := render["layers"].([]interface{})[0].(map[string]interface{})
	pos := first["records"].([]interface{})[0].(map[string]interface{})["positions"].([]interface{})[0].([]interface{})
	if pos[0] != 39.9 || pos[1] != 116.4 {
		t.Errorf("render position = %v, want lat,lon", pos)
	}

	if rr := env.do(t, http.MethodDelete, "/api/v1/layers/cities", nil, ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/v1/layers/cities", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rr.Code)
	}
}

func TestClearLayers(t *testing.T) {
	env := newTestEnv(t, false)

	if rr := env.do(t, http.MethodPost, "/api/v1/layers?name=cities.csv", strings.NewReader(citiesCSV), ""); rr.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", rr.Code, rr.Body.String())
	}
	if env.layers.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", env.layers.Len())
	}

	if rr := env.do(t, http.MethodDelete, "/api/v1/layers", nil, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", rr.Code)
	}
	if env.layers.Len() != 0 {
		t.Errorf("Len() after clear = %d", env.layers.Len())
	}
	if list := decode(t, env.do(t, http.MethodGet, "/api/v1/layers", nil, "")); list["count"] != 0.0 {
		t.Errorf("layer count = %v", list["count"])
	}

	rr := env.do(t, http.MethodPost, "/api/v1/layers?name=cities.csv", strings.NewReader(citiesCSV), "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("reimport status = %d", rr.Code)
	}
	if _, err := env.layers.Get(context.Background(), "cities"); err != nil {
		t.Errorf("name should be free again after clear: %v", err)
	}
}

func TestImportErrors(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name        string
		target      string
		body        string
		contentType string
		want        int
	}{
		{"unknown format", "/api/v1/layers?name=data.txt", "x", "text/plain", http.StatusBadRequest},
		{"no coordinate columns", "/api/v1/layers?format=csv", "name,value\na,1\n", "", http.StatusBadRequest},
		{"not a feature collection", "/api/v1/layers?format=geojson", `{"type":"Feature"}`, "", http.StatusBadRequest},
		{"malformed json", "/api/v1/layers", `{`, "application/json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, tt.target, strings.NewReader(tt.body), tt.contentType)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
	if env.layers.Len() != 0 {
		t.Errorf("failed imports left %d layers", env.layers.Len())
	}
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		method string
		target string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/v1/query", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/query?bbox=10,0,0,10", "", http.StatusBadRequest},
		{http.MethodPut, "/api/v1/layers/x/visibility", `{}`, http.StatusBadRequest},
		{http.MethodPut, "/api/v1/layers/x/visibility", `{"visible":true}`, http.StatusNotFound},
		{http.MethodGet, "/api/v1/store", "", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/store/circle", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/project?format=xml", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := env.do(t, tt.method, tt.target, strings.NewReader(tt.body), "application/json")
		if rr.Code != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.target, rr.Code, tt.want)
		}
	}
}

func TestStorePushAndPull(t *testing.T) {
	env := newTestEnv(t, true)
	env.do(t, http.MethodPost, "/api/v1/layers?name=cities.csv", strings.NewReader(citiesCSV), "")

	rr := env.do(t, http.MethodPost, "/api/v1/store/layers/cities", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("push status = %d: %s", rr.Code, rr.Body.String())
	}
	if got := decode(t, rr); got["inserted"] != 2.0 || got["table"] != "point_features" {
		t.Errorf("push result = %v", got)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/store/point?bbox=110,30,120,40&load=true", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("pull status = %d: %s", rr.Code, rr.Body.String())
	}
	pulled := decode(t, rr)
	features := pulled["features"].(map[string]interface{})["features"].([]interface{})
	if len(features) != 1 {
		t.Errorf("pulled %d features, want 1", len(features))
	}
	if layer, ok := pulled["layer"].(map[string]interface{}); !ok || layer["name"] != "point_features" {
		t.Errorf("loaded layer = %v", pulled["layer"])
	}

	summary := decode(t, env.do(t, http.MethodGet, "/api/v1/store", nil, ""))
	if len(summary["tables"].([]interface{})) != 3 {
		t.Errorf("summary = %v", summary)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodPost, "/api/v1/layers?name=regions.geojson", strings.NewReader(regionsGeoJSON), "")

	rr := env.do(t, http.MethodGet, "/api/v1/project", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d", rr.Code)
	}
	saved := rr.Body.Bytes()
	if !bytes.Contains(saved, []byte("POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))")) {
		t.Errorf("project file missing polygon WKT:\n%s", saved)
	}

	if err := env.layers.Remove(context.Background(), "regions_line"); err != nil {
		t.Fatal(err)
	}

	rr = env.do(t, http.MethodPut, "/api/v1/project", bytes.NewReader(saved), "application/yaml")
	if rr.Code != http.StatusOK {
		t.Fatalf("open status = %d: %s", rr.Code, rr.Body.String())
	}
	if env.layers.Len() != 2 {
		t.Errorf("layers after open = %d, want 2", env.layers.Len())
	}
}

func TestSyncEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	if rr := env.do(t, http.MethodPost, "/api/v1/sync", nil, ""); rr.Code != http.StatusOK {
		t.Errorf("sync status = %d", rr.Code)
	}

	env.sync.err = application.ErrRateLimited
	rr := env.do(t, http.MethodPost, "/api/v1/sync", nil, "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "30" {
		t.Errorf("rate limited status = %d", rr.Code)
	}
}

func TestUploadLayer(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, http.MethodPost, "/api/v1/layers?name=cities.csv", strings.NewReader(citiesCSV), "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/v1/layers/cities/export", nil, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rr.Code, rr.Body.String())
	}
	if got := decode(t, rr)["key"]; got != "exports/cities.geojson" {
		t.Errorf("key = %v", got)
	}
	data, err := os.ReadFile(filepath.Join(env.exportDir, "exports", "cities.geojson"))
	if err != nil {
		t.Fatalf("exported file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"Beijing"`)) {
		t.Errorf("exported document = %s", data)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/layers/missing/export", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing layer status = %d", rr.Code)
	}
}

func TestDocsAndFrontend(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/openapi.json", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("openapi status = %d: %s", rr.Code, rr.Body.String())
	}
	spec := decode(t, rr)
	paths := spec["paths"].(map[string]interface{})
	if _, ok := paths["/api/v1/layers/{name}/export"]; !ok {
		t.Error("openapi spec missing export path")
	}

	for _, path := range []string{"/docs", "/"} {
		rr := env.do(t, http.MethodGet, path, nil, "")
		if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}
