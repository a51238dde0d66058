package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Tqy43/ZSQL-gis/internal/ports/output"
)

var _ output.MetricsCollector = (*Collector)(nil)

func TestCollectorCounters(t *testing.T) {
	c := NewCollectorWith("test", prometheus.NewRegistry())

	c.IncImports("interchange", true)
	c.IncImports("interchange", true)
	c.IncImports("tabular", false)
	c.AddSkippedFeatures("import", 3)
	c.AddSkippedFeatures("import", 0)
	c.SetLayersLoaded(4)
	c.SetLayersVisible(2)
	c.IncStoreOperations("insert", false)
	c.ObserveQueryDuration("memory", 10*time.Millisecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"interchange success", testutil.ToFloat64(c.importCounter.WithLabelValues("interchange", "success")), 2},
		{"tabular error", testutil.ToFloat64(c.importCounter.WithLabelValues("tabular", "error")), 1},
		{"skipped import", testutil.ToFloat64(c.skippedFeatures.WithLabelValues("import")), 3},
		{"layers loaded", testutil.ToFloat64(c.layersLoaded), 4},
		{"layers visible", testutil.ToFloat64(c.layersVisible), 2},
		{"store insert error", testutil.ToFloat64(c.storeOperations.WithLabelValues("insert", "error")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	c := NewCollectorWith("test", prometheus.NewRegistry())

	r := mux.NewRouter()
	r.Use(c.Middleware)
	r.HandleFunc("/api/v1/layers/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, name := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/layers/"+name, nil))
	}

	got := testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/layers/{name}", "4xx"))
	if got != 2 {
		t.Errorf("requests for route template = %v, want 2", got)
	}
}

func TestStatusToString(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 503: "5xx", 100: "unknown"}
	for code, want := range tests {
		if got := statusToString(code); got != want {
			t.Errorf("statusToString(%d) = %q, want %q", code, got, want)
		}
	}
}
