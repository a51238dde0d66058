package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tqy43/ZSQL-gis/internal/config"
)

func TestOriginHost(t *testing.T) {
	tests := map[string]string{
		"https://example.com":          "example.com",
		"https://example.com:8080":     "example.com",
		"https://example.com:443/path": "example.com",
		"http://localhost:3000":        "localhost",
		"http://192.168.1.1:8080":      "192.168.1.1",
		"example.com":                  "example.com",
	}
	for origin, want := range tests {
		if got := originHost(origin); got != want {
			t.Errorf("originHost(%q) = %q, want %q", origin, got, want)
		}
	}
}

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		pattern string
		want    bool
	}{
		{"https://example.com", "https://example.com", true},
		{"https://example.com", "https://other.com", false},
		{"https://app.example.com", "*.example.com", true},
		{"https://a.b.example.com:8443", "*.example.com", true},
		{"https://example.com", "*.example.com", false},
		{"https://evilexample.com", "*.example.com", false},
		{"https://app.example.com", "*example.com", false},
	}
	for _, tt := range tests {
		if got := matchOrigin(tt.origin, tt.pattern); got != tt.want {
			t.Errorf("matchOrigin(%q, %q) = %v, want %v", tt.origin, tt.pattern, got, tt.want)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		method      string
		wantStatus  int
		wantHeaders bool
		wantNext    bool
	}{
		{"allowed GET", "https://gis.example.com", http.MethodGet, http.StatusOK, true, true},
		{"allowed preflight", "https://gis.example.com", http.MethodOptions, http.StatusNoContent, true, false},
		{"foreign origin", "https://evil.com", http.MethodDelete, http.StatusOK, false, true},
		{"no origin", "", http.MethodGet, http.StatusOK, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			s := &Server{config: config.ServerConfig{
				CORS: config.CORSConfig{AllowedOrigins: []string{"*.example.com"}},
			}}

			req := httptest.NewRequest(tt.method, "/api/v1/layers", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			s.corsMiddleware(next).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			got := rr.Header().Get("Access-Control-Allow-Origin")
			if tt.wantHeaders {
				if got != tt.origin {
					t.Errorf("Allow-Origin = %q, want %q", got, tt.origin)
				}
				if m := rr.Header().Get("Access-Control-Allow-Methods"); m != corsAllowMethods {
					t.Errorf("Allow-Methods = %q", m)
				}
				if v := rr.Header().Get("Vary"); v != "Origin" {
					t.Errorf("Vary = %q", v)
				}
			} else if got != "" {
				t.Errorf("unexpected Allow-Origin = %q", got)
			}
		})
	}
}
