package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impound-lot-finder/internal/config"
	"impound-lot-finder/internal/database"
	"impound-lot-finder/internal/handlers"
	"impound-lot-finder/internal/locate"
	"impound-lot-finder/internal/positioning"
	"impound-lot-finder/internal/session"
	"impound-lot-finder/internal/sqlite"
	"impound-lot-finder/internal/testutil"
)

func newTestMux(t *testing.T) http.Handler {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sessions := session.NewStore(session.Deps{
		Facilities: database.DefaultFacilities(),
		Locator:    locate.New(testutil.NewMockGeocoder(), positioning.Unsupported{}, time.Second),
		Routes:     testutil.NewMockRouteService(),
	})
	t.Cleanup(sessions.CloseAll)

	static := fstest.MapFS{
		"static/index.html": &fstest.MapFile{Data: []byte("<html>map</html>")},
	}
	h := &handlers.Handler{DB: store, Sessions: sessions}
	return loggingMiddleware(corsMiddleware(setupRoutes(h, static)))
}

func TestRoutes(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"index", http.MethodGet, "/", http.StatusOK},
		{"health", http.MethodGet, "/api/v1/health", http.StatusOK},
		{"facilities", http.MethodGet, "/api/v1/facilities", http.StatusOK},
		{"facilities wrong method", http.MethodPost, "/api/v1/facilities", http.StatusMethodNotAllowed},
		{"facility", http.MethodGet, "/api/v1/facilities/1", http.StatusOK},
		{"facility bare prefix", http.MethodGet, "/api/v1/facilities/", http.StatusNotFound},
		{"create session", http.MethodPost, "/api/v1/sessions", http.StatusCreated},
		{"create session wrong method", http.MethodGet, "/api/v1/sessions", http.StatusMethodNotAllowed},
		{"sessions bare prefix", http.MethodGet, "/api/v1/sessions/", http.StatusNotFound},
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope", http.StatusNotFound},
		{"open-url removed", http.MethodPost, "/api/v1/open-url", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestIndexServesEmbeddedUI(t *testing.T) {
	mux := newTestMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "map")
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	mux := newTestMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestOpenExternal_RejectsNonHTTP(t *testing.T) {
	for _, raw := range []string{"file:///etc/passwd", "javascript:alert(1)", ""} {
		err := openExternal(raw)
		require.Error(t, err, raw)
		assert.Contains(t, err.Error(), "only HTTP/HTTPS")
	}
}

func TestNewPositioner(t *testing.T) {
	_, ok := newPositioner(config.PositioningConfig{Provider: config.PositioningNone}).(positioning.Unsupported)
	assert.True(t, ok)

	p := newPositioner(config.PositioningConfig{Provider: config.PositioningIPAPI, IPAPIURL: "http://127.0.0.1:1/json/"})
	_, unsupported := p.(positioning.Unsupported)
	assert.False(t, unsupported)
}

func TestNewStartShutdown(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Addr: "127.0.0.1:0"},
		DB:     config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "server.db")},
		Geocoding: config.GeocodingConfig{
			URL:               "http://127.0.0.1:1",
			CountryCodes:      "br",
			RequestsPerSecond: 1,
			MaxRetries:        1,
			Timeout:           time.Second,
		},
		Routing:     config.RoutingConfig{URL: "http://127.0.0.1:1", Timeout: time.Second},
		Positioning: config.PositioningConfig{Provider: config.PositioningNone, DeviceTimeout: time.Second},
	}

	srv, err := New(cfg)
	require.NoError(t, err)

	addr, err := srv.Start()
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/api/v1/facilities")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
