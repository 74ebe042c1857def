package server

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"impound-lot-finder/internal/config"
	"impound-lot-finder/internal/geocoding"
	"impound-lot-finder/internal/handlers"
	"impound-lot-finder/internal/locate"
	"impound-lot-finder/internal/obs"
	"impound-lot-finder/internal/positioning"
	"impound-lot-finder/internal/routing"
	"impound-lot-finder/internal/session"
	"impound-lot-finder/internal/sqlite"
	"impound-lot-finder/web"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         *sqlite.Store
	sessions   *session.Store
	listener   net.Listener
	addr       string
}

// New creates and initializes a new server (does not start it)
func New(cfg *config.Config) (*Server, error) {
	log.Printf("Initializing data store: path=%s", cfg.DB.Path)
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	facilities, err := db.Facilities().List(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load facilities: %w", err)
	}
	log.Printf("Loaded %d facilities", len(facilities))

	geocoder := geocoding.NewCachedGeocoder(
		geocoding.NewNominatimGeocoder(geocoding.Config{
			BaseURL:           cfg.Geocoding.URL,
			CountryCodes:      cfg.Geocoding.CountryCodes,
			RequestsPerSecond: cfg.Geocoding.RequestsPerSecond,
			Timeout:           cfg.Geocoding.Timeout,
			MaxRetries:        cfg.Geocoding.MaxRetries,
		}),
		db.GeocodeCache(),
	)
	routes := routing.NewCachedService(
		routing.NewOSRMService(cfg.Routing.URL, cfg.Routing.Timeout),
		db.RouteCache(),
	)
	locator := locate.New(geocoder, newPositioner(cfg.Positioning), cfg.Positioning.DeviceTimeout)

	sessions := session.NewStore(session.Deps{
		Facilities:       facilities,
		Locator:          locator,
		Routes:           routes,
		AutoRouteNearest: cfg.Session.AutoRouteNearest,
	})

	handler := &handlers.Handler{
		DB:       db,
		Sessions: sessions,
		Opener:   openExternal,
	}

	mux := setupRoutes(handler, web.Static)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      loggingMiddleware(corsMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		sessions:   sessions,
		addr:       cfg.Server.Addr,
	}, nil
}

func newPositioner(cfg config.PositioningConfig) positioning.Positioner {
	switch cfg.Provider {
	case config.PositioningIPAPI:
		return positioning.NewIPAPIPositioner(cfg.IPAPIURL)
	default:
		return positioning.Unsupported{}
	}
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server. Live sessions are closed first
// so their snapshot streams end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.CloseAll()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler, staticFS fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	// Serve the map UI from the embedded filesystem
	staticSubFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatalf("failed to create static sub-filesystem: %v", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticSubFS)))

	mux.HandleFunc("/api/v1/health", handler.HandleHealthCheck)

	mux.HandleFunc("/api/v1/facilities", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleListFacilities(w, r)
	})

	mux.HandleFunc("/api/v1/facilities/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/facilities/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleGetFacility(w, r)
	})

	mux.HandleFunc("/api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleCreateSession(w, r)
	})

	mux.HandleFunc(handlers.SessionsPrefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == handlers.SessionsPrefix {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		handler.HandleSession(w, r)
	})

	return mux
}

// openExternal opens a URL in the system's default browser
func openExternal(rawURL string) error {
	// Only allow http/https URLs
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return fmt.Errorf("only HTTP/HTTPS URLs are allowed: %q", rawURL)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", rawURL)
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	go cmd.Wait()
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		r = r.WithContext(obs.WithRequestID(r.Context(), reqID))

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		log.Printf("[HTTP] req_id=%s %s %s %d %v", reqID, r.Method, r.URL.Path, lrw.statusCode, duration)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades take over the connection
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if handlers.AllowedOrigin(origin) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
