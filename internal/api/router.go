package api

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/api/middleware"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/handlers"
)

// NewRouter creates and configures the HTTP router. ws serves the live
// feed; it may be nil when push over WebSocket is disabled. staticDir holds
// the web page; when empty, / answers with the JSON API info instead.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, ws http.Handler, staticDir string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(4 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - browser dashboards poll the feed from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Web page and its assets
	if staticDir != "" {
		r.Get("/", serveIndex(staticDir))
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	} else {
		r.Get("/", h.Root)
	}

	r.Get("/api", h.Root)
	r.Get("/health", h.Health)

	r.Route("/api/messages", func(r chi.Router) {
		r.Get("/", h.Messages)
		r.Get("/page", h.Page)
	})
	r.Get("/api/recent", h.Recent)
	r.Get("/api/stats", h.Stats)

	if ws != nil {
		r.Get("/ws", ws.ServeHTTP)
	}

	return r
}

// serveIndex serves the live page.
func serveIndex(dir string) http.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, index)
	}
}
