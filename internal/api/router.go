package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visionedge/engine/internal/api/handlers"
	"github.com/visionedge/engine/internal/api/middleware"
	"github.com/visionedge/engine/internal/config"
)

// NewRouter creates the HTTP router with all API routes. evidenceDir, when
// non-empty, is served read-only under /evidence/ so the URLs embedded in
// alert records resolve.
func NewRouter(cfg *config.Config, h *handlers.Handlers, evidenceDir string) http.Handler {
	r := chi.NewRouter()

	auth := middleware.NewAPIKeyAuth()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(auth.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/detect/image", h.DetectImage)

		r.Route("/streams", func(r chi.Router) {
			r.Get("/", h.ListStreams)
			r.Post("/", h.StartStream)
			r.Delete("/", h.StopStream)
		})

		r.Get("/skills", h.ListSkills)
	})

	// Evidence objects referenced by alert records
	if evidenceDir != "" {
		fileServer := http.StripPrefix("/evidence/", http.FileServer(http.Dir(evidenceDir)))
		r.Get("/evidence/*", fileServer.ServeHTTP)
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "visionedge-engine",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "visionedge-engine",
		})
	}
}
