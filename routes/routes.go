package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/trustplane/trustplane/app"
	"github.com/trustplane/trustplane/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.Live)
	r.Get("/readyz", deps.HealthHandler.Ready)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// The decision endpoint is the agent-facing hot path.
		r.Post("/decisions", deps.DecisionHandler.Decide)

		// Policy administration (requires admin token when configured)
		r.Route("/policy", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAdmin)
			r.Get("/", deps.PolicyHandler.Get)
			r.Put("/", deps.PolicyHandler.Replace)
			r.Post("/diff", deps.PolicyHandler.Diff)
		})

		// Audit trail (requires admin token when configured)
		r.Route("/audit", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAdmin)
			r.Get("/records", deps.AuditHandler.Query)
		})

		// Metrics
		r.Route("/metrics", func(r chi.Router) {
			r.Get("/aggregate", deps.MetricsHandler.Aggregate)
			r.Get("/snapshot", deps.MetricsHandler.Snapshot)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
