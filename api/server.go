/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Metrics:    Prometheus request counters and latency

ROUTE GROUPS:
  /rent/*       Periods, payments, events, audit
  /work-logs/*  Work entry CRUD
  /timer/*      Timer session control
  /metrics      Prometheus scrape endpoint
  /healthz      Liveness probe
  /*            Static files (frontend)

  API routes are unprefixed; the frontend fetches them relative to the
  page origin.

STATIC FILE SERVING:
  Serves the frontend from static/ when it exists, falling back to
  index.html for client-side routing.

SECURITY NOTE:
  No authentication middleware. This is a personal tracker deployed on
  a private network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(MetricsMiddleware)

	// Rent routes
	r.Route("/rent", func(r chi.Router) {
		r.Get("/summary", h.GetSummary)
		r.Get("/periods", h.ListPeriods)
		r.Get("/period/{year}/{month}", h.GetPeriod)
		r.Post("/recalculate-all", h.RecalculateAll)
		r.Post("/payment", h.RecordPayment)
		r.Get("/audit", h.QueryAudit)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
			r.Get("/{id}", h.GetEvent)
			r.Put("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Post("/{id}/undelete", h.UndeleteEvent)
		})
	})

	// Work-log routes
	r.Route("/work-logs", func(r chi.Router) {
		r.Get("/", h.ListWorkLogs)
		r.Post("/", h.CreateWorkLog)
		r.Get("/{id}", h.GetWorkLog)
		r.Put("/{id}", h.UpdateWorkLog)
		r.Delete("/{id}", h.DeleteWorkLog)
	})

	// Timer routes
	r.Route("/timer", func(r chi.Router) {
		r.Post("/start", h.StartTimer)
		r.Post("/pause", h.PauseTimer)
		r.Post("/resume", h.ResumeTimer)
		r.Post("/stop", h.StopTimer)
		r.Post("/cancel", h.CancelTimer)
		r.Get("/status", h.TimerStatus)
	})

	// Observability
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Static file serving (frontend)
	staticDir := "./static"
	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, r.URL.Path)

			// Check if file exists
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	} else {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Rent Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Rent Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/rent/summary">/rent/summary</a> - Rent summary</li>
<li><a href="/rent/periods">/rent/periods</a> - Calculated periods</li>
<li><a href="/work-logs">/work-logs</a> - Work logs</li>
</ul>
</body>
</html>`))
		})
	}

	return r
}
