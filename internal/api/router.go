package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stratoshq/governor/internal/config"
	"github.com/stratoshq/governor/internal/engine"
	"github.com/stratoshq/governor/internal/store"
)

func NewRouter(s store.Store, e *engine.Engine, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))

	items := NewItemsHandler(s, e)
	handoffs := NewHandoffsHandler(s, e)
	gates := NewGatesHandler(s, e)
	actions := NewActionsHandler(e)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ActorIDMiddleware)
		// The budget follows the actor identity established above.
		r.Use(RateLimitMiddleware(cfg.Server.RateLimitPerMinute))

		r.Post("/items", items.Create)
		r.Get("/items", items.List)
		r.Get("/items/{id}", items.Get)
		r.Patch("/items/{id}", items.Update)
		r.Get("/items/{id}/progress", items.Progress)

		r.Get("/items/{id}/dependencies/check", items.CheckDependencies)
		r.Post("/items/{id}/dependencies", items.AddDependency)
		r.Delete("/items/{id}/dependencies/{dep_id}", items.RemoveDependency)
		r.Post("/items/{id}/dependencies/{dep_id}/wait", items.WaitDependency)

		r.Post("/items/{id}/handoffs", handoffs.Submit)
		r.Get("/items/{id}/handoffs", handoffs.List)
		r.Post("/items/{id}/advance", handoffs.Advance)

		r.Post("/gates/{gate_id}/run", gates.Run)
		r.Get("/items/{id}/gate-results", gates.Results)

		r.Post("/actions/check", actions.Check)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
			r.Post("/items/{id}/cancel", items.Cancel)
			r.Post("/items/{id}/archive", items.Archive)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
