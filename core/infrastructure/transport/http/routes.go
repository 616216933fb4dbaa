package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/infrastructure/transport/http/handlers"
	"github.com/dataask/dataask/core/logger"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Queries          handlers.QueryExecutor
	Connections      handlers.ConnectionService
	ScheduledQueries handlers.ScheduledQueryService
	History          interfaces.HistoryRepository
}

// RegisterRoutes registers all HTTP routes
func RegisterRoutes(r chi.Router, svc Services) {
	log := logger.New("routes")

	query := handlers.NewQueryHandler(svc.Queries)
	conns := handlers.NewConnectionHandler(svc.Connections)
	scheduled := handlers.NewScheduledQueryHandler(svc.ScheduledQueries)
	history := handlers.NewHistoryHandler(svc.History)

	r.Get("/heartbeat", handlers.Heartbeat)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/workspaces/{ws}", func(r chi.Router) {
		r.Route("/connections", func(r chi.Router) {
			r.Get("/", conns.List)
			r.Post("/", conns.Create)
			r.Route("/{conn}", func(r chi.Router) {
				r.Get("/", conns.Get)
				r.Post("/query", query.Execute)
				r.Post("/test", conns.Test)
				r.Get("/tables", conns.Tables)
				r.Get("/constraints", conns.Constraints)
				r.Get("/tables/{table}/preview", conns.Preview)
			})
		})

		r.Route("/scheduled-queries", func(r chi.Router) {
			r.Get("/", scheduled.List)
			r.Post("/", scheduled.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", scheduled.Get)
				r.Put("/", scheduled.Update)
				r.Patch("/", scheduled.Update)
				r.Delete("/", scheduled.Delete)
				r.Post("/run", scheduled.Run)
				r.Post("/toggle", scheduled.Toggle)
			})
		})

		r.Route("/query-history", func(r chi.Router) {
			r.Get("/", history.List)
			r.Get("/{id}", history.Get)
			r.Delete("/{id}", history.Delete)
		})
	})

	routes := 0
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		log.Debugf("  %s %s", method, route)
		routes++
		return nil
	})
	log.Infof("Routes registered: %d", routes)
}
