package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/fuzzysearch/internal/database"
	"github.com/kozaktomas/fuzzysearch/internal/web/handlers"
)

// requestTimeout bounds non-streaming requests, including the remote lookup.
const requestTimeout = 2 * time.Minute

func (s *Server) setupRoutes() {
	threshold := uint64(s.config.FuzzySearch.Threshold)

	index := s.deps.Index
	if index == nil {
		index = database.NewLocalIndex()
	}

	searchHandler := handlers.NewSearchHandler(s.deps.Session, s.deps.Worker, s.deps.Cache, index, threshold)
	stateHandler := handlers.NewStateHandler(s.deps.Session)
	localHandler := handlers.NewLocalHandler(index, threshold)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Server-sent events must not be cut off by the request timeout.
		r.Get("/state/events", stateHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Post("/hash", searchHandler.Hash)
			r.Get("/results/{hash}", searchHandler.Results)
			r.Get("/local/{hash}", localHandler.Search)

			r.Get("/state", stateHandler.Get)
			r.Post("/session/reset", stateHandler.Reset)
		})
	})
}
