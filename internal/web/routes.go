package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/lookout/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	reportsHandler := handlers.NewReportsHandler(s.deps.Reports, s.deps.Photos, s.deps.CrossRef, s.logger)
	sightingsHandler := handlers.NewSightingsHandler(s.deps.Sightings, s.deps.Reports, s.deps.Photos, s.deps.CrossRef, s.logger)
	notificationsHandler := handlers.NewNotificationsHandler(s.deps.Notifications, s.logger)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if s.deps.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Reports
		r.Get("/reports", reportsHandler.List)
		r.Post("/reports", reportsHandler.Create)
		r.Get("/reports/{id}", reportsHandler.Get)
		r.Post("/reports/{id}/resolve", reportsHandler.Resolve)

		// Sightings
		r.Get("/sightings", sightingsHandler.List)
		r.Post("/sightings", sightingsHandler.Create)
		r.Get("/sightings/{id}", sightingsHandler.Get)

		// Notifications
		r.Get("/notifications", notificationsHandler.List)
		r.Post("/notifications/{id}/read", notificationsHandler.MarkRead)

		// Config
		r.Get("/config", configHandler.Get)
	})
}
