package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/attendance/internal/web/handlers"
	"github.com/kozaktomas/attendance/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// requestTimeout bounds the non-streaming endpoints. An identify request waits
// for the kiosk to resolve the student and load the template.
const requestTimeout = 30 * time.Second

func (s *Server) setupRoutes() {
	kioskHandler := handlers.NewKioskHandler(s.kiosk, s.config.Camera.Width, s.logger)
	attendanceHandler := handlers.NewAttendanceHandler(s.reports, s.logger)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", kioskHandler.Health)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Event stream has no request timeout
		r.Get("/kiosk/events", kioskHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/kiosk/status", kioskHandler.Status)
			r.Get("/kiosk/frame", kioskHandler.Frame)

			// Reports
			r.Get("/attendance", attendanceHandler.List)
			r.Get("/attendance/summary", attendanceHandler.Summary)

			// Kiosk mutations require the operator token when one is configured
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireToken(s.config.Web.Token))

				r.Post("/kiosk/identify", kioskHandler.Identify)
				r.Post("/kiosk/scan", kioskHandler.Scan)
			})
		})
	})
}
