package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/smart-attendance/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// requestTimeout bounds every request except the session event streams.
const requestTimeout = 2 * time.Minute

func (s *Server) setupRoutes() {
	// Create handlers
	schoolsHandler := handlers.NewSchoolsHandler(s.deps.Store)
	usersHandler := handlers.NewUsersHandler(s.deps.Store)
	classesHandler := handlers.NewClassesHandler(s.deps.Store, s.ledger)
	studentsHandler := handlers.NewStudentsHandler(s.deps.Store, s.deps.Embedder, s.deps.Indexer, s.config.Recognition.Threshold)
	holidaysHandler := handlers.NewHolidaysHandler(s.deps.Store, s.holidays)
	attendanceHandler := handlers.NewAttendanceHandler(s.ledger)
	reportsHandler := handlers.NewReportsHandler(s.ledger, s.builder)
	sessionsHandler := handlers.NewSessionsHandler(s.sessions, s.origins.Allowed)

	// Health check and metrics
	s.router.Get("/health", handlers.HealthCheck)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if reg := s.deps.Metrics.Registry(); reg != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Long-lived session streams
		r.Get("/sessions/{id}/events", sessionsHandler.Events)
		r.Get("/sessions/{id}/ws", sessionsHandler.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			// Schools
			r.Get("/schools", schoolsHandler.List)
			r.Post("/schools", schoolsHandler.Create)
			r.Get("/schools/{id}/classes", classesHandler.ListBySchool)
			r.Get("/schools/{id}/users", usersHandler.List)
			r.Post("/schools/{id}/users", usersHandler.Create)

			// Holidays
			r.Get("/schools/{id}/holidays", holidaysHandler.List)
			r.Put("/schools/{id}/holidays/{date}", holidaysHandler.Set)
			r.Delete("/schools/{id}/holidays/{date}", holidaysHandler.Remove)

			// Classes
			r.Post("/classes", classesHandler.Create)
			r.Delete("/classes/{id}", classesHandler.Delete)
			r.Put("/classes/{id}/teacher", classesHandler.AssignTeacher)
			r.Get("/classes/{id}/students", studentsHandler.ListByClass)
			r.Get("/classes/{id}/sheet", classesHandler.Sheet)
			r.Get("/classes/{id}/reports/{period}", reportsHandler.Report)
			r.Get("/classes/{id}/insights/{period}", reportsHandler.Insights)

			// Students
			r.Post("/students", studentsHandler.Create)
			r.Put("/students/{id}", studentsHandler.Update)
			r.Post("/students/{id}/face", studentsHandler.EnrollFace)

			// Attendance
			r.Get("/attendance", attendanceHandler.Query)
			r.Post("/attendance", attendanceHandler.Save)

			// Recognition sessions
			r.Get("/sessions", sessionsHandler.List)
			r.Post("/sessions", sessionsHandler.Start)
			r.Get("/sessions/{id}", sessionsHandler.Get)
			r.Delete("/sessions/{id}", sessionsHandler.Stop)
			r.Post("/sessions/{id}/frames", sessionsHandler.PushFrame)
			r.Post("/sessions/{id}/marks", sessionsHandler.Mark)
			r.Post("/sessions/{id}/camera", sessionsHandler.SwitchCamera)
			r.Post("/sessions/{id}/camera/error", sessionsHandler.CameraError)
			r.Post("/sessions/{id}/save", sessionsHandler.Save)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}` + "\n"))
	})
}
