package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/metrics"
	"github.com/kozaktomas/smart-attendance/internal/recognition"
	"github.com/kozaktomas/smart-attendance/internal/report"
	"github.com/kozaktomas/smart-attendance/internal/web/handlers"
	"github.com/kozaktomas/smart-attendance/internal/web/middleware"
)

var logger = slog.Default().With("component", "web")

// Dependencies are the collaborators the server is built from.
type Dependencies struct {
	Store database.Store
	// Indexer enables duplicate-face warnings on enrollment. Optional.
	Indexer database.ReferenceIndexer
	// Provider computes embeddings of camera frames.
	Provider recognition.EmbeddingProvider
	// Embedder computes reference embeddings of enrollment photos.
	Embedder handlers.FaceEmbedder
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Dependencies
	router     *chi.Mux
	httpServer *http.Server

	origins  *middleware.OriginPolicy
	holidays *handlers.HolidayCache
	ledger   *ledger.Ledger
	builder  *report.Builder
	sessions *handlers.SessionManager
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	r := chi.NewRouter()

	offRule := calendar.WeeklyOffRule{Day: cfg.Calendar.WeeklyOffDay}
	holidays := handlers.NewHolidayCache(deps.Store, cfg.Web.HolidayCacheTTL)
	l := ledger.New(deps.Store, offRule,
		ledger.WithMetrics(deps.Metrics),
		ledger.WithHolidays(holidays),
	)

	builder := report.NewBuilder(offRule)
	builder.Labels = report.NewLabels(cfg.Labels.Weekdays, cfg.Labels.Months)

	sessions := handlers.NewSessionManager(l, deps.Store, deps.Provider, recognition.Config{
		Interval:  cfg.Recognition.Interval,
		Threshold: cfg.Recognition.Threshold,
		Messages:  recognition.MessagesFrom(cfg.StatusMessage),
		Metrics:   deps.Metrics,
	}, cfg.Web.SessionIdleLimit)

	s := &Server{
		config:   cfg,
		deps:     deps,
		router:   r,
		origins:  middleware.NewOriginPolicy(cfg.Web.AllowedOrigins),
		holidays: holidays,
		ledger:   l,
		builder:  builder,
		sessions: sessions,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(s.origins))
	r.Use(middleware.SecurityHeaders())

	// Set up routes
	s.setupRoutes()

	// Create HTTP server. No write timeout: session event streams stay open.
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logger.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down web server")

	// Deactivate every recognition session and stop the idle janitor
	s.sessions.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Sessions returns the recognition session manager
func (s *Server) Sessions() *handlers.SessionManager {
	return s.sessions
}
