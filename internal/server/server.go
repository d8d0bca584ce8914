// Package server implements the external HTTP surface: the operator
// webhook, health/status probes, and a read-only market query
// endpoint. Grounded on the teacher's server.go middleware stack and
// setupXRoutes(r chi.Router) registration style, generalized from the
// portfolio dashboard's routes to spec.md §6's endpoint set.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/control"
	"github.com/aristath/arduino-trader/internal/market"
	"github.com/aristath/arduino-trader/internal/notify"
)

// Config holds server dependencies, assembled once at startup.
type Config struct {
	Port          int
	Log           zerolog.Logger
	Market        *market.Store
	Control       *control.Surface
	Router        *notify.CommandRouter
	WebhookSecret string
	DevMode       bool
}

// Server is the HTTP front end.
type Server struct {
	mux           *chi.Mux
	server        *http.Server
	log           zerolog.Logger
	market        *market.Store
	control       *control.Surface
	commands      *notify.CommandRouter
	webhookSecret string
	startedAt     time.Time
}

// New builds a Server with its routes and middleware wired.
func New(cfg Config) *Server {
	s := &Server{
		mux:           chi.NewRouter(),
		log:           cfg.Log.With().Str("component", "server").Logger(),
		market:        cfg.Market,
		control:       cfg.Control,
		commands:      cfg.Router,
		webhookSecret: cfg.WebhookSecret,
		startedAt:     time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.mux.Use(middleware.Recoverer)
	s.mux.Use(middleware.RequestID)
	s.mux.Use(middleware.RealIP)
	s.mux.Use(s.loggingMiddleware)
	s.mux.Use(middleware.Timeout(60 * time.Second))
	s.mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Line-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.mux.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.mux.Get("/health", s.handleHealth)

	s.mux.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/market/{symbol}", s.handleMarket)
		r.Post("/webhook", s.handleWebhook)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("addr_len", len(s.server.Addr)).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
