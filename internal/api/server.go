package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/careorg/rosteraccess/internal/audit"
	"github.com/careorg/rosteraccess/internal/clock"
	"github.com/careorg/rosteraccess/internal/config"
	"github.com/careorg/rosteraccess/internal/engine"
	"github.com/careorg/rosteraccess/internal/notify"
	"github.com/careorg/rosteraccess/internal/policy"
	"github.com/careorg/rosteraccess/internal/roster"
	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/rs/zerolog/log"
)

// Config holds server configuration.
type Config struct {
	ListenAddr  string
	TLSCertFile string
	TLSKeyFile  string
}

// Server is the API server. It owns the fully wired engine stack.
type Server struct {
	store   storage.StorageBackend
	cfgs    *config.Holder
	shifts  *roster.Store
	clock   *clock.Processor
	engine  *engine.Engine
	auditor *audit.Logger
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates a fully wired Server.
func NewServer(store storage.StorageBackend, cfgs *config.Holder, cfg Config) *Server {
	resolver := policy.NewResolver(policy.DefaultBaselines())
	auditor := audit.NewLogger(store)
	hooks := notify.LogHooks{}

	eng := engine.New(store, resolver, cfgs, auditor, hooks)
	proc := clock.NewProcessor(store, cfgs, hooks)
	proc.SetEvaluator(eng)
	shifts := roster.New(store)
	shifts.SetCancelListener(eng)

	return &Server{
		store:   store,
		cfgs:    cfgs,
		shifts:  shifts,
		clock:   proc,
		engine:  eng,
		auditor: auditor,
		cfg:     cfg,
	}
}

// Engine exposes the access engine (for sweeper wiring in main).
func (s *Server) Engine() *engine.Engine { return s.engine }

// Clock exposes the clock processor (for sweeper wiring in main).
func (s *Server) Clock() *clock.Processor { return s.clock }

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(newRateLimiter(100, 200).middleware)

	// Prometheus metrics
	r.Handle("/metrics", MetricsHandler())

	r.Get("/v1/sys/health", s.HealthHandler)
	r.Get("/v1/sys/config", s.ConfigReadHandler)
	r.Put("/v1/sys/config", s.ConfigWriteHandler)

	// Access queries
	r.Get("/v1/access/{staffID}/properties", s.AccessiblePropertiesHandler)
	r.Get("/v1/access/{staffID}/clients", s.AccessibleClientsHandler)

	// Clock events
	r.Post("/v1/clock/{shiftID}", s.ClockEventHandler)
	r.Post("/v1/clock/{shiftID}/reason", s.ClockReasonHandler)

	// Roster management
	r.Post("/v1/shifts", s.ShiftCreateHandler)
	r.Get("/v1/shifts", s.ShiftListHandler)
	r.Get("/v1/shifts/{shiftID}", s.ShiftReadHandler)
	r.Delete("/v1/shifts/{shiftID}", s.ShiftCancelHandler)

	// Manual overrides
	r.Post("/v1/grants/{staffID}", s.ManualGrantHandler)
	r.Delete("/v1/grants/{staffID}/{propertyID}", s.ManualClearHandler)

	// Audit trail
	r.Get("/v1/audit", s.AuditLogHandler)
	r.Get("/v1/audit/deadletter", s.AuditDeadletterHandler)

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		s.httpSrv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
