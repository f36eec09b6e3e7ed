// Package server provides the HTTP server and routing for the backtest API.
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

	"github.com/brquant/backtest/internal/config"
	"github.com/brquant/backtest/internal/database"
	"github.com/brquant/backtest/internal/modules/backtest/handlers"
	"github.com/brquant/backtest/internal/modules/ledger"
	ledgerhandlers "github.com/brquant/backtest/internal/modules/ledger/handlers"
	"github.com/brquant/backtest/internal/modules/snapshots"
	snapshothandlers "github.com/brquant/backtest/internal/modules/snapshots/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	LedgerDB  *database.DB
	ResultsDB *database.DB
	Config    *config.Config
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server and wires the module routes.
func New(cfg Config) *Server {
	log := cfg.Log.With().Str("component", "server").Logger()

	ledgerRepo := ledger.NewRepository(cfg.LedgerDB.Conn(), cfg.Log)
	snapshotRepo := snapshots.NewRepository(cfg.ResultsDB.Conn(), cfg.Log)

	backtestHandler := handlers.NewHandler(ledgerRepo, snapshotRepo, cfg.Log)
	ledgerHandler := ledgerhandlers.NewHandler(ledgerRepo, cfg.Log)
	snapshotHandler := snapshothandlers.NewHandler(snapshotRepo, cfg.Log)
	systemHandlers := NewSystemHandlers(cfg.LedgerDB, cfg.ResultsDB, cfg.Log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	if cfg.DevMode {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	r.Route("/api", func(r chi.Router) {
		backtestHandler.RegisterRoutes(r)
		ledgerHandler.RegisterRoutes(r)
		snapshotHandler.RegisterRoutes(r)
		r.Get("/system/health", systemHandlers.HandleHealth)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		router:         r,
		server:         srv,
		log:            log,
		systemHandlers: systemHandlers,
	}
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
