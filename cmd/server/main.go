// Package main is the entry point for the backtest service. It simulates
// execution of trading decisions over historical time against a portfolio
// ledger, scores the result against a risk-free benchmark, and serves the
// results over a small HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/brquant/backtest/internal/config"
	"github.com/brquant/backtest/internal/database"
	"github.com/brquant/backtest/internal/modules/ledger"
	"github.com/brquant/backtest/internal/modules/snapshots"
	"github.com/brquant/backtest/internal/server"
	"github.com/brquant/backtest/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting backtest service")

	// Two-database layout: the immutable trade ledger gets the safest PRAGMA
	// profile, period snapshots go to a standard results store.
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	resultsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "results.db"),
		Profile: database.ProfileStandard,
		Name:    "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open results database")
	}
	defer resultsDB.Close()

	if err := ledger.InitSchema(ledgerDB.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger schema")
	}
	if err := snapshots.InitSchema(resultsDB.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshots schema")
	}

	srv := server.New(server.Config{
		Log:       log,
		LedgerDB:  ledgerDB,
		ResultsDB: resultsDB,
		Config:    cfg,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	log.Info().Msg("Backtest service stopped")
}
