// Package handlers provides HTTP handlers for running backtests and reading
// the latest run's results.
package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/brquant/backtest/internal/modules/backtest"
	"github.com/brquant/backtest/internal/modules/ledger"
	"github.com/brquant/backtest/internal/modules/snapshots"
)

// Handler handles backtest HTTP requests. It keeps the most recent run's
// result in memory for the summary and report endpoints; trades and
// snapshots are additionally persisted via the repositories.
type Handler struct {
	ledgerRepo   *ledger.Repository
	snapshotRepo *snapshots.Repository
	log          zerolog.Logger

	mu         sync.Mutex
	lastResult *backtest.RunResult
}

// NewHandler creates a new backtest handler.
func NewHandler(ledgerRepo *ledger.Repository, snapshotRepo *snapshots.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		ledgerRepo:   ledgerRepo,
		snapshotRepo: snapshotRepo,
		log:          log.With().Str("handler", "backtest").Logger(),
	}
}

// HandleRun handles POST /api/backtest/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var scenario backtest.Scenario
	if err := json.NewDecoder(r.Body).Decode(&scenario); err != nil {
		http.Error(w, "Invalid scenario payload", http.StatusBadRequest)
		return
	}

	result, err := backtest.Run(scenario, h.ledgerRepo, h.snapshotRepo, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("Scenario run failed")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.mu.Lock()
	h.lastResult = &result
	h.mu.Unlock()

	h.log.Info().
		Int("periods", len(result.History)).
		Int("trades", len(result.Trades)).
		Float64("total_return_pct", result.Summary.TotalReturnPct).
		Msg("Scenario run completed")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSummary handles GET /api/backtest/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	result := h.lastResult
	h.mu.Unlock()

	if result == nil {
		http.Error(w, "No backtest has been run", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"summary":   result.Summary,
			"positions": result.Positions,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetReport handles GET /api/backtest/report
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	result := h.lastResult
	h.mu.Unlock()

	if result == nil {
		http.Error(w, "No backtest has been run", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result.Report,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
