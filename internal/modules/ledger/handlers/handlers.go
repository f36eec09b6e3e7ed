// Package handlers provides HTTP handlers for trade ledger queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/brquant/backtest/internal/modules/ledger"
)

// Handler handles trade ledger HTTP requests
type Handler struct {
	repo *ledger.Repository
	log  zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(repo *ledger.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleListTrades handles GET /api/ledger/trades
func (h *Handler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.repo.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list trades")
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": trades,
		"metadata": map[string]interface{}{
			"count":     len(trades),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListTradesByInstrument handles GET /api/ledger/trades/{instrument}
func (h *Handler) HandleListTradesByInstrument(w http.ResponseWriter, r *http.Request) {
	instrument := chi.URLParam(r, "instrument")

	trades, err := h.repo.ListByInstrument(instrument)
	if err != nil {
		h.log.Error().Err(err).Str("instrument", instrument).Msg("Failed to list trades")
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": trades,
		"metadata": map[string]interface{}{
			"count":     len(trades),
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
