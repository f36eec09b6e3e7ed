// Package handlers provides HTTP handlers for portfolio history snapshots.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/brquant/backtest/internal/modules/snapshots"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	repo *snapshots.Repository
	log  zerolog.Logger
}

// NewHandler creates a new snapshots handler
func NewHandler(repo *snapshots.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleListSnapshots handles GET /api/snapshots
func (h *Handler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		http.Error(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": records,
		"metadata": map[string]interface{}{
			"count":     len(records),
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
