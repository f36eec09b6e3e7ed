package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/brquant/backtest/internal/database"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	ledgerDB    *database.DB
	resultsDB   *database.DB
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates system monitoring handlers
func NewSystemHandlers(ledgerDB, resultsDB *database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		ledgerDB:    ledgerDB,
		resultsDB:   resultsDB,
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth handles GET /api/system/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemStats()

	databases := map[string]bool{
		"ledger":  h.ledgerDB.Conn().Ping() == nil,
		"results": h.resultsDB.Conn().Ping() == nil,
	}

	healthy := true
	for _, ok := range databases {
		if !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{
			"healthy":        healthy,
			"uptime_seconds": int(time.Since(h.startupTime).Seconds()),
			"cpu_percent":    cpuPercent,
			"memory_percent": memPercent,
			"databases":      databases,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// systemStats returns CPU and memory utilization percentages. Failures
// degrade to zero values; health reporting must not fail because a metric
// source is unavailable.
func (h *SystemHandlers) systemStats() (float64, float64) {
	var cpuPercent, memPercent float64

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		memPercent = memStat.UsedPercent
	}

	return cpuPercent, memPercent
}
