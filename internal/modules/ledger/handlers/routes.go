package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all trade ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/trades", h.HandleListTrades)
		r.Get("/trades/{instrument}", h.HandleListTradesByInstrument)
	})
}
