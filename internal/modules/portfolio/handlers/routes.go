package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all holding routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts/{accountID}/holdings", func(r chi.Router) {
		r.Get("/", h.HandleListHoldings)
		r.Post("/", h.HandleCreateHolding)
		r.Put("/{holdingID}", h.HandleUpdateHolding)
		r.Delete("/{holdingID}", h.HandleDeleteHolding)
	})
}
