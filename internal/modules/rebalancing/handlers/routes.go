package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all rebalancing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/accounts/{accountID}/rebalancing/deploy", h.HandleDeploy)
	r.Post("/rebalancing/deploy", h.HandleCalculate)
}
