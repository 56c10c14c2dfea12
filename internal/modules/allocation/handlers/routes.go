package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all allocation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts/{accountID}/allocation", func(r chi.Router) {
		r.Get("/plan", h.HandleGetPlan)
		r.Get("/targets", h.HandleGetTargets)
		r.Put("/targets", h.HandleUpdateTargets)
		r.Get("/rules", h.HandleGetRules)
		r.Put("/rules", h.HandleUpdateRules)
		r.Delete("/rules", h.HandleResetRules)
	})

	r.Route("/allocation", func(r chi.Router) {
		r.Post("/calculate", h.HandleCalculate)
		r.Post("/validate", h.HandleValidate)
		r.Post("/normalize", h.HandleNormalize)
	})
}
