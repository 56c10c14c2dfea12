// Package handlers provides HTTP handlers for cash deployment.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/modules/rebalancing"
)

// Handler handles rebalancing HTTP requests
type Handler struct {
	service *rebalancing.Service
	log     zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(service *rebalancing.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "rebalancing").Logger(),
	}
}

// CalculateDeployRequest is a deployment over inline holdings
type CalculateDeployRequest struct {
	rebalancing.DeployRequest
	Holdings []rebalancing.Holding `json:"holdings"`
}

// HandleDeploy handles POST /api/accounts/{accountID}/rebalancing/deploy
func (h *Handler) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "accountID")
	accountID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || accountID <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	var req rebalancing.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Deploy(accountID, req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleCalculate handles POST /api/rebalancing/deploy
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateDeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Calculate(req.Holdings, req.DeployRequest)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	if errors.Is(err, rebalancing.ErrInvalidAmount) || errors.Is(err, rebalancing.ErrUnknownMode) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Failed to calculate deployment")
	h.writeError(w, http.StatusInternalServerError, "Failed to calculate deployment")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
