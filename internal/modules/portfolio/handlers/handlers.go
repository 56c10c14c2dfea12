// Package handlers provides HTTP handlers for account holdings.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/modules/portfolio"
)

// Handler handles holding HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleListHoldings handles GET /api/accounts/{accountID}/holdings
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "accountID", "Invalid account ID")
	if !ok {
		return
	}

	holdings, err := h.service.ListHoldings(accountID)
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to list holdings")
		h.writeError(w, http.StatusInternalServerError, "Failed to list holdings")
		return
	}

	h.writeJSON(w, http.StatusOK, holdings)
}

// HandleCreateHolding handles POST /api/accounts/{accountID}/holdings
func (h *Handler) HandleCreateHolding(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "accountID", "Invalid account ID")
	if !ok {
		return
	}

	var holding portfolio.Holding
	if err := json.NewDecoder(r.Body).Decode(&holding); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.CreateHolding(accountID, &holding)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// HandleUpdateHolding handles PUT /api/accounts/{accountID}/holdings/{holdingID}
func (h *Handler) HandleUpdateHolding(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "accountID", "Invalid account ID")
	if !ok {
		return
	}
	holdingID, ok := h.pathID(w, r, "holdingID", "Invalid holding ID")
	if !ok {
		return
	}

	var holding portfolio.Holding
	if err := json.NewDecoder(r.Body).Decode(&holding); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	holding.ID = holdingID

	updated, err := h.service.UpdateHolding(accountID, &holding)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, updated)
}

// HandleDeleteHolding handles DELETE /api/accounts/{accountID}/holdings/{holdingID}
func (h *Handler) HandleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "accountID", "Invalid account ID")
	if !ok {
		return
	}
	holdingID, ok := h.pathID(w, r, "holdingID", "Invalid holding ID")
	if !ok {
		return
	}

	if err := h.service.DeleteHolding(accountID, holdingID); err != nil {
		h.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrInvalidHolding):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, portfolio.ErrHoldingNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("Holding operation failed")
		h.writeError(w, http.StatusInternalServerError, "Holding operation failed")
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param, message string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, message)
		return 0, false
	}
	return id, true
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
