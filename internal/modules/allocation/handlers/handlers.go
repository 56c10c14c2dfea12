// Package handlers provides HTTP handlers for allocation targets, rules and plans.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/allocation"
)

// Handler handles allocation HTTP requests
type Handler struct {
	service *allocation.Service
	log     zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(service *allocation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "allocation").Logger(),
	}
}

// CalculateRequest is a stateless calculation over inline inputs
type CalculateRequest struct {
	Rows   []domain.HoldingRow           `json:"rows"`
	Config domain.TargetAllocationConfig `json:"config"`
	Rules  map[string]float64            `json:"rules"`
}

// ValidateRequest asks whether allocations sum to 100%
type ValidateRequest struct {
	Allocations map[string]float64 `json:"allocations"`
	MaxPct      *float64           `json:"max_pct,omitempty"`
}

// NormalizeRequest asks for allocations scaled to 100%
type NormalizeRequest struct {
	Allocations map[string]float64 `json:"allocations"`
}

// HandleGetPlan handles GET /api/accounts/{accountID}/allocation/plan
func (h *Handler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	plan, err := h.service.GetPlan(accountID)
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to calculate plan")
		h.writeError(w, http.StatusInternalServerError, "Failed to calculate allocation plan")
		return
	}

	h.writeJSON(w, http.StatusOK, plan)
}

// HandleGetTargets handles GET /api/accounts/{accountID}/allocation/targets
func (h *Handler) HandleGetTargets(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	cfg, err := h.service.GetTargetConfig(accountID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolios": cfg,
	})
}

// HandleUpdateTargets handles PUT /api/accounts/{accountID}/allocation/targets
func (h *Handler) HandleUpdateTargets(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Portfolios domain.TargetAllocationConfig `json:"portfolios"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SaveTargetConfig(r.Context(), accountID, req.Portfolios); err != nil {
		if errors.Is(err, allocation.ErrInvalidTargetConfig) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to save targets")
		h.writeError(w, http.StatusInternalServerError, "Failed to save allocation targets")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Allocation targets updated",
		"portfolios": len(req.Portfolios),
	})
}

// HandleGetRules handles GET /api/accounts/{accountID}/allocation/rules
func (h *Handler) HandleGetRules(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	rules, err := h.service.GetRules(accountID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, rules)
}

// HandleUpdateRules handles PUT /api/accounts/{accountID}/allocation/rules.
// Keys missing from the body take their default values.
func (h *Handler) HandleUpdateRules(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rules := allocation.RulesFromMap(req)
	if err := h.service.SaveRules(r.Context(), accountID, rules); err != nil {
		if errors.Is(err, allocation.ErrInvalidRules) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to save rules")
		h.writeError(w, http.StatusInternalServerError, "Failed to save allocation rules")
		return
	}

	h.writeJSON(w, http.StatusOK, rules)
}

// HandleResetRules handles DELETE /api/accounts/{accountID}/allocation/rules
func (h *Handler) HandleResetRules(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	if err := h.service.ResetRules(accountID); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, h.service.DefaultRules())
}

// HandleCalculate handles POST /api/allocation/calculate
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := allocation.ValidateTargetConfig(req.Config); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rules := h.service.DefaultRules()
	if req.Rules != nil {
		rules = allocation.RulesFromMap(req.Rules)
	}
	if err := allocation.ValidateRules(rules); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan := h.service.Engine().Calculate(req.Rows, req.Config, rules)
	h.writeJSON(w, http.StatusOK, plan)
}

// HandleValidate handles POST /api/allocation/validate
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := allocation.ValidateAllocations(req.Allocations)
	if err == nil && req.MaxPct != nil {
		err = allocation.CheckAllocationCaps(req.Allocations, *req.MaxPct)
	}
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
	})
}

// HandleNormalize handles POST /api/allocation/normalize
func (h *Handler) HandleNormalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": allocation.NormalizeAllocations(req.Allocations),
	})
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "accountID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID")
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
