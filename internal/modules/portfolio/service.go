package portfolio

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/events"
)

// ErrInvalidHolding is returned for holdings that fail validation
var ErrInvalidHolding = errors.New("invalid holding")

// PlanInvalidator drops cached plans after holdings change
type PlanInvalidator interface {
	InvalidatePlan(accountID int64, reason string)
}

// Service manages account holdings
type Service struct {
	repo         *HoldingRepository
	invalidator  PlanInvalidator
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new portfolio service. invalidator and eventManager may be nil.
func NewService(
	repo *HoldingRepository,
	invalidator PlanInvalidator,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		invalidator:  invalidator,
		eventManager: eventManager,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// ListHoldings returns all holdings of an account
func (s *Service) ListHoldings(accountID int64) ([]Holding, error) {
	return s.repo.List(accountID)
}

// CreateHolding validates and stores a new holding
func (s *Service) CreateHolding(accountID int64, h *Holding) (*Holding, error) {
	h.AccountID = accountID
	if err := ValidateHolding(h); err != nil {
		return nil, err
	}

	if _, err := s.repo.Create(h); err != nil {
		return nil, err
	}

	s.changed(accountID, h.ID, "created")
	return h, nil
}

// UpdateHolding validates and replaces an existing holding
func (s *Service) UpdateHolding(accountID int64, h *Holding) (*Holding, error) {
	h.AccountID = accountID
	if err := ValidateHolding(h); err != nil {
		return nil, err
	}

	if err := s.repo.Update(h); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(accountID, h.ID)
	if err != nil {
		return nil, err
	}

	s.changed(accountID, h.ID, "updated")
	return updated, nil
}

// DeleteHolding removes a holding
func (s *Service) DeleteHolding(accountID, holdingID int64) error {
	if err := s.repo.Delete(accountID, holdingID); err != nil {
		return err
	}

	s.changed(accountID, holdingID, "deleted")
	return nil
}

func (s *Service) changed(accountID, holdingID int64, action string) {
	s.log.Info().
		Int64("account_id", accountID).
		Int64("holding_id", holdingID).
		Str("action", action).
		Msg("Holdings changed")

	if s.eventManager != nil {
		s.eventManager.EmitTyped("portfolio", &events.HoldingsChangedData{
			AccountID: accountID,
			HoldingID: holdingID,
			Action:    action,
		})
	}
	if s.invalidator != nil {
		s.invalidator.InvalidatePlan(accountID, "holdings "+action)
	}
}

// ValidateHolding checks the fields a holding needs to take part in allocation
func ValidateHolding(h *Holding) error {
	if h.PortfolioName == "" {
		return fmt.Errorf("%w: portfolio_name is required", ErrInvalidHolding)
	}
	if h.PositionName == "" {
		return fmt.Errorf("%w: position_name is required", ErrInvalidHolding)
	}

	checks := []struct {
		name  string
		value *float64
	}{
		{"shares", h.Shares},
		{"override_shares", h.OverrideShares},
		{"price", h.Price},
		{"custom_total_value", h.CustomTotalValue},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		if math.IsNaN(*c.value) || math.IsInf(*c.value, 0) || *c.value < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidHolding, c.name)
		}
	}

	if h.IsCustomValue && h.CustomTotalValue == nil {
		return fmt.Errorf("%w: custom_total_value is required when is_custom_value is set", ErrInvalidHolding)
	}
	return nil
}
