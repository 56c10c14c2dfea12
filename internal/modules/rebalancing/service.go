package rebalancing

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/events"
)

// ErrInvalidAmount is returned when the investment amount is not positive
var ErrInvalidAmount = errors.New("investment amount must be greater than 0")

// HoldingsProvider supplies priced holdings for an account
type HoldingsProvider interface {
	GetDeploymentHoldings(accountID int64) ([]Holding, error)
}

// PlanProvider supplies the account's current rebalancing plan
type PlanProvider interface {
	GetPlan(accountID int64) (*domain.RebalancingPlan, error)
}

// DeployRequest describes one cash deployment
type DeployRequest struct {
	Amount  decimal.Decimal    `json:"amount" yaml:"amount"`
	Mode    Mode               `json:"mode" yaml:"mode"`
	Targets map[string]float64 `json:"targets,omitempty" yaml:"targets"`
}

// DeployResult is the outcome of a cash deployment calculation
type DeployResult struct {
	Mode            Mode               `json:"mode"`
	Amount          decimal.Decimal    `json:"amount"`
	TotalToBuy      decimal.Decimal    `json:"total_to_buy"`
	Targets         map[string]float64 `json:"targets"`
	Recommendations []Recommendation   `json:"recommendations"`
}

// Service runs deployment calculations against stored holdings
type Service struct {
	calculator   *Calculator
	holdings     HoldingsProvider
	plans        PlanProvider
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new rebalancing service. plans and eventManager may be nil.
func NewService(
	calculator *Calculator,
	holdings HoldingsProvider,
	plans PlanProvider,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		calculator:   calculator,
		holdings:     holdings,
		plans:        plans,
		eventManager: eventManager,
		log:          log.With().Str("service", "rebalancing").Logger(),
	}
}

// Calculator returns the stateless calculator
func (s *Service) Calculator() *Calculator {
	return s.calculator
}

// Deploy computes purchase recommendations for an account's holdings.
// Without explicit targets, target percentages are taken from the account's
// rebalancing plan.
func (s *Service) Deploy(accountID int64, req DeployRequest) (*DeployResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Mode == "" {
		req.Mode = ModeProportional
	}

	holdings, err := s.holdings.GetDeploymentHoldings(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	targets := req.Targets
	if len(targets) == 0 && req.Mode != ModeEqualWeight && s.plans != nil {
		plan, err := s.plans.GetPlan(accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to load rebalancing plan: %w", err)
		}
		targets = TargetsFromPlan(plan, holdings)
		s.log.Debug().
			Int64("account_id", accountID).
			Int("targets", len(targets)).
			Msg("Derived deployment targets from plan")
	}

	result, err := s.calculate(holdings, targets, req)
	if err != nil {
		return nil, err
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped("rebalancing", &events.DeploymentCalculatedData{
			AccountID:       accountID,
			Mode:            string(result.Mode),
			Amount:          result.Amount.String(),
			Recommendations: len(result.Recommendations),
		})
	}

	return result, nil
}

// Calculate runs a deployment over caller-supplied holdings
func (s *Service) Calculate(holdings []Holding, req DeployRequest) (*DeployResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Mode == "" {
		req.Mode = ModeProportional
	}
	return s.calculate(holdings, req.Targets, req)
}

func (s *Service) calculate(holdings []Holding, targets map[string]float64, req DeployRequest) (*DeployResult, error) {
	recommendations, err := s.calculator.Calculate(holdings, targets, req.Amount, req.Mode)
	if err != nil {
		return nil, err
	}
	if targets == nil {
		targets = map[string]float64{}
	}

	total := TotalAmount(recommendations)
	s.log.Info().
		Str("mode", string(req.Mode)).
		Str("amount", req.Amount.String()).
		Str("total_to_buy", total.String()).
		Int("recommendations", len(recommendations)).
		Msg("Calculated cash deployment")

	return &DeployResult{
		Mode:            req.Mode,
		Amount:          req.Amount,
		TotalToBuy:      total,
		Targets:         targets,
		Recommendations: recommendations,
	}, nil
}

type planKey struct {
	portfolio string
	position  string
}

// TargetsFromPlan converts a plan's resolved position targets into holding-ID
// keyed percentages of the plan's total target value. Holdings are matched on
// portfolio and position name; placeholders never match. When several holdings
// share a position, its percentage is split by their current values, or evenly
// when none of them has a value.
func TargetsFromPlan(plan *domain.RebalancingPlan, holdings []Holding) map[string]float64 {
	targets := map[string]float64{}
	if plan == nil || plan.Summary.TotalTargetValue <= 0 {
		return targets
	}

	pct := make(map[planKey]float64)
	for _, portfolio := range plan.Portfolios {
		for _, sector := range portfolio.Sectors {
			for _, pos := range sector.Positions {
				if pos.IsPlaceholder {
					continue
				}
				key := planKey{portfolio.Name, pos.Name}
				pct[key] += pos.TargetValue / plan.Summary.TotalTargetValue * 100
			}
		}
	}

	matches := make(map[planKey][]Holding)
	for _, h := range holdings {
		key := planKey{h.PortfolioName, h.Name}
		if _, ok := pct[key]; ok {
			matches[key] = append(matches[key], h)
		}
	}

	for key, group := range matches {
		total := decimal.Zero
		for _, h := range group {
			total = total.Add(h.CurrentValue)
		}
		for _, h := range group {
			share := 1 / float64(len(group))
			if total.IsPositive() {
				share = h.CurrentValue.Div(total).InexactFloat64()
			}
			targets[h.ID] += pct[key] * share
		}
	}
	return targets
}
