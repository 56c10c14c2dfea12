package allocation

import (
	"github.com/google/uuid"

	"github.com/aristath/allocator/internal/domain"
)

// GenerateRebalancingPlan wraps calculated portfolios into a plan with
// summary statistics
func (e *Engine) GenerateRebalancingPlan(portfolios []*domain.Portfolio) *domain.RebalancingPlan {
	if portfolios == nil {
		portfolios = []*domain.Portfolio{}
	}

	summary := domain.RebalancingSummary{
		PortfolioCount:        len(portfolios),
		UnconvergedPortfolios: []string{},
	}

	for _, portfolio := range portfolios {
		summary.TotalCurrentValue += portfolio.CurrentValue
		summary.TotalTargetValue += portfolio.TargetValue
		summary.TotalTargetWeight += portfolio.TargetWeight
		summary.SkippedPositions += portfolio.SkippedPositions

		switch portfolio.ConstraintStatus.Outcome {
		case domain.ConstraintNoCapacity, domain.ConstraintMaxIterations:
			summary.UnconvergedPortfolios = append(summary.UnconvergedPortfolios, portfolio.Name)
		}

		for _, sector := range portfolio.Sectors {
			for _, pos := range sector.Positions {
				if pos.IsPlaceholder {
					summary.PlaceholderCount++
					continue
				}
				summary.PositionCount++
				if pos.IsCapped {
					summary.CappedPositions++
				}
			}
		}
	}

	summary.Sectors = CalculateSectorAllocation(portfolios)

	plan := &domain.RebalancingPlan{
		ID:          uuid.New().String(),
		GeneratedAt: e.now().UTC(),
		Portfolios:  portfolios,
		Summary:     summary,
	}

	e.log.Info().
		Str("plan_id", plan.ID).
		Int("portfolios", summary.PortfolioCount).
		Int("positions", summary.PositionCount).
		Int("capped", summary.CappedPositions).
		Int("skipped", summary.SkippedPositions).
		Msg("Generated rebalancing plan")

	return plan
}
