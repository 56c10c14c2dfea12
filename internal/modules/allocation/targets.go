package allocation

import (
	"fmt"
	"math"

	"github.com/aristath/allocator/internal/domain"
)

// CalculateTargets computes unconstrained target values for every portfolio,
// sector and position by proportional weight distribution.
//
// Portfolio target value is its configured weight of totalCurrentValue; position
// target value is its weight of the portfolio target value. When a portfolio
// declares a placeholder and holds fewer positions than it wants, placeholder
// slots are added in a "Missing Positions" sector.
func (e *Engine) CalculateTargets(
	tree *PositionTree,
	cfg domain.TargetAllocationConfig,
	totalCurrentValue float64,
) []*domain.Portfolio {
	e.log.Info().Float64("total_current_value", totalCurrentValue).Msg("Calculating allocation targets")

	result := make([]*domain.Portfolio, 0, len(tree.Portfolios))

	for _, portfolio := range tree.Portfolios {
		bc := tree.Builder[portfolio.Name]

		portfolio.TargetWeight = portfolioWeight(cfg, portfolio.Name)
		portfolio.ConstraintStatus = domain.ConstraintStatus{Outcome: domain.ConstraintNotApplied}
		if bc != nil {
			portfolio.MinPositions = bc.MinPositions
			portfolio.DesiredPositions = bc.DesiredPositions
			portfolio.EffectivePositions = bc.EffectivePositions()
			portfolio.BuilderAllocation = bc.Allocation
		}

		if missing := e.missingPositionsSector(portfolio, bc); missing != nil {
			portfolio.Sectors = append(portfolio.Sectors, missing)
		}

		portfolio.TargetValue = (portfolio.TargetWeight / 100) * totalCurrentValue

		for _, sector := range portfolio.Sectors {
			sectorTarget := 0.0
			for _, pos := range sector.Positions {
				pos.TargetValue = (pos.TargetAllocationWeight / 100) * portfolio.TargetValue
				sectorTarget += pos.TargetValue
			}
			sector.TargetValue = sectorTarget
			sector.TargetWeight = weightOf(sectorTarget, portfolio.TargetValue)
		}

		result = append(result, portfolio)
	}

	e.log.Info().Int("portfolios", len(result)).Msg("Calculated targets")
	return result
}

// portfolioWeight returns the configured allocation of the first portfolio
// entry matching name, or 0
func portfolioWeight(cfg domain.TargetAllocationConfig, name string) float64 {
	for _, tp := range cfg {
		if tp.Name == name {
			return tp.Allocation
		}
	}
	return 0
}

func (e *Engine) missingPositionsSector(portfolio *domain.Portfolio, bc *BuilderConfig) *domain.Sector {
	if bc == nil {
		return nil
	}

	var placeholder *domain.TargetPosition
	realWeight := 0.0
	for i := range bc.Positions {
		pos := bc.Positions[i]
		if pos.IsPlaceholder {
			if placeholder == nil {
				placeholder = &bc.Positions[i]
			}
			continue
		}
		if pos.Weight != nil {
			realWeight += *pos.Weight
		}
	}

	currentCount := 0
	for _, sector := range portfolio.Sectors {
		currentCount += len(sector.Positions)
	}
	effective := bc.EffectivePositions()

	e.log.Debug().
		Str("portfolio", portfolio.Name).
		Int("current_positions", currentCount).
		Int("effective_positions", effective).
		Float64("real_weight", realWeight).
		Msg("Checking for missing positions")

	// Explicit weights that already cover the portfolio leave no room for slots
	if placeholder == nil || currentCount >= effective || math.RoundToEven(realWeight) >= 100 {
		return nil
	}

	weight := 0.0
	if placeholder.Weight != nil {
		weight = *placeholder.Weight
	}

	remaining := effective - currentCount
	sector := &domain.Sector{
		Name:          domain.MissingPositionsSector,
		Positions:     make([]*domain.Position, 0, remaining),
		PositionCount: remaining,
		IsPlaceholder: true,
	}
	for i := 1; i <= remaining; i++ {
		sector.Positions = append(sector.Positions, &domain.Position{
			Name:                   fmt.Sprintf("Position Slot %d (Unfilled)", i),
			TargetAllocationWeight: weight,
			IsPlaceholder:          true,
			PositionSlot:           i,
		})
	}
	return sector
}

// weightOf returns value as a percentage of total, or 0 when total is not positive
func weightOf(value, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return value / total * 100
}
