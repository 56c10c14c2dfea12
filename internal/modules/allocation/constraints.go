package allocation

import (
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/allocator/internal/domain"
)

// MaxConstraintIterations bounds the capping/redistribution loop
const MaxConstraintIterations = 100

// ApplyTypeConstraints caps positions at their asset-class limit and hands the
// freed capacity to uncapped positions in proportion to their original
// (unconstrained) target values, repeating until no position changes.
//
// Positions are modified in place. Callers are expected to pass only positions
// with an identifier and an asset class. An asset class without a configured
// cap is capped at zero with reason unknown_type.
func (e *Engine) ApplyTypeConstraints(
	positions []*domain.Position,
	portfolioTargetValue float64,
	rules domain.AllocationRules,
	portfolioName string,
) domain.ConstraintStatus {
	log := e.log.With().Str("portfolio", portfolioName).Logger()

	if portfolioTargetValue <= 0 {
		log.Warn().
			Float64("target_value", portfolioTargetValue).
			Msg("Portfolio has zero or negative target value, cannot apply type constraints")
		for _, pos := range positions {
			pos.UnconstrainedTargetValue = pos.TargetValue
			pos.ConstrainedTargetValue = 0
			pos.IsCapped = true
			pos.CapReason = domain.CapReasonZeroPortfolioValue
			pos.Constrained = true
		}
		return domain.ConstraintStatus{Outcome: domain.ConstraintZeroPortfolioValue}
	}

	log.Debug().Int("positions", len(positions)).Msg("Starting type constraint application")

	for _, pos := range positions {
		pos.UnconstrainedTargetValue = pos.TargetValue
		pos.ConstrainedTargetValue = pos.TargetValue
		pos.IsCapped = false
		pos.CapReason = domain.CapReasonNone
		pos.Constrained = true
	}

	for iteration := 0; iteration < MaxConstraintIterations; iteration++ {
		passes := iteration + 1
		capped, uncapped := partitionCapped(positions)

		if len(uncapped) == 0 {
			log.Debug().Int("positions", len(positions)).Msg("All positions are capped")
			return domain.ConstraintStatus{Outcome: domain.ConstraintAllCapped, Iterations: passes, Converged: true}
		}

		available := portfolioTargetValue - sumConstrained(capped)
		if available <= 0 {
			log.Warn().Float64("available", available).Msg("No available value to distribute")
			return domain.ConstraintStatus{Outcome: domain.ConstraintNoCapacity, Iterations: passes}
		}

		changed := false
		for _, pos := range uncapped {
			targetPct := pos.ConstrainedTargetValue / portfolioTargetValue * 100

			capPct, reason, ok := capFor(pos.AssetClass, rules)
			if !ok {
				log.Warn().
					Str("position", pos.Name).
					Str("asset_class", string(pos.AssetClass)).
					Msg("Position has unknown asset class")
				pos.IsCapped = true
				pos.ConstrainedTargetValue = 0
				pos.CapReason = domain.CapReasonUnknownType
				changed = true
				continue
			}

			if targetPct > capPct {
				capValue := (capPct / 100) * portfolioTargetValue
				log.Debug().
					Str("position", pos.Name).
					Str("asset_class", string(pos.AssetClass)).
					Float64("cap_pct", capPct).
					Float64("target_pct", targetPct).
					Float64("excess", pos.ConstrainedTargetValue-capValue).
					Msg("Capped position")

				pos.IsCapped = true
				pos.ConstrainedTargetValue = capValue
				pos.CapReason = reason
				changed = true
			}
		}

		if !changed {
			log.Debug().
				Int("iterations", passes).
				Int("capped", len(capped)).
				Int("uncapped", len(uncapped)).
				Msg("Type constraints converged")
			return domain.ConstraintStatus{Outcome: domain.ConstraintConverged, Iterations: passes, Converged: true}
		}

		redistribute(positions, portfolioTargetValue)
	}

	log.Error().Int("max_iterations", MaxConstraintIterations).Msg("Max iterations reached without convergence")
	return domain.ConstraintStatus{Outcome: domain.ConstraintMaxIterations, Iterations: MaxConstraintIterations}
}

// redistribute spreads the value left after capped positions over the
// uncapped ones, weighted by their original unconstrained target values.
// Falls back to an equal split when all original values are zero.
func redistribute(positions []*domain.Position, portfolioTargetValue float64) {
	capped, uncapped := partitionCapped(positions)
	if len(uncapped) == 0 {
		return
	}

	available := portfolioTargetValue - sumConstrained(capped)
	if available <= 0 {
		return
	}

	weights := make([]float64, len(uncapped))
	for i, pos := range uncapped {
		weights[i] = pos.UnconstrainedTargetValue
	}
	totalWeight := floats.Sum(weights)

	if totalWeight > 0 {
		for i, pos := range uncapped {
			pos.ConstrainedTargetValue = weights[i] / totalWeight * available
		}
		return
	}

	share := available / float64(len(uncapped))
	for _, pos := range uncapped {
		pos.ConstrainedTargetValue = share
	}
}

func partitionCapped(positions []*domain.Position) (capped, uncapped []*domain.Position) {
	for _, pos := range positions {
		if pos.IsCapped {
			capped = append(capped, pos)
		} else {
			uncapped = append(uncapped, pos)
		}
	}
	return capped, uncapped
}

func sumConstrained(positions []*domain.Position) float64 {
	values := make([]float64, len(positions))
	for i, pos := range positions {
		values[i] = pos.ConstrainedTargetValue
	}
	return floats.Sum(values)
}

// isConstrainable reports whether a position takes part in type constraint
// resolution. Placeholders, positions without an identifier and positions
// without an asset class are skipped. Unrecognised asset classes take part and
// are capped at zero.
func isConstrainable(pos *domain.Position) bool {
	if pos.IsPlaceholder {
		return false
	}
	if pos.Identifier == nil || *pos.Identifier == "" {
		return false
	}
	return pos.AssetClass != domain.AssetClassUnknown
}

// CalculateTargetsWithTypeConstraints computes unconstrained targets and then
// resolves per-asset-class caps for every portfolio. Sector targets and weights
// are recomputed from the constrained position values.
func (e *Engine) CalculateTargetsWithTypeConstraints(
	tree *PositionTree,
	cfg domain.TargetAllocationConfig,
	totalCurrentValue float64,
	rules domain.AllocationRules,
) []*domain.Portfolio {
	e.log.Info().
		Float64("total_current_value", totalCurrentValue).
		Float64("max_per_stock", rules.MaxPerStock).
		Float64("max_per_etf", rules.MaxPerETF).
		Float64("max_per_crypto", rules.MaxPerCrypto).
		Msg("Calculating type-constrained allocation targets")

	portfolios := e.CalculateTargets(tree, cfg, totalCurrentValue)

	for _, portfolio := range portfolios {
		var valid []*domain.Position
		skipped := 0
		for _, sector := range portfolio.Sectors {
			if sector.IsPlaceholder {
				continue
			}
			for _, pos := range sector.Positions {
				if pos.IsPlaceholder {
					continue
				}
				if isConstrainable(pos) {
					valid = append(valid, pos)
				} else {
					skipped++
				}
			}
		}
		portfolio.SkippedPositions = skipped

		if skipped > 0 {
			e.log.Info().
				Str("portfolio", portfolio.Name).
				Int("skipped", skipped).
				Msg("Skipping positions without identifier or asset class")
		}

		if len(valid) == 0 {
			e.log.Warn().Str("portfolio", portfolio.Name).Msg("No valid positions with asset class in portfolio")
			continue
		}

		portfolio.ConstraintStatus = e.ApplyTypeConstraints(valid, portfolio.TargetValue, rules, portfolio.Name)

		for _, pos := range valid {
			pos.TargetValue = pos.ConstrainedTargetValue
		}

		for _, sector := range portfolio.Sectors {
			if sector.IsPlaceholder {
				continue
			}
			sectorTarget := 0.0
			for _, pos := range sector.Positions {
				sectorTarget += pos.TargetValue
			}
			sector.TargetValue = sectorTarget
			sector.TargetWeight = weightOf(sectorTarget, portfolio.TargetValue)
		}
	}

	e.log.Info().Int("portfolios", len(portfolios)).Msg("Calculated type-constrained targets")
	return portfolios
}
