package allocation

import (
	"math"
	"sort"

	"github.com/aristath/allocator/internal/domain"
)

// CalculateSectorAllocation aggregates sectors by name across all portfolios and
// compares their current share of the grand total against their target share.
// Placeholder sectors count toward target value but hold no current value.
func CalculateSectorAllocation(portfolios []*domain.Portfolio) []domain.GroupAllocation {
	currentValues := make(map[string]float64)
	targetValues := make(map[string]float64)
	totalCurrent := 0.0
	totalTarget := 0.0

	for _, portfolio := range portfolios {
		totalCurrent += portfolio.CurrentValue
		for _, sector := range portfolio.Sectors {
			currentValues[sector.Name] += sector.CurrentValue
			targetValues[sector.Name] += sector.TargetValue
			totalTarget += sector.TargetValue
		}
	}

	return buildGroupAllocations(currentValues, targetValues, totalCurrent, totalTarget)
}

// buildGroupAllocations creates GroupAllocation structs from group values.
// Percentages are expressed as 0-100.
func buildGroupAllocations(
	currentValues map[string]float64,
	targetValues map[string]float64,
	totalCurrent float64,
	totalTarget float64,
) []domain.GroupAllocation {
	// Collect all group names (from both current and target values)
	groupNames := make(map[string]bool)
	for name := range currentValues {
		groupNames[name] = true
	}
	for name := range targetValues {
		groupNames[name] = true
	}

	allocations := make([]domain.GroupAllocation, 0, len(groupNames))
	for groupName := range groupNames {
		currentPct := weightOf(currentValues[groupName], totalCurrent)
		targetPct := weightOf(targetValues[groupName], totalTarget)

		allocations = append(allocations, domain.GroupAllocation{
			Name:         groupName,
			TargetPct:    round(targetPct, 2),
			CurrentPct:   round(currentPct, 2),
			CurrentValue: round(currentValues[groupName], 2),
			TargetValue:  round(targetValues[groupName], 2),
			Deviation:    round(currentPct-targetPct, 2),
		})
	}

	// Sort by name for consistent output
	sort.Slice(allocations, func(i, j int) bool {
		return allocations[i].Name < allocations[j].Name
	})

	return allocations
}

// round rounds a float64 to n decimal places
func round(val float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(val*multiplier) / multiplier
}
