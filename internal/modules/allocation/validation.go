package allocation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aristath/allocator/internal/domain"
)

// AllocationSumTolerance is the allowed deviation from 100% when validating allocations
const AllocationSumTolerance = 0.01

var (
	// ErrAllocationSum is returned when allocations do not add up to 100%
	ErrAllocationSum = errors.New("allocations must sum to 100%")
	// ErrAllocationExceedsCap is returned when a single allocation is above its cap
	ErrAllocationExceedsCap = errors.New("allocation exceeds cap")
)

// ValidateAllocations checks that allocation percentages sum to 100 within
// AllocationSumTolerance
func ValidateAllocations(allocations map[string]float64) error {
	total := 0.0
	for _, pct := range allocations {
		total += pct
	}

	if math.Abs(total-100) > AllocationSumTolerance {
		return fmt.Errorf("%w, got %.2f%%", ErrAllocationSum, total)
	}
	return nil
}

// CheckAllocationCaps returns an error naming the first allocation above maxPct
func CheckAllocationCaps(allocations map[string]float64, maxPct float64) error {
	for _, name := range sortedKeys(allocations) {
		if pct := allocations[name]; pct > maxPct {
			return fmt.Errorf("%w: %s has %.2f%% (max %.2f%%)", ErrAllocationExceedsCap, name, pct, maxPct)
		}
	}
	return nil
}

// NormalizeAllocations scales allocations so they sum to 100.
// Returns the input unchanged when the total is zero.
func NormalizeAllocations(allocations map[string]float64) map[string]float64 {
	total := 0.0
	for _, pct := range allocations {
		total += pct
	}
	if total == 0 {
		return allocations
	}

	normalized := make(map[string]float64, len(allocations))
	for name, pct := range allocations {
		normalized[name] = pct / total * 100
	}
	return normalized
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	// ErrInvalidRules is returned for caps outside 0-100
	ErrInvalidRules = errors.New("invalid allocation rules")
	// ErrInvalidTargetConfig is returned for malformed builder configurations
	ErrInvalidTargetConfig = errors.New("invalid target allocation config")
)

// ValidateRules checks that every cap is a percentage between 0 and 100
func ValidateRules(rules domain.AllocationRules) error {
	caps := map[string]float64{
		RuleMaxPerStock:  rules.MaxPerStock,
		RuleMaxPerETF:    rules.MaxPerETF,
		RuleMaxPerCrypto: rules.MaxPerCrypto,
	}
	for _, name := range sortedKeys(caps) {
		if v := caps[name]; v < 0 || v > 100 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s must be between 0 and 100, got %v", ErrInvalidRules, name, v)
		}
	}
	return nil
}

// ValidateTargetConfig rejects configurations the engine cannot join on:
// unnamed or duplicate portfolios, negative weights and negative position counts.
// Allocation sums are not enforced here; use ValidateAllocations for that.
func ValidateTargetConfig(cfg domain.TargetAllocationConfig) error {
	seen := make(map[string]bool, len(cfg))
	for i, tp := range cfg {
		if tp.Name == "" {
			return fmt.Errorf("%w: portfolio %d has no name", ErrInvalidTargetConfig, i)
		}
		if seen[tp.Name] {
			return fmt.Errorf("%w: duplicate portfolio %q", ErrInvalidTargetConfig, tp.Name)
		}
		seen[tp.Name] = true

		if tp.Allocation < 0 {
			return fmt.Errorf("%w: portfolio %q has negative allocation", ErrInvalidTargetConfig, tp.Name)
		}
		if tp.MinPositions < 0 || (tp.DesiredPositions != nil && *tp.DesiredPositions < 0) {
			return fmt.Errorf("%w: portfolio %q has negative position count", ErrInvalidTargetConfig, tp.Name)
		}
		for _, pos := range tp.Positions {
			if pos.Weight != nil && *pos.Weight < 0 {
				return fmt.Errorf("%w: position %q in %q has negative weight", ErrInvalidTargetConfig, pos.CompanyName, tp.Name)
			}
			if !pos.IsPlaceholder && pos.CompanyName == "" {
				return fmt.Errorf("%w: portfolio %q has a position without a name", ErrInvalidTargetConfig, tp.Name)
			}
		}
	}
	return nil
}
