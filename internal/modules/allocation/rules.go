package allocation

import (
	"github.com/aristath/allocator/internal/domain"
)

// Rule keys as used by the builder configuration
const (
	RuleMaxPerStock  = "maxPerStock"
	RuleMaxPerETF    = "maxPerETF"
	RuleMaxPerCrypto = "maxPerCrypto"
)

// RulesFromMap builds allocation rules from an optional-key mapping.
// Missing keys fall back to the defaults (Stock 2.0, ETF 5.0, Crypto 5.0).
func RulesFromMap(values map[string]float64) domain.AllocationRules {
	rules := domain.DefaultAllocationRules()
	if v, ok := values[RuleMaxPerStock]; ok {
		rules.MaxPerStock = v
	}
	if v, ok := values[RuleMaxPerETF]; ok {
		rules.MaxPerETF = v
	}
	if v, ok := values[RuleMaxPerCrypto]; ok {
		rules.MaxPerCrypto = v
	}
	return rules
}

// RulesToMap is the inverse of RulesFromMap
func RulesToMap(rules domain.AllocationRules) map[string]float64 {
	return map[string]float64{
		RuleMaxPerStock:  rules.MaxPerStock,
		RuleMaxPerETF:    rules.MaxPerETF,
		RuleMaxPerCrypto: rules.MaxPerCrypto,
	}
}

// capFor returns the cap percentage and rule name for an asset class.
// ok is false for unknown asset classes.
func capFor(assetClass domain.AssetClass, rules domain.AllocationRules) (capPct float64, reason domain.CapReason, ok bool) {
	switch assetClass {
	case domain.AssetClassStock:
		return rules.MaxPerStock, domain.CapReasonMaxPerStock, true
	case domain.AssetClassETF:
		return rules.MaxPerETF, domain.CapReasonMaxPerETF, true
	case domain.AssetClassCrypto:
		return rules.MaxPerCrypto, domain.CapReasonMaxPerCrypto, true
	}
	return 0, domain.CapReasonNone, false
}

// defaultWeightFor returns the target weight used when a position has no
// explicit weight. The per-class caps double as the default target.
func defaultWeightFor(assetClass domain.AssetClass, rules domain.AllocationRules) float64 {
	capPct, _, ok := capFor(assetClass, rules)
	if !ok {
		return 0
	}
	return capPct
}
