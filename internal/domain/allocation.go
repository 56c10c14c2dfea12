// Package domain provides core domain models and types.
package domain

import "time"

// AssetClass represents the investment type of a position
type AssetClass string

const (
	// AssetClassStock represents individual stocks
	AssetClassStock AssetClass = "Stock"
	// AssetClassETF represents Exchange Traded Funds
	AssetClassETF AssetClass = "ETF"
	// AssetClassCrypto represents crypto assets
	AssetClassCrypto AssetClass = "Crypto"
	// AssetClassUnknown is the null asset class
	AssetClassUnknown AssetClass = ""
)

// CapReason records why a position's constrained target value was fixed
type CapReason string

const (
	CapReasonNone               CapReason = ""
	CapReasonMaxPerStock        CapReason = "maxPerStock"
	CapReasonMaxPerETF          CapReason = "maxPerETF"
	CapReasonMaxPerCrypto       CapReason = "maxPerCrypto"
	CapReasonUnknownType        CapReason = "unknown_type"
	CapReasonZeroPortfolioValue CapReason = "zero_portfolio_value"
)

const (
	// UncategorizedSector holds positions without a declared sector
	UncategorizedSector = "Uncategorized"
	// MissingPositionsSector holds placeholder slots for not-yet-filled positions
	MissingPositionsSector = "Missing Positions"
)

// HoldingRow is one row of the holdings snapshot.
// CurrentValue is already expressed in the settlement currency.
type HoldingRow struct {
	PortfolioName string     `json:"portfolio_name" yaml:"portfolio_name"`
	PortfolioID   string     `json:"portfolio_id,omitempty" yaml:"portfolio_id"` // display only, never a join key
	Sector        *string    `json:"sector,omitempty" yaml:"sector"`
	PositionName  string     `json:"position_name" yaml:"position_name"`
	Identifier    *string    `json:"identifier,omitempty" yaml:"identifier"`
	AssetClass    AssetClass `json:"asset_class,omitempty" yaml:"asset_class"`
	CurrentValue  float64    `json:"current_value" yaml:"current_value"`
}

// Position is one holding (or placeholder slot) inside a sector
type Position struct {
	Name                     string     `json:"name"`
	Identifier               *string    `json:"identifier"`
	AssetClass               AssetClass `json:"investment_type,omitempty"`
	CurrentValue             float64    `json:"currentValue"`
	TargetAllocationWeight   float64    `json:"targetAllocation"`
	TargetValue              float64    `json:"targetValue"`
	IsPlaceholder            bool       `json:"isPlaceholder,omitempty"`
	PositionSlot             int        `json:"positionSlot,omitempty"`
	Constrained              bool       `json:"constrained"`
	UnconstrainedTargetValue float64    `json:"unconstrained_target_value"`
	ConstrainedTargetValue   float64    `json:"constrained_target_value"`
	IsCapped                 bool       `json:"is_capped"`
	CapReason                CapReason  `json:"applicable_rule,omitempty"`
}

// Sector groups positions inside one portfolio
type Sector struct {
	Name          string      `json:"name"`
	Positions     []*Position `json:"positions"`
	CurrentValue  float64     `json:"currentValue"`
	TargetValue   float64     `json:"targetValue"`
	TargetWeight  float64     `json:"targetWeight"`
	PositionCount int         `json:"positionCount"`
	IsPlaceholder bool        `json:"isPlaceholder,omitempty"`
}

// ConstraintOutcome describes how type constraint resolution ended for a portfolio
type ConstraintOutcome string

const (
	ConstraintNotApplied         ConstraintOutcome = "not_applied"
	ConstraintConverged          ConstraintOutcome = "converged"
	ConstraintAllCapped          ConstraintOutcome = "all_capped"
	ConstraintNoCapacity         ConstraintOutcome = "no_capacity"
	ConstraintMaxIterations      ConstraintOutcome = "max_iterations"
	ConstraintZeroPortfolioValue ConstraintOutcome = "zero_portfolio_value"
)

// ConstraintStatus summarizes a type constraint run
type ConstraintStatus struct {
	Outcome    ConstraintOutcome `json:"outcome"`
	Iterations int               `json:"iterations"`
	Converged  bool              `json:"converged"`
}

// Portfolio is the top-level grouping, keyed by name
type Portfolio struct {
	Name               string           `json:"name"`
	ID                 string           `json:"id,omitempty"`
	CurrentValue       float64          `json:"currentValue"`
	TargetWeight       float64          `json:"targetWeight"`
	TargetValue        float64          `json:"targetValue"`
	MinPositions       int              `json:"minPositions"`
	DesiredPositions   *int             `json:"desiredPositions"`
	EffectivePositions int              `json:"effectivePositions"`
	BuilderAllocation  float64          `json:"builderAllocation"`
	Sectors            []*Sector        `json:"sectors"`
	SkippedPositions   int              `json:"skippedPositions"`
	ConstraintStatus   ConstraintStatus `json:"constraintStatus"`
}

// AllocationRules caps single positions per asset class, as a percentage of
// their portfolio's target value
type AllocationRules struct {
	MaxPerStock  float64 `json:"maxPerStock" toml:"max_per_stock" yaml:"maxPerStock"`
	MaxPerETF    float64 `json:"maxPerETF" toml:"max_per_etf" yaml:"maxPerETF"`
	MaxPerCrypto float64 `json:"maxPerCrypto" toml:"max_per_crypto" yaml:"maxPerCrypto"`
}

// Default allocation rule percentages
const (
	DefaultMaxPerStock  = 2.0
	DefaultMaxPerETF    = 5.0
	DefaultMaxPerCrypto = 5.0
)

// DefaultAllocationRules returns the rules used when nothing is configured
func DefaultAllocationRules() AllocationRules {
	return AllocationRules{
		MaxPerStock:  DefaultMaxPerStock,
		MaxPerETF:    DefaultMaxPerETF,
		MaxPerCrypto: DefaultMaxPerCrypto,
	}
}

// TargetPosition is one position entry of a target portfolio.
// A placeholder entry carries the default weight for equal distribution.
type TargetPosition struct {
	CompanyName   string   `json:"companyName" yaml:"companyName"`
	Weight        *float64 `json:"weight,omitempty" yaml:"weight"`
	IsPlaceholder bool     `json:"isPlaceholder,omitempty" yaml:"isPlaceholder"`
}

// TargetPortfolio is the user-authored target for one portfolio
type TargetPortfolio struct {
	Name             string           `json:"name" yaml:"name"`
	Allocation       float64          `json:"allocation" yaml:"allocation"`
	MinPositions     int              `json:"minPositions" yaml:"minPositions"`
	DesiredPositions *int             `json:"desiredPositions,omitempty" yaml:"desiredPositions"`
	Positions        []TargetPosition `json:"positions" yaml:"positions"`
}

// TargetAllocationConfig is the builder configuration driving the engine
type TargetAllocationConfig []TargetPortfolio

// RebalancingSummary holds plan-level statistics
type RebalancingSummary struct {
	TotalCurrentValue     float64           `json:"totalCurrentValue"`
	TotalTargetValue      float64           `json:"totalTargetValue"`
	TotalTargetWeight     float64           `json:"totalTargetWeight"`
	PortfolioCount        int               `json:"portfolioCount"`
	PositionCount         int               `json:"positionCount"`
	PlaceholderCount      int               `json:"placeholderCount"`
	CappedPositions       int               `json:"cappedPositions"`
	SkippedPositions      int               `json:"skippedPositions"`
	UnconvergedPortfolios []string          `json:"unconvergedPortfolios"`
	Sectors               []GroupAllocation `json:"sectors"`
}

// GroupAllocation compares current and target weights for one group across portfolios
type GroupAllocation struct {
	Name         string  `json:"name"`
	TargetPct    float64 `json:"target_pct"`
	CurrentPct   float64 `json:"current_pct"`
	CurrentValue float64 `json:"current_value"`
	TargetValue  float64 `json:"target_value"`
	Deviation    float64 `json:"deviation"`
}

// RebalancingPlan is the final result of an allocation calculation
type RebalancingPlan struct {
	ID          string             `json:"id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Portfolios  []*Portfolio       `json:"portfolios"`
	Summary     RebalancingSummary `json:"summary"`
}
