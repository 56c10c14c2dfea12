// Package allocation provides the allocation and rebalancing engine.
//
// The engine turns a holdings snapshot, a target allocation configuration and a
// set of per-asset-class caps into resolved target values for every portfolio,
// sector and position. It performs no I/O and keeps no state between calls.
package allocation

import (
	"time"

	"github.com/aristath/allocator/internal/domain"
	"github.com/rs/zerolog"
)

// Engine runs the allocation pipeline
type Engine struct {
	now func() time.Time
	log zerolog.Logger
}

// NewEngine creates a new allocation engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		now: time.Now,
		log: log.With().Str("component", "allocation_engine").Logger(),
	}
}

// Calculate runs aggregation, target allocation, type constraints and plan
// generation in one pass
func (e *Engine) Calculate(
	rows []domain.HoldingRow,
	cfg domain.TargetAllocationConfig,
	rules domain.AllocationRules,
) *domain.RebalancingPlan {
	tree := e.BuildPositionTree(rows, cfg, rules)
	total := tree.TotalCurrentValue()

	e.log.Info().Float64("total_current_value", total).Msg("Total current value across all portfolios")

	portfolios := e.CalculateTargetsWithTypeConstraints(tree, cfg, total, rules)
	return e.GenerateRebalancingPlan(portfolios)
}
