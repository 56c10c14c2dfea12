// Package cli implements the offline allocate commands.
//
// Every command reads a YAML scenario file and runs the same engine and
// calculator the service uses, without touching a database.
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/allocation"
	"github.com/aristath/allocator/internal/modules/rebalancing"
)

// Scenario is the on-disk layout of a scenario file.
// Rules left out of the file take their default values.
type Scenario struct {
	Rules       map[string]float64            `yaml:"rules"`
	Config      domain.TargetAllocationConfig `yaml:"config"`
	Rows        []domain.HoldingRow           `yaml:"rows"`
	Holdings    []ScenarioHolding             `yaml:"holdings"`
	Targets     map[string]float64            `yaml:"targets"`
	Allocations map[string]float64            `yaml:"allocations"`
}

// ScenarioHolding is a priced holding for cash deployment
type ScenarioHolding struct {
	ID            string   `yaml:"id"`
	PortfolioName string   `yaml:"portfolio_name"`
	Name          string   `yaml:"name"`
	Identifier    string   `yaml:"identifier"`
	Price         *float64 `yaml:"price"`
	CurrentValue  float64  `yaml:"current_value"`
}

// LoadScenario reads and parses a scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	return &s, nil
}

// AllocationRules returns the scenario rules with defaults filled in
func (s *Scenario) AllocationRules() domain.AllocationRules {
	if s.Rules == nil {
		return domain.DefaultAllocationRules()
	}
	return allocation.RulesFromMap(s.Rules)
}

// DeploymentHoldings converts scenario holdings for the calculator.
// Holdings without an ID are numbered by position, starting at 1.
func (s *Scenario) DeploymentHoldings() []rebalancing.Holding {
	holdings := make([]rebalancing.Holding, 0, len(s.Holdings))
	for i, h := range s.Holdings {
		id := h.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}

		var price decimal.NullDecimal
		if h.Price != nil {
			price = decimal.NewNullDecimal(decimal.NewFromFloat(*h.Price))
		}

		holdings = append(holdings, rebalancing.Holding{
			ID:            id,
			PortfolioName: h.PortfolioName,
			Name:          h.Name,
			Identifier:    h.Identifier,
			Price:         price,
			CurrentValue:  decimal.NewFromFloat(h.CurrentValue),
		})
	}
	return holdings
}
