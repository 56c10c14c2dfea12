// Package rebalancing distributes fresh cash across existing holdings.
package rebalancing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Mode selects how an investment amount is distributed
type Mode string

const (
	// ModeProportional allocates amount × target% to each targeted holding
	ModeProportional Mode = "proportional"
	// ModeTargetWeights buys only enough to close each holding's gap to target
	ModeTargetWeights Mode = "target_weights"
	// ModeEqualWeight splits the amount evenly across priced holdings
	ModeEqualWeight Mode = "equal_weight"
)

// ErrUnknownMode is returned for an unsupported deployment mode
var ErrUnknownMode = errors.New("unknown allocation mode")

// Holding is one current holding as seen by the deployment calculator
type Holding struct {
	ID            string              `json:"id" yaml:"id"`
	PortfolioName string              `json:"portfolio_name,omitempty" yaml:"portfolio_name"`
	Name          string              `json:"name" yaml:"name"`
	Identifier    string              `json:"identifier,omitempty" yaml:"identifier"`
	Price         decimal.NullDecimal `json:"price" yaml:"price"`
	CurrentValue  decimal.Decimal     `json:"current_value" yaml:"current_value"`
}

// Recommendation is a suggested purchase
type Recommendation struct {
	HoldingID    string          `json:"holding_id"`
	CompanyName  string          `json:"company_name"`
	Identifier   string          `json:"identifier"`
	CurrentValue decimal.Decimal `json:"current_value"`
	TargetValue  decimal.Decimal `json:"target_value"`
	AmountToBuy  decimal.Decimal `json:"amount_to_buy"`
	SharesToBuy  decimal.Decimal `json:"shares_to_buy"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

var hundred = decimal.NewFromInt(100)

// Calculator computes cash deployment recommendations. It performs no I/O.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a new deployment calculator
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log: log.With().Str("component", "deployment_calculator").Logger(),
	}
}

// Calculate distributes amount across holdings according to mode.
// targets maps holding ID to target percentage and is ignored in equal-weight mode.
// Holdings without a positive price are left out of every mode's output.
func (c *Calculator) Calculate(
	holdings []Holding,
	targets map[string]float64,
	amount decimal.Decimal,
	mode Mode,
) ([]Recommendation, error) {
	c.log.Info().
		Str("mode", string(mode)).
		Str("amount", amount.String()).
		Int("holdings", len(holdings)).
		Msg("Calculating cash deployment")

	switch mode {
	case ModeProportional:
		return c.proportional(holdings, targets, amount), nil
	case ModeTargetWeights:
		return c.targetWeights(holdings, targets, amount), nil
	case ModeEqualWeight:
		return c.equalWeight(holdings, amount), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
}

func (c *Calculator) proportional(holdings []Holding, targets map[string]float64, amount decimal.Decimal) []Recommendation {
	byID := indexHoldings(holdings)
	recommendations := []Recommendation{}

	for _, id := range sortedTargetIDs(targets) {
		h, ok := byID[id]
		if !ok || !hasPrice(h) {
			continue
		}

		allocated := amount.Mul(percent(targets[id]))
		recommendations = append(recommendations, Recommendation{
			HoldingID:    h.ID,
			CompanyName:  h.Name,
			Identifier:   h.Identifier,
			CurrentValue: h.CurrentValue,
			TargetValue:  allocated,
			AmountToBuy:  allocated,
			SharesToBuy:  allocated.Div(h.Price.Decimal),
			CurrentPrice: h.Price.Decimal,
		})
	}

	return recommendations
}

// targetWeights closes each holding's gap to newTotal × target%. When the gaps
// add up to more than amount (some holdings sit above target), every gap is
// scaled down pro rata so the total purchase equals amount.
func (c *Calculator) targetWeights(holdings []Holding, targets map[string]float64, amount decimal.Decimal) []Recommendation {
	byID := indexHoldings(holdings)

	currentTotal := decimal.Zero
	for _, h := range holdings {
		currentTotal = currentTotal.Add(h.CurrentValue)
	}
	newTotal := currentTotal.Add(amount)

	recommendations := []Recommendation{}
	totalGap := decimal.Zero

	for _, id := range sortedTargetIDs(targets) {
		h, ok := byID[id]
		if !ok || !hasPrice(h) {
			continue
		}

		targetValue := newTotal.Mul(percent(targets[id]))
		gap := decimal.Max(decimal.Zero, targetValue.Sub(h.CurrentValue))
		if !gap.IsPositive() {
			continue
		}

		totalGap = totalGap.Add(gap)
		recommendations = append(recommendations, Recommendation{
			HoldingID:    h.ID,
			CompanyName:  h.Name,
			Identifier:   h.Identifier,
			CurrentValue: h.CurrentValue,
			TargetValue:  targetValue,
			AmountToBuy:  gap,
			CurrentPrice: h.Price.Decimal,
		})
	}

	scale := totalGap.GreaterThan(amount) && amount.IsPositive()
	if scale {
		c.log.Debug().
			Str("total_gap", totalGap.String()).
			Str("amount", amount.String()).
			Msg("Gaps exceed investment amount, scaling purchases")
	}

	for i := range recommendations {
		rec := &recommendations[i]
		if scale {
			rec.AmountToBuy = rec.AmountToBuy.Mul(amount).Div(totalGap)
		}
		rec.SharesToBuy = rec.AmountToBuy.Div(rec.CurrentPrice)
	}

	return recommendations
}

func (c *Calculator) equalWeight(holdings []Holding, amount decimal.Decimal) []Recommendation {
	var priced []Holding
	for _, h := range holdings {
		if hasPrice(h) {
			priced = append(priced, h)
		}
	}

	recommendations := []Recommendation{}
	if len(priced) == 0 {
		return recommendations
	}

	share := amount.Div(decimal.NewFromInt(int64(len(priced))))
	for _, h := range priced {
		recommendations = append(recommendations, Recommendation{
			HoldingID:    h.ID,
			CompanyName:  h.Name,
			Identifier:   h.Identifier,
			CurrentValue: h.CurrentValue,
			TargetValue:  h.CurrentValue.Add(share),
			AmountToBuy:  share,
			SharesToBuy:  share.Div(h.Price.Decimal),
			CurrentPrice: h.Price.Decimal,
		})
	}

	return recommendations
}

func hasPrice(h Holding) bool {
	return h.Price.Valid && h.Price.Decimal.IsPositive()
}

func percent(pct float64) decimal.Decimal {
	return decimal.NewFromFloat(pct).Div(hundred)
}

func indexHoldings(holdings []Holding) map[string]Holding {
	byID := make(map[string]Holding, len(holdings))
	for _, h := range holdings {
		if _, exists := byID[h.ID]; !exists {
			byID[h.ID] = h
		}
	}
	return byID
}

func sortedTargetIDs(targets map[string]float64) []string {
	ids := make([]string, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TotalAmount sums AmountToBuy across recommendations
func TotalAmount(recommendations []Recommendation) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range recommendations {
		total = total.Add(rec.AmountToBuy)
	}
	return total
}
