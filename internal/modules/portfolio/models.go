// Package portfolio stores account holdings and exposes them to the
// allocation engine and the cash deployment calculator.
package portfolio

import (
	"github.com/aristath/allocator/internal/domain"
)

// Holding is one stored holding of an account
type Holding struct {
	ID               int64             `json:"id" yaml:"id"`
	AccountID        int64             `json:"account_id" yaml:"account_id"`
	PortfolioName    string            `json:"portfolio_name" yaml:"portfolio_name"`
	PortfolioID      string            `json:"portfolio_id,omitempty" yaml:"portfolio_id"`
	Sector           *string           `json:"sector,omitempty" yaml:"sector"`
	PositionName     string            `json:"position_name" yaml:"position_name"`
	Identifier       *string           `json:"identifier,omitempty" yaml:"identifier"`
	AssetClass       domain.AssetClass `json:"asset_class,omitempty" yaml:"asset_class"`
	Shares           *float64          `json:"shares,omitempty" yaml:"shares"`
	OverrideShares   *float64          `json:"override_shares,omitempty" yaml:"override_shares"`
	Price            *float64          `json:"price,omitempty" yaml:"price"`
	IsCustomValue    bool              `json:"is_custom_value" yaml:"is_custom_value"`
	CustomTotalValue *float64          `json:"custom_total_value,omitempty" yaml:"custom_total_value"`
	CreatedAt        int64             `json:"created_at" yaml:"-"`
	UpdatedAt        int64             `json:"updated_at" yaml:"-"`
}

// EffectiveShares returns the override share count when set, else the share count
func (h *Holding) EffectiveShares() float64 {
	if h.OverrideShares != nil {
		return *h.OverrideShares
	}
	if h.Shares != nil {
		return *h.Shares
	}
	return 0
}

// CurrentValue is the custom total for custom-valued holdings, else effective
// shares times price. Missing inputs count as zero.
func (h *Holding) CurrentValue() float64 {
	if h.IsCustomValue {
		if h.CustomTotalValue != nil {
			return *h.CustomTotalValue
		}
		return 0
	}
	if h.Price == nil {
		return 0
	}
	return h.EffectiveShares() * *h.Price
}
