package testing

import (
	"github.com/aristath/allocator/internal/domain"
)

// NewHoldingRowFixtures returns a two-portfolio holdings snapshot.
//
// Growth holds 10,000 across Technology and Uncategorized; Income holds 5,000
// in one ETF and one position without an asset class.
func NewHoldingRowFixtures() []domain.HoldingRow {
	return []domain.HoldingRow{
		{
			PortfolioName: "Growth",
			PortfolioID:   "p-1",
			Sector:        StrPtr("Technology"),
			PositionName:  "Apple Inc.",
			Identifier:    StrPtr("US0378331005"),
			AssetClass:    domain.AssetClassStock,
			CurrentValue:  6000,
		},
		{
			PortfolioName: "Growth",
			PortfolioID:   "p-1",
			Sector:        StrPtr("Technology"),
			PositionName:  "Microsoft Corporation",
			Identifier:    StrPtr("US5949181045"),
			AssetClass:    domain.AssetClassStock,
			CurrentValue:  3000,
		},
		{
			PortfolioName: "Growth",
			PortfolioID:   "p-1",
			PositionName:  "Bitcoin",
			Identifier:    StrPtr("BTC"),
			AssetClass:    domain.AssetClassCrypto,
			CurrentValue:  1000,
		},
		{
			PortfolioName: "Income",
			PortfolioID:   "p-2",
			Sector:        StrPtr("Broad Market"),
			PositionName:  "Vanguard FTSE All-World",
			Identifier:    StrPtr("IE00B3RBWM25"),
			AssetClass:    domain.AssetClassETF,
			CurrentValue:  4000,
		},
		{
			PortfolioName: "Income",
			PortfolioID:   "p-2",
			Sector:        StrPtr("Broad Market"),
			PositionName:  "Unclassified Fund",
			Identifier:    StrPtr("XX0000000000"),
			CurrentValue:  1000,
		},
	}
}

// NewTargetConfigFixture returns a builder configuration matching NewHoldingRowFixtures
func NewTargetConfigFixture() domain.TargetAllocationConfig {
	return domain.TargetAllocationConfig{
		{
			Name:         "Growth",
			Allocation:   60,
			MinPositions: 3,
			Positions: []domain.TargetPosition{
				{CompanyName: "Apple Inc.", Weight: FloatPtr(50)},
				{CompanyName: "Microsoft Corporation", Weight: FloatPtr(30)},
				{CompanyName: "Bitcoin", Weight: FloatPtr(20)},
			},
		},
		{
			Name:             "Income",
			Allocation:       40,
			MinPositions:     2,
			DesiredPositions: IntPtr(4),
			Positions: []domain.TargetPosition{
				{CompanyName: "Vanguard FTSE All-World", Weight: FloatPtr(60)},
				{IsPlaceholder: true, Weight: FloatPtr(20)},
			},
		},
	}
}
