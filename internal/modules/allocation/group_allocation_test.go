package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
)

func TestCalculateSectorAllocation_MergesSectorsByName(t *testing.T) {
	portfolios := []*domain.Portfolio{
		{
			Name:         "A",
			CurrentValue: 600,
			Sectors: []*domain.Sector{
				{Name: "Tech", CurrentValue: 400, TargetValue: 300},
				{Name: "Energy", CurrentValue: 200, TargetValue: 200},
			},
		},
		{
			Name:         "B",
			CurrentValue: 400,
			Sectors: []*domain.Sector{
				{Name: "Tech", CurrentValue: 400, TargetValue: 300},
				{Name: domain.MissingPositionsSector, TargetValue: 200, IsPlaceholder: true},
			},
		},
	}

	result := CalculateSectorAllocation(portfolios)
	require.Len(t, result, 3)

	// Sorted by name
	assert.Equal(t, "Energy", result[0].Name)
	assert.Equal(t, domain.MissingPositionsSector, result[1].Name)
	assert.Equal(t, "Tech", result[2].Name)

	tech := result[2]
	assert.Equal(t, 800.0, tech.CurrentValue)
	assert.Equal(t, 600.0, tech.TargetValue)
	assert.Equal(t, 80.0, tech.CurrentPct)
	assert.Equal(t, 60.0, tech.TargetPct)
	assert.Equal(t, 20.0, tech.Deviation)

	missing := result[1]
	assert.Zero(t, missing.CurrentPct)
	assert.Equal(t, 20.0, missing.TargetPct)
	assert.Equal(t, -20.0, missing.Deviation)
}

func TestCalculateSectorAllocation_ZeroTotals(t *testing.T) {
	portfolios := []*domain.Portfolio{
		{Name: "A", Sectors: []*domain.Sector{{Name: "Tech"}}},
	}

	result := CalculateSectorAllocation(portfolios)
	require.Len(t, result, 1)
	assert.Zero(t, result[0].CurrentPct)
	assert.Zero(t, result[0].TargetPct)
	assert.Zero(t, result[0].Deviation)
}

func TestRound(t *testing.T) {
	tests := []struct {
		val      float64
		decimals int
		expected float64
	}{
		{1.23456, 2, 1.23},
		{1.235, 1, 1.2},
		{-0.456, 2, -0.46},
		{100, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, round(tt.val, tt.decimals))
	}
}
