package allocation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
	testingpkg "github.com/aristath/allocator/internal/testing"
)

func newTestEngine() *Engine {
	return NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
}

func stock(name string, target float64) *domain.Position {
	return &domain.Position{
		Name:        name,
		Identifier:  testingpkg.StrPtr(name),
		AssetClass:  domain.AssetClassStock,
		TargetValue: target,
	}
}

func withClass(pos *domain.Position, class domain.AssetClass) *domain.Position {
	pos.AssetClass = class
	return pos
}

func sumConstrainedValues(positions []*domain.Position) float64 {
	total := 0.0
	for _, pos := range positions {
		total += pos.ConstrainedTargetValue
	}
	return total
}

func TestApplyTypeConstraints_CapAtBoundary(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 50, MaxPerETF: 50, MaxPerCrypto: 50}

	positions := []*domain.Position{stock("First", 9000), stock("Second", 1000)}

	status := engine.ApplyTypeConstraints(positions, 10000, rules, "Test")

	assert.Equal(t, domain.ConstraintConverged, status.Outcome)
	assert.True(t, status.Converged)
	assert.Equal(t, 2, status.Iterations)

	assert.True(t, positions[0].IsCapped)
	assert.Equal(t, domain.CapReasonMaxPerStock, positions[0].CapReason)
	assert.Equal(t, 5000.0, positions[0].ConstrainedTargetValue)
	assert.Equal(t, 9000.0, positions[0].UnconstrainedTargetValue)

	// Exactly at the cap is not above it
	assert.False(t, positions[1].IsCapped)
	assert.InDelta(t, 5000.0, positions[1].ConstrainedTargetValue, 1e-9)
	assert.Equal(t, 1000.0, positions[1].UnconstrainedTargetValue)

	assert.InDelta(t, 10000.0, sumConstrainedValues(positions), 1e-9)
}

func TestApplyTypeConstraints_ZeroPortfolioValue(t *testing.T) {
	engine := newTestEngine()

	for _, target := range []float64{0, -100} {
		positions := []*domain.Position{
			stock("A", 100),
			withClass(stock("B", 50), domain.AssetClassETF),
		}

		status := engine.ApplyTypeConstraints(positions, target, domain.DefaultAllocationRules(), "Empty")

		assert.Equal(t, domain.ConstraintZeroPortfolioValue, status.Outcome)
		assert.False(t, status.Converged)
		assert.Zero(t, status.Iterations)
		for _, pos := range positions {
			assert.True(t, pos.IsCapped)
			assert.Zero(t, pos.ConstrainedTargetValue)
			assert.Equal(t, domain.CapReasonZeroPortfolioValue, pos.CapReason)
		}
	}
}

func TestApplyTypeConstraints_NoCapsBind(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 60, MaxPerETF: 60, MaxPerCrypto: 60}

	positions := []*domain.Position{
		stock("A", 4000),
		withClass(stock("B", 3500), domain.AssetClassETF),
		withClass(stock("C", 2500), domain.AssetClassCrypto),
	}

	status := engine.ApplyTypeConstraints(positions, 10000, rules, "Balanced")

	assert.Equal(t, domain.ConstraintConverged, status.Outcome)
	assert.Equal(t, 1, status.Iterations)
	for _, pos := range positions {
		assert.False(t, pos.IsCapped)
		assert.Equal(t, pos.UnconstrainedTargetValue, pos.ConstrainedTargetValue)
		assert.True(t, pos.Constrained)
	}
	assert.InDelta(t, 10000.0, sumConstrainedValues(positions), 1e-9)
}

func TestApplyTypeConstraints_CascadingCaps(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 20, MaxPerETF: 20, MaxPerCrypto: 20}
	ptv := 10000.0

	positions := []*domain.Position{
		stock("A", 5000),
		stock("B", 3000),
		stock("C", 1000),
		stock("D", 500),
		stock("E", 500),
	}

	status := engine.ApplyTypeConstraints(positions, ptv, rules, "Cascade")

	require.True(t, status.Converged)
	assert.LessOrEqual(t, status.Iterations, len(positions)+1)

	capValue := rules.MaxPerStock / 100 * ptv
	for _, pos := range positions {
		assert.LessOrEqual(t, pos.ConstrainedTargetValue, capValue+1e-9, pos.Name)
		assert.GreaterOrEqual(t, pos.ConstrainedTargetValue, 0.0, pos.Name)
		if pos.IsCapped {
			// Capped positions sit exactly on the cap
			assert.Equal(t, capValue, pos.ConstrainedTargetValue, pos.Name)
			assert.Equal(t, domain.CapReasonMaxPerStock, pos.CapReason)
		}
	}
	assert.InDelta(t, ptv, sumConstrainedValues(positions), 1e-6)
	assert.True(t, positions[0].IsCapped)
	assert.True(t, positions[1].IsCapped)
	assert.True(t, positions[2].IsCapped)
}

func TestApplyTypeConstraints_RedistributesByOriginalWeight(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 40, MaxPerETF: 40, MaxPerCrypto: 40}

	positions := []*domain.Position{
		stock("Big", 7000),
		stock("Medium", 2000),
		stock("Small", 1000),
	}

	status := engine.ApplyTypeConstraints(positions, 10000, rules, "Proportional")

	require.Equal(t, domain.ConstraintConverged, status.Outcome)
	assert.Equal(t, 4000.0, positions[0].ConstrainedTargetValue)
	// 6000 left, split 2:1
	assert.InDelta(t, 4000.0, positions[1].ConstrainedTargetValue, 1e-9)
	assert.InDelta(t, 2000.0, positions[2].ConstrainedTargetValue, 1e-9)
}

func TestApplyTypeConstraints_EqualSplitWhenOriginalWeightsZero(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 50, MaxPerETF: 50, MaxPerCrypto: 50}

	positions := []*domain.Position{
		stock("Heavy", 8000),
		stock("ZeroA", 0),
		stock("ZeroB", 0),
	}

	status := engine.ApplyTypeConstraints(positions, 10000, rules, "Zeros")

	require.Equal(t, domain.ConstraintConverged, status.Outcome)
	assert.Equal(t, 5000.0, positions[0].ConstrainedTargetValue)
	assert.InDelta(t, 2500.0, positions[1].ConstrainedTargetValue, 1e-9)
	assert.InDelta(t, 2500.0, positions[2].ConstrainedTargetValue, 1e-9)
}

func TestApplyTypeConstraints_UnknownAssetClass(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 100, MaxPerETF: 100, MaxPerCrypto: 100}

	positions := []*domain.Position{
		stock("Known", 6000),
		withClass(stock("Bond", 4000), domain.AssetClass("Bond")),
	}

	status := engine.ApplyTypeConstraints(positions, 10000, rules, "Mixed")

	assert.True(t, status.Converged)
	assert.True(t, positions[1].IsCapped)
	assert.Zero(t, positions[1].ConstrainedTargetValue)
	assert.Equal(t, domain.CapReasonUnknownType, positions[1].CapReason)
	// Freed capacity goes to the remaining position
	assert.InDelta(t, 10000.0, positions[0].ConstrainedTargetValue, 1e-9)
}

func TestApplyTypeConstraints_CappedValuesNeverMove(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 30, MaxPerETF: 30, MaxPerCrypto: 30}

	positions := []*domain.Position{
		stock("A", 5000),
		stock("B", 2800),
		stock("C", 1200),
		stock("D", 1000),
	}

	status := engine.ApplyTypeConstraints(positions, 10000, rules, "Monotonic")

	// A is capped in the first pass, B only after redistribution in the second
	require.Equal(t, domain.ConstraintConverged, status.Outcome)
	assert.Equal(t, 3, status.Iterations)

	assert.True(t, positions[0].IsCapped)
	assert.InDelta(t, 3000.0, positions[0].ConstrainedTargetValue, 1e-9)
	assert.Equal(t, 5000.0, positions[0].UnconstrainedTargetValue)
	assert.True(t, positions[1].IsCapped)
	assert.InDelta(t, 3000.0, positions[1].ConstrainedTargetValue, 1e-9)

	assert.InDelta(t, 4000.0*1200/2200, positions[2].ConstrainedTargetValue, 1e-9)
	assert.InDelta(t, 4000.0*1000/2200, positions[3].ConstrainedTargetValue, 1e-9)
	assert.InDelta(t, 10000.0, sumConstrainedValues(positions), 1e-6)
}

func TestRedistribute_LeavesCappedPositionsAlone(t *testing.T) {
	capped := stock("Capped", 5000)
	capped.UnconstrainedTargetValue = 5000
	capped.ConstrainedTargetValue = 3000
	capped.IsCapped = true

	open := stock("Open", 2000)
	open.UnconstrainedTargetValue = 2000
	open.ConstrainedTargetValue = 2000

	positions := []*domain.Position{capped, open}
	for i := 0; i < 3; i++ {
		redistribute(positions, 10000)
		assert.Equal(t, 3000.0, capped.ConstrainedTargetValue)
		assert.InDelta(t, 7000.0, open.ConstrainedTargetValue, 1e-9)
	}
}

func TestApplyTypeConstraints_NoCapacity(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 60, MaxPerETF: 60, MaxPerCrypto: 60}

	// Weights over 100% let capped positions claim more than the portfolio holds
	positions := []*domain.Position{
		stock("A", 8000),
		stock("B", 8000),
		stock("C", 1000),
	}

	status := engine.ApplyTypeConstraints(positions, 10000, rules, "Overweight")

	assert.Equal(t, domain.ConstraintNoCapacity, status.Outcome)
	assert.False(t, status.Converged)
	assert.Equal(t, 2, status.Iterations)
	assert.Equal(t, 6000.0, positions[0].ConstrainedTargetValue)
	assert.Equal(t, 6000.0, positions[1].ConstrainedTargetValue)
	assert.False(t, positions[2].IsCapped)
	assert.Equal(t, 1000.0, positions[2].ConstrainedTargetValue)
}

func TestApplyTypeConstraints_AllCapped(t *testing.T) {
	engine := newTestEngine()

	positions := []*domain.Position{
		stock("A", 5000),
		withClass(stock("B", 5000), domain.AssetClassCrypto),
	}

	status := engine.ApplyTypeConstraints(positions, 10000, domain.DefaultAllocationRules(), "Tight")

	assert.Equal(t, domain.ConstraintAllCapped, status.Outcome)
	assert.True(t, status.Converged)
	assert.Equal(t, 2, status.Iterations)
	assert.Equal(t, 200.0, positions[0].ConstrainedTargetValue)
	assert.Equal(t, 500.0, positions[1].ConstrainedTargetValue)
	assert.Equal(t, domain.CapReasonMaxPerCrypto, positions[1].CapReason)
}

func TestApplyTypeConstraints_Idempotent(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 30, MaxPerETF: 30, MaxPerCrypto: 30}

	positions := []*domain.Position{
		stock("A", 6000),
		stock("B", 2500),
		stock("C", 1500),
	}
	first := engine.ApplyTypeConstraints(positions, 10000, rules, "Once")
	require.True(t, first.Converged)

	rerun := make([]*domain.Position, len(positions))
	for i, pos := range positions {
		rerun[i] = stock(pos.Name, pos.ConstrainedTargetValue)
	}
	second := engine.ApplyTypeConstraints(rerun, 10000, rules, "Twice")
	require.True(t, second.Converged)

	for i := range positions {
		assert.InDelta(t, positions[i].ConstrainedTargetValue, rerun[i].ConstrainedTargetValue, 1e-9, positions[i].Name)
	}
}

func TestCalculateTargetsWithTypeConstraints_SkipsNullAssetClass(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 50, MaxPerETF: 50, MaxPerCrypto: 50}

	rows := []domain.HoldingRow{
		{PortfolioName: "Core", PositionName: "Stock Co", Identifier: testingpkg.StrPtr("S1"), AssetClass: domain.AssetClassStock, CurrentValue: 1000},
		{PortfolioName: "Core", PositionName: "Index ETF", Identifier: testingpkg.StrPtr("E1"), AssetClass: domain.AssetClassETF, CurrentValue: 1000},
		{PortfolioName: "Core", PositionName: "Mystery", Identifier: testingpkg.StrPtr("M1"), CurrentValue: 1000},
	}
	cfg := domain.TargetAllocationConfig{
		{
			Name:       "Core",
			Allocation: 100,
			Positions: []domain.TargetPosition{
				{CompanyName: "Stock Co", Weight: testingpkg.FloatPtr(40)},
				{CompanyName: "Index ETF", Weight: testingpkg.FloatPtr(30)},
				{CompanyName: "Mystery", Weight: testingpkg.FloatPtr(30)},
			},
		},
	}

	tree := engine.BuildPositionTree(rows, cfg, rules)
	portfolios := engine.CalculateTargetsWithTypeConstraints(tree, cfg, tree.TotalCurrentValue(), rules)

	require.Len(t, portfolios, 1)
	core := portfolios[0]
	assert.Equal(t, 1, core.SkippedPositions)
	assert.Equal(t, domain.ConstraintConverged, core.ConstraintStatus.Outcome)

	positions := core.Sectors[0].Positions
	require.Len(t, positions, 3)

	assert.InDelta(t, 1200.0, positions[0].TargetValue, 1e-9)
	assert.InDelta(t, 900.0, positions[1].TargetValue, 1e-9)

	mystery := positions[2]
	assert.False(t, mystery.Constrained)
	assert.False(t, mystery.IsCapped)
	assert.Zero(t, mystery.ConstrainedTargetValue)
	assert.Equal(t, domain.CapReasonNone, mystery.CapReason)

	// The skipped position consumed no capacity
	assert.InDelta(t, 2100.0, positions[0].ConstrainedTargetValue+positions[1].ConstrainedTargetValue, 1e-9)
}

func TestCalculateTargetsWithTypeConstraints_RecomputesSectors(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 25, MaxPerETF: 50, MaxPerCrypto: 50}

	rows := []domain.HoldingRow{
		{PortfolioName: "P", Sector: testingpkg.StrPtr("Tech"), PositionName: "A", Identifier: testingpkg.StrPtr("A"), AssetClass: domain.AssetClassStock, CurrentValue: 500},
		{PortfolioName: "P", Sector: testingpkg.StrPtr("Funds"), PositionName: "F", Identifier: testingpkg.StrPtr("F"), AssetClass: domain.AssetClassETF, CurrentValue: 500},
	}
	cfg := domain.TargetAllocationConfig{
		{
			Name:       "P",
			Allocation: 100,
			Positions: []domain.TargetPosition{
				{CompanyName: "A", Weight: testingpkg.FloatPtr(70)},
				{CompanyName: "F", Weight: testingpkg.FloatPtr(30)},
			},
		},
	}

	tree := engine.BuildPositionTree(rows, cfg, rules)
	portfolios := engine.CalculateTargetsWithTypeConstraints(tree, cfg, tree.TotalCurrentValue(), rules)

	require.Len(t, portfolios, 1)
	sectors := portfolios[0].Sectors
	require.Len(t, sectors, 2)

	// A capped at 250, F receives the remaining 750 but is capped at 500
	assert.Equal(t, "Tech", sectors[0].Name)
	assert.InDelta(t, 250.0, sectors[0].TargetValue, 1e-9)
	assert.InDelta(t, 25.0, sectors[0].TargetWeight, 1e-9)
	assert.Equal(t, "Funds", sectors[1].Name)
	assert.InDelta(t, 500.0, sectors[1].TargetValue, 1e-9)
	assert.InDelta(t, 50.0, sectors[1].TargetWeight, 1e-9)
	assert.Equal(t, domain.ConstraintAllCapped, portfolios[0].ConstraintStatus.Outcome)
}

func TestCalculateTargetsWithTypeConstraints_ZeroWeightPortfolio(t *testing.T) {
	engine := newTestEngine()

	rows := []domain.HoldingRow{
		{PortfolioName: "Unconfigured", PositionName: "A", Identifier: testingpkg.StrPtr("A"), AssetClass: domain.AssetClassStock, CurrentValue: 500},
	}

	tree := engine.BuildPositionTree(rows, nil, domain.DefaultAllocationRules())
	portfolios := engine.CalculateTargetsWithTypeConstraints(tree, nil, tree.TotalCurrentValue(), domain.DefaultAllocationRules())

	require.Len(t, portfolios, 1)
	p := portfolios[0]
	assert.Zero(t, p.TargetWeight)
	assert.Zero(t, p.TargetValue)
	assert.Equal(t, domain.ConstraintZeroPortfolioValue, p.ConstraintStatus.Outcome)

	pos := p.Sectors[0].Positions[0]
	assert.True(t, pos.IsCapped)
	assert.Zero(t, pos.TargetValue)
	assert.Equal(t, domain.CapReasonZeroPortfolioValue, pos.CapReason)
	assert.Zero(t, p.Sectors[0].TargetWeight)
}

func TestCalculateTargetsWithTypeConstraints_CapsUnrecognisedAssetClass(t *testing.T) {
	engine := newTestEngine()
	rules := domain.AllocationRules{MaxPerStock: 100, MaxPerETF: 100, MaxPerCrypto: 100}

	rows := []domain.HoldingRow{
		{PortfolioName: "Core", PositionName: "Known", Identifier: testingpkg.StrPtr("K1"), AssetClass: domain.AssetClassStock, CurrentValue: 5000},
		{PortfolioName: "Core", PositionName: "Bond", Identifier: testingpkg.StrPtr("B1"), AssetClass: domain.AssetClass("Bond"), CurrentValue: 5000},
	}
	cfg := domain.TargetAllocationConfig{
		{
			Name:       "Core",
			Allocation: 100,
			Positions: []domain.TargetPosition{
				{CompanyName: "Known", Weight: testingpkg.FloatPtr(60)},
				{CompanyName: "Bond", Weight: testingpkg.FloatPtr(40)},
			},
		},
	}

	tree := engine.BuildPositionTree(rows, cfg, rules)
	portfolios := engine.CalculateTargetsWithTypeConstraints(tree, cfg, tree.TotalCurrentValue(), rules)

	require.Len(t, portfolios, 1)
	core := portfolios[0]
	assert.Zero(t, core.SkippedPositions)
	assert.True(t, core.ConstraintStatus.Converged)

	byName := map[string]*domain.Position{}
	for _, sector := range core.Sectors {
		for _, pos := range sector.Positions {
			byName[pos.Name] = pos
		}
	}
	require.Contains(t, byName, "Known")
	require.Contains(t, byName, "Bond")

	bond := byName["Bond"]
	assert.True(t, bond.Constrained)
	assert.True(t, bond.IsCapped)
	assert.Equal(t, domain.CapReasonUnknownType, bond.CapReason)
	assert.Zero(t, bond.TargetValue)
	assert.InDelta(t, 4000.0, bond.UnconstrainedTargetValue, 1e-9)

	// The freed share moves to the remaining position
	assert.InDelta(t, 10000.0, byName["Known"].TargetValue, 1e-9)
}
