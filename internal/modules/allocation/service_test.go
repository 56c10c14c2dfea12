package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/plancache"
	testingpkg "github.com/aristath/allocator/internal/testing"
)

type stubHoldings struct {
	rows  []domain.HoldingRow
	calls int
}

func (s *stubHoldings) GetHoldingRows(accountID int64) ([]domain.HoldingRow, error) {
	s.calls++
	return s.rows, nil
}

type stubBackupper struct {
	calls int
	err   error
}

func (s *stubBackupper) Backup(ctx context.Context) ([]string, error) {
	s.calls++
	return nil, s.err
}

type serviceFixture struct {
	service  *Service
	holdings *stubHoldings
	received map[events.EventType]int
}

func newTestService(t *testing.T) *serviceFixture {
	t.Helper()
	log := testingpkg.NewTestLogger()

	portfolioDB, cleanupPortfolio := testingpkg.NewTestDB(t, database.NamePortfolio)
	t.Cleanup(cleanupPortfolio)
	cacheDB, cleanupCache := testingpkg.NewTestDB(t, database.NameCache)
	t.Cleanup(cleanupCache)

	bus := events.NewBus(log)
	received := make(map[events.EventType]int)
	for _, et := range events.AllEventTypes {
		et := et
		bus.Subscribe(et, func(e *events.Event) { received[e.Type]++ })
	}

	holdings := &stubHoldings{rows: testingpkg.NewHoldingRowFixtures()}
	service := NewService(
		NewEngine(log),
		NewRepository(portfolioDB.Conn(), log),
		holdings,
		plancache.New(cacheDB.Conn(), plancache.DefaultTTL, log),
		events.NewManager(bus, log),
		domain.DefaultAllocationRules(),
		log,
	)

	return &serviceFixture{service: service, holdings: holdings, received: received}
}

func TestService_GetPlan_ServesCachedPlan(t *testing.T) {
	f := newTestService(t)
	require.NoError(t, f.service.SaveTargetConfig(context.Background(), 1, testingpkg.NewTargetConfigFixture()))

	first, err := f.service.GetPlan(1)
	require.NoError(t, err)
	second, err := f.service.GetPlan(1)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.holdings.calls)
	assert.Equal(t, 1, f.received[events.PlanCalculated])
	assert.InDelta(t, 15000.0, second.Summary.TotalCurrentValue, 1e-9)
	require.Len(t, second.Portfolios, 2)
	assert.Equal(t, domain.ConstraintAllCapped, second.Portfolios[0].ConstraintStatus.Outcome)
}

func TestService_SaveTargetConfig_InvalidatesPlan(t *testing.T) {
	f := newTestService(t)
	ctx := context.Background()
	backupper := &stubBackupper{}
	f.service.SetBackupper(backupper)

	require.NoError(t, f.service.SaveTargetConfig(ctx, 1, testingpkg.NewTargetConfigFixture()))
	first, err := f.service.GetPlan(1)
	require.NoError(t, err)

	cfg := testingpkg.NewTargetConfigFixture()
	cfg[0].Allocation = 50
	cfg[1].Allocation = 50
	require.NoError(t, f.service.SaveTargetConfig(ctx, 1, cfg))

	second, err := f.service.GetPlan(1)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.holdings.calls)
	assert.Equal(t, 2, backupper.calls)
	assert.InDelta(t, 7500.0, second.Portfolios[0].TargetValue, 1e-9)
	assert.Equal(t, 2, f.received[events.AllocationTargetsChanged])
	assert.Equal(t, 2, f.received[events.CacheInvalidated])

	stored, err := f.service.GetTargetConfig(1)
	require.NoError(t, err)
	assert.Equal(t, cfg, stored)
}

func TestService_SaveTargetConfig_RejectsInvalid(t *testing.T) {
	f := newTestService(t)
	backupper := &stubBackupper{}
	f.service.SetBackupper(backupper)

	cfg := domain.TargetAllocationConfig{{Name: "A", Allocation: -5}}
	err := f.service.SaveTargetConfig(context.Background(), 1, cfg)
	assert.ErrorIs(t, err, ErrInvalidTargetConfig)
	assert.Equal(t, 0, backupper.calls)

	stored, err := f.service.GetTargetConfig(1)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestService_BackupFailureIsNotFatal(t *testing.T) {
	f := newTestService(t)
	f.service.SetBackupper(&stubBackupper{err: errors.New("disk full")})

	err := f.service.SaveRules(context.Background(), 1, domain.AllocationRules{MaxPerStock: 10, MaxPerETF: 20, MaxPerCrypto: 1})
	require.NoError(t, err)

	rules, err := f.service.GetRules(1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rules.MaxPerStock)
}

func TestService_Rules(t *testing.T) {
	f := newTestService(t)
	ctx := context.Background()

	rules, err := f.service.GetRules(3)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAllocationRules(), rules)

	custom := domain.AllocationRules{MaxPerStock: 50, MaxPerETF: 60, MaxPerCrypto: 70}
	require.NoError(t, f.service.SaveRules(ctx, 3, custom))

	rules, err = f.service.GetRules(3)
	require.NoError(t, err)
	assert.Equal(t, custom, rules)

	// Other accounts keep the defaults
	rules, err = f.service.GetRules(4)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAllocationRules(), rules)

	require.NoError(t, f.service.ResetRules(3))
	rules, err = f.service.GetRules(3)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAllocationRules(), rules)

	err = f.service.SaveRules(ctx, 3, domain.AllocationRules{MaxPerStock: 150})
	assert.ErrorIs(t, err, ErrInvalidRules)
	assert.Equal(t, 2, f.received[events.AllocationRulesChanged])
}

func TestService_SaveRules_AppliesToPlan(t *testing.T) {
	f := newTestService(t)
	ctx := context.Background()
	require.NoError(t, f.service.SaveTargetConfig(ctx, 1, testingpkg.NewTargetConfigFixture()))
	require.NoError(t, f.service.SaveRules(ctx, 1, domain.AllocationRules{MaxPerStock: 100, MaxPerETF: 100, MaxPerCrypto: 100}))

	plan, err := f.service.GetPlan(1)
	require.NoError(t, err)

	growth := plan.Portfolios[0]
	assert.Equal(t, domain.ConstraintConverged, growth.ConstraintStatus.Outcome)
	assert.Equal(t, 0, plan.Summary.CappedPositions)
	assert.InDelta(t, 4500.0, growth.Sectors[0].Positions[0].TargetValue, 1e-9)
}
