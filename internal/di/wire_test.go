package di

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/portfolio"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:        t.TempDir(),
		PlanCacheTTL:   time.Minute,
		DefaultRules:   domain.DefaultAllocationRules(),
		BackupSchedule: "0 0 2 * * *",
		BackupMaxFiles: 3,
	}
}

func TestWire(t *testing.T) {
	cfg := newTestConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	require.NotNil(t, jobs)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.EventBus)
	assert.NotNil(t, container.AllocationService)
	assert.NotNil(t, container.PortfolioService)
	assert.NotNil(t, container.RebalancingService)
	assert.NotNil(t, container.BackupService)
	assert.NotNil(t, container.Scheduler)

	assert.Len(t, container.Scheduler.Status(), 4)
}

func TestWire_HoldingWriteInvalidatesPlan(t *testing.T) {
	cfg := newTestConfig(t)

	container, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	first, err := container.AllocationService.GetPlan(1)
	require.NoError(t, err)
	cached, err := container.AllocationService.GetPlan(1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, cached.ID)

	shares, price := 2.0, 50.0
	_, err = container.PortfolioService.CreateHolding(1, &portfolio.Holding{
		PortfolioName: "Growth",
		PositionName:  "Apple Inc.",
		AssetClass:    domain.AssetClassStock,
		Shares:        &shares,
		Price:         &price,
	})
	require.NoError(t, err)

	fresh, err := container.AllocationService.GetPlan(1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fresh.ID)
	assert.InDelta(t, 100.0, fresh.Summary.TotalCurrentValue, 0.001)
}

func TestWire_InvalidBackupSchedule(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.BackupSchedule = "not a schedule"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
