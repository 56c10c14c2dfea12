package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/modules/allocation"
	"github.com/aristath/allocator/internal/modules/portfolio"
	"github.com/aristath/allocator/internal/modules/rebalancing"
	"github.com/aristath/allocator/internal/plancache"
	"github.com/aristath/allocator/internal/reliability"
)

// InitializeServices creates repositories and services on top of open databases.
// Order matters: the portfolio service invalidates plans through the allocation
// service, and the rebalancing service reads plans from it.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Repositories
	container.HoldingRepo = portfolio.NewHoldingRepository(container.PortfolioDB.Conn(), log)
	container.AllocationRepo = allocation.NewRepository(container.PortfolioDB.Conn(), log)

	// Backups run before every target or rule write
	container.BackupService = reliability.NewBackupService(
		container.Databases(),
		cfg.BackupDir(),
		cfg.BackupMaxFiles,
		log,
	)
	container.BackupService.SetEventManager(container.EventManager)
	if cfg.BackupS3.Enabled() {
		uploader, err := reliability.NewS3Uploader(ctx, cfg.BackupS3, log)
		if err != nil {
			return fmt.Errorf("failed to create S3 uploader: %w", err)
		}
		container.BackupService.SetUploader(uploader)
		log.Info().Str("bucket", cfg.BackupS3.Bucket).Msg("Off-site backup upload enabled")
	}

	// Allocation
	container.PlanCache = plancache.New(container.CacheDB.Conn(), cfg.PlanCacheTTL, log)
	container.AllocationEngine = allocation.NewEngine(log)
	container.AllocationService = allocation.NewService(
		container.AllocationEngine,
		container.AllocationRepo,
		container.HoldingRepo,
		container.PlanCache,
		container.EventManager,
		cfg.DefaultRules,
		log,
	)
	container.AllocationService.SetBackupper(container.BackupService)

	// Holdings
	container.PortfolioService = portfolio.NewService(
		container.HoldingRepo,
		container.AllocationService,
		container.EventManager,
		log,
	)

	// Cash deployment
	container.RebalancingService = rebalancing.NewService(
		rebalancing.NewCalculator(log),
		container.HoldingRepo,
		container.AllocationService,
		container.EventManager,
		log,
	)

	log.Info().Msg("Services initialized")
	return nil
}
