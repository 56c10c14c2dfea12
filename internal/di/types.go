// Package di provides dependency injection wiring and initialization.
package di

import (
	"errors"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/modules/allocation"
	"github.com/aristath/allocator/internal/modules/portfolio"
	"github.com/aristath/allocator/internal/modules/rebalancing"
	"github.com/aristath/allocator/internal/plancache"
	"github.com/aristath/allocator/internal/reliability"
	"github.com/aristath/allocator/internal/scheduler"
)

// Container holds all application dependencies.
// It is created by Wire and is the single source of truth for service instances.
type Container struct {
	// Databases
	PortfolioDB *database.DB
	CacheDB     *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	HoldingRepo    *portfolio.HoldingRepository
	AllocationRepo *allocation.Repository

	// Services
	PlanCache          *plancache.Cache
	AllocationEngine   *allocation.Engine
	AllocationService  *allocation.Service
	PortfolioService   *portfolio.Service
	RebalancingService *rebalancing.Service
	BackupService      *reliability.BackupService

	Scheduler *scheduler.Scheduler
}

// Databases returns every open database keyed by name
func (c *Container) Databases() map[string]*database.DB {
	dbs := make(map[string]*database.DB, 2)
	if c.PortfolioDB != nil {
		dbs[database.NamePortfolio] = c.PortfolioDB
	}
	if c.CacheDB != nil {
		dbs[database.NameCache] = c.CacheDB
	}
	return dbs
}

// Close closes every open database
func (c *Container) Close() error {
	var errs []error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JobInstances holds the scheduled jobs for manual triggering
type JobInstances struct {
	PlanCacheCleanup scheduler.Job
	WALCheckpoint    scheduler.Job
	DatabaseBackup   scheduler.Job
	DailyMaintenance scheduler.Job
}
