package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/plancache"
	"github.com/aristath/allocator/internal/reliability"
	"github.com/aristath/allocator/internal/scheduler"
)

// Job schedules (cron with seconds field)
const (
	PlanCacheCleanupSchedule = "0 */5 * * * *"
	WALCheckpointSchedule    = "@hourly"
	DailyMaintenanceSchedule = "0 30 3 * * *"
)

const backupJobTimeout = 10 * time.Minute

// RegisterJobs creates the background jobs and registers them with a new scheduler.
// The scheduler is stored on the container but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{
		PlanCacheCleanup: plancache.NewCleanupJob(container.PlanCache, log),
		WALCheckpoint:    scheduler.NewWALCheckpointJob(container.Databases(), log),
		DatabaseBackup:   reliability.NewBackupJob(container.BackupService, backupJobTimeout),
		DailyMaintenance: reliability.NewDailyMaintenanceJob(
			container.Databases(),
			container.BackupService,
			cfg.DataDir,
			log,
		),
	}

	registrations := []struct {
		schedule string
		job      scheduler.Job
	}{
		{PlanCacheCleanupSchedule, instances.PlanCacheCleanup},
		{WALCheckpointSchedule, instances.WALCheckpoint},
		{cfg.BackupSchedule, instances.DatabaseBackup},
		{DailyMaintenanceSchedule, instances.DailyMaintenance},
	}
	for _, reg := range registrations {
		if err := sched.AddJob(reg.schedule, reg.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", reg.job.Name(), err)
		}
	}

	container.Scheduler = sched
	log.Info().Int("jobs", len(registrations)).Msg("Jobs registered")
	return instances, nil
}
