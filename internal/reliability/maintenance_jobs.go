package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/allocator/internal/database"
)

// Disk space thresholds for the maintenance job
const (
	criticalFreeBytes = 500 * 1024 * 1024
	warningFreeBytes  = 5 * 1024 * 1024 * 1024
)

// BackupJob runs a full backup on schedule
type BackupJob struct {
	service *BackupService
	timeout time.Duration
}

// NewBackupJob creates a new scheduled backup job
func NewBackupJob(service *BackupService, timeout time.Duration) *BackupJob {
	return &BackupJob{service: service, timeout: timeout}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "database_backup"
}

// Run executes the backup
func (j *BackupJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	_, err := j.service.Backup(ctx)
	return err
}

// DailyMaintenanceJob checks database integrity, free disk space and the
// latest backups
type DailyMaintenanceJob struct {
	databases map[string]*database.DB
	backups   *BackupService
	dataDir   string
	diskUsage func(path string) (*disk.UsageStat, error)
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job. backups may be nil.
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	backups *BackupService,
	dataDir string,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		backups:   backups,
		dataDir:   dataDir,
		diskUsage: disk.Usage,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()
	ctx := context.Background()

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		db := j.databases[name]
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Str("database", name).Err(err).Msg("CRITICAL: Database health check failed")
			return fmt.Errorf("health check failed for %s: %w", name, err)
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if j.backups != nil {
		j.verifyLatestBackups(ctx)
	}

	j.log.Info().
		Dur("duration", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")
	return nil
}

func (j *DailyMaintenanceJob) checkDiskSpace() error {
	usage, err := j.diskUsage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to read disk usage: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().
		Float64("available_gb", availableGB).
		Float64("used_percent", usage.UsedPercent).
		Msg("Disk space check")

	if usage.Free < criticalFreeBytes {
		j.log.Error().Float64("available_gb", availableGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.2f GB free on %s", availableGB, j.dataDir)
	}
	if usage.Free < warningFreeBytes {
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}

func (j *DailyMaintenanceJob) verifyLatestBackups(ctx context.Context) {
	latest, err := j.backups.LatestBackups()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to list backups")
		return
	}

	for name := range j.databases {
		path, ok := latest[name]
		if !ok {
			j.log.Warn().Str("database", name).Msg("No backup found")
			continue
		}
		if err := verifyBackup(ctx, path); err != nil {
			j.log.Error().Str("database", name).Str("path", path).Err(err).Msg("Backup integrity check failed")
			continue
		}
		j.log.Debug().Str("database", name).Msg("Backup verified")
	}
}
