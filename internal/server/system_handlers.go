package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/reliability"
	"github.com/aristath/allocator/internal/scheduler"
)

// backupRequestTimeout bounds a backup triggered over HTTP
const backupRequestTimeout = 5 * time.Minute

// DatabaseStatus describes one database in the status response
type DatabaseStatus struct {
	Name    string          `json:"name"`
	Profile string          `json:"profile"`
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *database.Stats `json:"stats,omitempty"`
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status        string                `json:"status"`
	StartedAt     string                `json:"started_at"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	CPUPercent    float64               `json:"cpu_percent"`
	RAMPercent    float64               `json:"ram_percent"`
	Databases     []DatabaseStatus      `json:"databases"`
	Jobs          []scheduler.JobStatus `json:"jobs"`
	LastChecked   string                `json:"last_checked"`
}

// SystemHandlers serves status, job and backup endpoints
type SystemHandlers struct {
	databases map[string]*database.DB
	scheduler *scheduler.Scheduler
	backups   *reliability.BackupService
	startedAt time.Time
	sysStats  func() (float64, float64)
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. scheduler and backups may be nil.
func NewSystemHandlers(
	log zerolog.Logger,
	databases map[string]*database.DB,
	sched *scheduler.Scheduler,
	backups *reliability.BackupService,
	startedAt time.Time,
) *SystemHandlers {
	h := &SystemHandlers{
		databases: databases,
		scheduler: sched,
		backups:   backups,
		startedAt: startedAt,
		log:       log.With().Str("handler", "system").Logger(),
	}
	h.sysStats = h.getSystemStats
	return h
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, ramPct := h.sysStats()

	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	dbs := make([]DatabaseStatus, 0, len(names))
	for _, name := range names {
		db := h.databases[name]
		ds := DatabaseStatus{Name: name, Profile: string(db.Profile()), Healthy: true}

		if err := db.HealthCheck(r.Context()); err != nil {
			ds.Healthy = false
			ds.Error = err.Error()
			status = "degraded"
		}
		if stats, err := db.GetStats(); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
		} else {
			ds.Stats = stats
		}
		dbs = append(dbs, ds)
	}

	var jobs []scheduler.JobStatus
	if h.scheduler != nil {
		jobs = h.scheduler.Status()
	}
	if jobs == nil {
		jobs = []scheduler.JobStatus{}
	}

	now := time.Now()
	h.writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        status,
		StartedAt:     h.startedAt.Format(time.RFC3339),
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		Databases:     dbs,
		Jobs:          jobs,
		LastChecked:   now.Format(time.RFC3339),
	})
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.scheduler != nil {
		jobs = append(jobs, h.scheduler.Status()...)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// HandleTriggerBackup handles POST /api/backups
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Backups are not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), backupRequestTimeout)
	defer cancel()

	files, err := h.backups.Backup(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		h.writeError(w, http.StatusInternalServerError, "Backup failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Backup completed",
		"files":   files,
	})
}

// HandleListBackups handles GET /api/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Backups are not configured")
		return
	}

	backups, err := h.backups.ListBackups()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeError(w, http.StatusInternalServerError, "Failed to list backups")
		return
	}
	if backups == nil {
		backups = []reliability.BackupInfo{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backup_dir": h.backups.BackupDir(),
		"backups":    backups,
	})
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms so the status call stays fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
