// Package reliability provides database backups and maintenance jobs.
package reliability

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/events"
)

// DefaultMaxBackups is how many backups are kept per database
const DefaultMaxBackups = 10

const backupTimeLayout = "20060102_150405.000000"

// Uploader copies a finished backup file to off-site storage
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// BackupInfo describes one backup file on disk
type BackupInfo struct {
	Database  string    `json:"database"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// BackupService snapshots databases with VACUUM INTO and rotates old copies
type BackupService struct {
	databases    map[string]*database.DB
	backupDir    string
	maxBackups   int
	uploader     Uploader
	eventManager *events.Manager
	mu           sync.Mutex
	now          func() time.Time
	log          zerolog.Logger
}

// NewBackupService creates a new backup service writing to backupDir.
// A non-positive maxBackups falls back to DefaultMaxBackups.
func NewBackupService(
	databases map[string]*database.DB,
	backupDir string,
	maxBackups int,
	log zerolog.Logger,
) *BackupService {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &BackupService{
		databases:  databases,
		backupDir:  backupDir,
		maxBackups: maxBackups,
		now:        time.Now,
		log:        log.With().Str("service", "backup").Logger(),
	}
}

// SetUploader enables off-site upload of every backup
func (s *BackupService) SetUploader(u Uploader) {
	s.uploader = u
}

// SetEventManager enables BackupCompleted events
func (s *BackupService) SetEventManager(m *events.Manager) {
	s.eventManager = m
}

// BackupDir returns the local backup directory
func (s *BackupService) BackupDir() string {
	return s.backupDir
}

// Backup writes a verified snapshot of every database and prunes old ones.
// Returns the paths of the new backup files.
func (s *BackupService) Backup(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	timestamp := s.now().UTC().Format(backupTimeLayout)
	var (
		files     []string
		totalSize int64
	)

	for _, name := range s.databaseNames() {
		db := s.databases[name]
		path := filepath.Join(s.backupDir, fmt.Sprintf("%s_backup_%s.db", name, timestamp))

		if err := db.VacuumInto(ctx, path); err != nil {
			return files, err
		}
		if err := verifyBackup(ctx, path); err != nil {
			_ = os.Remove(path)
			return files, fmt.Errorf("backup of %s failed verification: %w", name, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return files, fmt.Errorf("failed to stat backup: %w", err)
		}
		totalSize += info.Size()
		files = append(files, path)

		s.log.Debug().
			Str("database", name).
			Str("path", path).
			Int64("size_bytes", info.Size()).
			Msg("Database backed up")

		if err := s.prune(name); err != nil {
			s.log.Warn().Err(err).Str("database", name).Msg("Failed to prune old backups")
		}
	}

	uploaded := false
	if s.uploader != nil && len(files) > 0 {
		uploaded = true
		for _, path := range files {
			key, err := s.uploader.Upload(ctx, path)
			if err != nil {
				uploaded = false
				s.log.Error().Err(err).Str("path", path).Msg("Failed to upload backup")
				continue
			}
			s.log.Debug().Str("key", key).Msg("Backup uploaded")
		}
	}

	duration := time.Since(start)
	s.log.Info().
		Int("files", len(files)).
		Int64("size_bytes", totalSize).
		Bool("uploaded", uploaded).
		Dur("duration", duration).
		Msg("Backup completed")

	if s.eventManager != nil {
		s.eventManager.EmitTyped("reliability", &events.BackupCompletedData{
			Files:      files,
			SizeBytes:  totalSize,
			Uploaded:   uploaded,
			DurationMs: duration.Milliseconds(),
		})
	}

	return files, nil
}

// ListBackups returns backup files on disk, newest first
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		dbName, ok := parseBackupName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Database:  dbName,
			Filename:  entry.Name(),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}

	sortNewestFirst(backups)
	return backups, nil
}

// LatestBackups returns the newest backup path per database
func (s *BackupService) LatestBackups() (map[string]string, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return nil, err
	}

	latest := make(map[string]string)
	for _, b := range backups {
		if _, seen := latest[b.Database]; !seen {
			latest[b.Database] = filepath.Join(s.backupDir, b.Filename)
		}
	}
	return latest, nil
}

// prune keeps the newest maxBackups files of one database
func (s *BackupService) prune(dbName string) error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}

	kept := 0
	for _, b := range backups {
		if b.Database != dbName {
			continue
		}
		kept++
		if kept <= s.maxBackups {
			continue
		}
		if err := os.Remove(filepath.Join(s.backupDir, b.Filename)); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", b.Filename, err)
		}
		s.log.Debug().Str("file", b.Filename).Msg("Removed old backup")
	}
	return nil
}

func (s *BackupService) databaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name, db := range s.databases {
		if db != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// parseBackupName extracts the database name from <name>_backup_<timestamp>.db
func parseBackupName(filename string) (string, bool) {
	if !strings.HasSuffix(filename, ".db") {
		return "", false
	}
	idx := strings.LastIndex(filename, "_backup_")
	if idx <= 0 {
		return "", false
	}
	return filename[:idx], true
}

func sortNewestFirst(backups []BackupInfo) {
	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.After(backups[j].ModTime)
		}
		// Timestamped names sort chronologically
		return backups[i].Filename > backups[j].Filename
	})
}

// verifyBackup opens a backup read-only and runs an integrity check
func verifyBackup(ctx context.Context, path string) error {
	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer conn.Close()

	var result string
	if err := conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned %s", result)
	}
	return nil
}
