package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("ALLOCATOR_DATA_DIR", dataDir)
	t.Setenv("GO_PORT", "")
	t.Setenv("PLAN_CACHE_TTL", "")
	t.Setenv("RULES_FILE", "")
	t.Setenv("BACKUP_MAX_FILES", "")
	t.Setenv("BACKUP_S3_BUCKET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.DirExists(t, dataDir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.PlanCacheTTL)
	assert.Equal(t, domain.DefaultAllocationRules(), cfg.DefaultRules)
	assert.Equal(t, 10, cfg.BackupMaxFiles)
	assert.Equal(t, "0 0 2 * * *", cfg.BackupSchedule)
	assert.False(t, cfg.BackupS3.Enabled())
	assert.Equal(t, filepath.Join(dataDir, "portfolio.db"), cfg.DatabasePath("portfolio"))
	assert.Equal(t, filepath.Join(dataDir, "backups"), cfg.BackupDir())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ALLOCATOR_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("PLAN_CACHE_TTL", "90")
	t.Setenv("BACKUP_MAX_FILES", "3")
	t.Setenv("BACKUP_S3_BUCKET", "backups")
	t.Setenv("BACKUP_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("RULES_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.PlanCacheTTL)
	assert.Equal(t, 3, cfg.BackupMaxFiles)
	assert.True(t, cfg.BackupS3.Enabled())
	assert.Equal(t, "http://localhost:9000", cfg.BackupS3.Endpoint)
}

func TestLoad_RulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte("[rules]\nmax_per_stock = 4.5\nmax_per_crypto = 1\n"), 0644))

	t.Setenv("ALLOCATOR_DATA_DIR", dir)
	t.Setenv("GO_PORT", "")
	t.Setenv("RULES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, domain.AllocationRules{MaxPerStock: 4.5, MaxPerETF: 5, MaxPerCrypto: 1}, cfg.DefaultRules)
}

func TestLoadRulesFile_Errors(t *testing.T) {
	_, err := LoadRulesFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[rules\n"), 0644))
	_, err = LoadRulesFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{Port: 8001, PlanCacheTTL: time.Minute, BackupMaxFiles: 10, DefaultRules: domain.DefaultAllocationRules()}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"negative ttl", func(c *Config) { c.PlanCacheTTL = -time.Second }},
		{"negative backups", func(c *Config) { c.BackupMaxFiles = -1 }},
		{"rule above 100", func(c *Config) { c.DefaultRules.MaxPerETF = 120 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "2m")
	assert.Equal(t, 2*time.Minute, getEnvAsDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "45")
	assert.Equal(t, 45*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
}
