// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/reliability"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for databases and backups (always absolute)
	Port           int
	LogLevel       string
	DevMode        bool
	PlanCacheTTL   time.Duration
	RulesFile      string
	DefaultRules   domain.AllocationRules // from RulesFile, else built-in defaults
	BackupSchedule string                 // cron expression with seconds field
	BackupMaxFiles int
	BackupS3       reliability.S3Config
}

// rulesFile is the on-disk layout of RULES_FILE
type rulesFile struct {
	Rules domain.AllocationRules `toml:"rules"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ALLOCATOR_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("GO_PORT", 8001),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		PlanCacheTTL:   getEnvAsDuration("PLAN_CACHE_TTL", 60*time.Second),
		RulesFile:      getEnv("RULES_FILE", ""),
		DefaultRules:   domain.DefaultAllocationRules(),
		BackupSchedule: getEnv("BACKUP_SCHEDULE", "0 0 2 * * *"),
		BackupMaxFiles: getEnvAsInt("BACKUP_MAX_FILES", reliability.DefaultMaxBackups),
		BackupS3: reliability.S3Config{
			Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
			Prefix:    getEnv("BACKUP_S3_PREFIX", ""),
			Region:    getEnv("BACKUP_S3_REGION", ""),
			Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		},
	}

	if cfg.RulesFile != "" {
		rules, err := LoadRulesFile(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		cfg.DefaultRules = rules
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadRulesFile reads default allocation rules from a TOML file:
//
//	[rules]
//	max_per_stock = 2.0
//	max_per_etf = 5.0
//	max_per_crypto = 5.0
//
// Keys left out keep their built-in defaults.
func LoadRulesFile(path string) (domain.AllocationRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AllocationRules{}, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	parsed := rulesFile{Rules: domain.DefaultAllocationRules()}
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return domain.AllocationRules{}, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return parsed.Rules, nil
}

// DatabasePath returns the file path of a named database
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// BackupDir returns the local backup directory
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.PlanCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("PLAN_CACHE_TTL must not be negative, got %s", c.PlanCacheTTL))
	}
	if c.BackupMaxFiles < 0 {
		errs = append(errs, fmt.Errorf("BACKUP_MAX_FILES must not be negative, got %d", c.BackupMaxFiles))
	}
	for name, v := range map[string]float64{
		"max_per_stock":  c.DefaultRules.MaxPerStock,
		"max_per_etf":    c.DefaultRules.MaxPerETF,
		"max_per_crypto": c.DefaultRules.MaxPerCrypto,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("default rule %s must be between 0 and 100, got %v", name, v))
		}
	}
	return errors.Join(errs...)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
