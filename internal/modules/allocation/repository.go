package allocation

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
)

// Repository handles target allocation and rule persistence
// Database: portfolio.db (allocation_targets, allocation_rules tables)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new allocation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "allocation").Logger(),
	}
}

// GetTargetConfig returns the builder configuration for an account.
// Returns an empty config when none is stored.
func (r *Repository) GetTargetConfig(accountID int64) (domain.TargetAllocationConfig, error) {
	var raw string
	err := r.db.QueryRow("SELECT config FROM allocation_targets WHERE account_id = ?", accountID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TargetAllocationConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation targets: %w", err)
	}

	var cfg domain.TargetAllocationConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode allocation targets for account %d: %w", accountID, err)
	}
	return cfg, nil
}

// SaveTargetConfig replaces the builder configuration for an account
func (r *Repository) SaveTargetConfig(accountID int64, cfg domain.TargetAllocationConfig) error {
	if cfg == nil {
		cfg = domain.TargetAllocationConfig{}
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode allocation targets: %w", err)
	}

	query := `
		INSERT INTO allocation_targets (account_id, config, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			config = excluded.config,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, accountID, string(data), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to upsert allocation targets: %w", err)
	}

	r.log.Debug().
		Int64("account_id", accountID).
		Int("portfolios", len(cfg)).
		Msg("Allocation targets saved")

	return nil
}

// GetRules returns the stored allocation rules for an account.
// found is false when the account has no rules of its own.
func (r *Repository) GetRules(accountID int64) (rules domain.AllocationRules, found bool, err error) {
	query := "SELECT max_per_stock, max_per_etf, max_per_crypto FROM allocation_rules WHERE account_id = ?"
	err = r.db.QueryRow(query, accountID).Scan(&rules.MaxPerStock, &rules.MaxPerETF, &rules.MaxPerCrypto)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AllocationRules{}, false, nil
	}
	if err != nil {
		return domain.AllocationRules{}, false, fmt.Errorf("failed to query allocation rules: %w", err)
	}
	return rules, true, nil
}

// SaveRules upserts the allocation rules for an account
func (r *Repository) SaveRules(accountID int64, rules domain.AllocationRules) error {
	query := `
		INSERT INTO allocation_rules (account_id, max_per_stock, max_per_etf, max_per_crypto, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			max_per_stock = excluded.max_per_stock,
			max_per_etf = excluded.max_per_etf,
			max_per_crypto = excluded.max_per_crypto,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, accountID, rules.MaxPerStock, rules.MaxPerETF, rules.MaxPerCrypto, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert allocation rules: %w", err)
	}

	r.log.Debug().
		Int64("account_id", accountID).
		Float64("max_per_stock", rules.MaxPerStock).
		Float64("max_per_etf", rules.MaxPerETF).
		Float64("max_per_crypto", rules.MaxPerCrypto).
		Msg("Allocation rules saved")

	return nil
}

// DeleteRules removes an account's rules so the process defaults apply again
func (r *Repository) DeleteRules(accountID int64) error {
	result, err := r.db.Exec("DELETE FROM allocation_rules WHERE account_id = ?", accountID)
	if err != nil {
		return fmt.Errorf("failed to delete allocation rules: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.log.Debug().
		Int64("account_id", accountID).
		Int64("rows_affected", rowsAffected).
		Msg("Allocation rules deleted")

	return nil
}
