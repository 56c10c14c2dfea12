// Package plancache provides a persistent per-account cache of calculated
// rebalancing plans. Entries are msgpack blobs with expiration timestamps.
package plancache

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/allocator/internal/domain"
)

// DefaultTTL is how long a calculated plan stays fresh
const DefaultTTL = 60 * time.Second

// Cache stores rebalancing plans keyed by account.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// New creates a plan cache on the cache database.
// A non-positive ttl falls back to DefaultTTL.
func New(db *sql.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: log.With().Str("repository", "plan_cache").Logger(),
	}
}

// TTL returns the configured time to live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Store saves a plan with expiration = now + ttl
func (c *Cache) Store(accountID int64, plan *domain.RebalancingPlan) error {
	data, err := encode(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	expiresAt := c.now().Add(c.ttl).Unix()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO plan_cache (account_id, data, expires_at) VALUES (?, ?, ?)",
		accountID, data, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store plan for account %d: %w", accountID, err)
	}

	c.log.Debug().
		Int64("account_id", accountID).
		Str("plan_id", plan.ID).
		Int("size_bytes", len(data)).
		Msg("Cached rebalancing plan")

	return nil
}

// GetIfFresh returns the cached plan only if it has not expired.
// Returns nil, nil if the account has no entry or the entry is stale.
func (c *Cache) GetIfFresh(accountID int64) (*domain.RebalancingPlan, error) {
	var data []byte
	err := c.db.QueryRow(
		"SELECT data FROM plan_cache WHERE account_id = ? AND expires_at > ?",
		accountID, c.now().Unix(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached plan for account %d: %w", accountID, err)
	}

	plan, err := decode(data)
	if err != nil {
		// A blob we cannot read is as good as a miss
		c.log.Warn().Err(err).Int64("account_id", accountID).Msg("Discarding undecodable cached plan")
		_ = c.Invalidate(accountID)
		return nil, nil
	}
	return plan, nil
}

// Invalidate removes the cached plan for an account
func (c *Cache) Invalidate(accountID int64) error {
	if _, err := c.db.Exec("DELETE FROM plan_cache WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("failed to invalidate plan for account %d: %w", accountID, err)
	}
	return nil
}

// DeleteExpired removes all rows where expires_at <= now.
// Returns the number of rows deleted.
func (c *Cache) DeleteExpired() (int64, error) {
	result, err := c.db.Exec("DELETE FROM plan_cache WHERE expires_at <= ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired plans: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// encode serializes with the json field names so cached and served plans match
func encode(plan *domain.RebalancingPlan) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(plan); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*domain.RebalancingPlan, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")

	var plan domain.RebalancingPlan
	if err := dec.Decode(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}
