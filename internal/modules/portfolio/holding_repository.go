package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/rebalancing"
)

// ErrHoldingNotFound is returned when a holding does not exist for the account
var ErrHoldingNotFound = errors.New("holding not found")

const holdingColumns = `id, account_id, portfolio_name, portfolio_id, sector, position_name,
	identifier, asset_class, shares, override_shares, price, is_custom_value,
	custom_total_value, created_at, updated_at`

// HoldingRepository handles holding database operations
// Database: portfolio.db (holdings table)
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

// Create inserts a holding and returns its ID
func (r *HoldingRepository) Create(h *Holding) (int64, error) {
	now := time.Now().Unix()
	h.CreatedAt = now
	h.UpdatedAt = now

	query := `
		INSERT INTO holdings (account_id, portfolio_name, portfolio_id, sector, position_name,
			identifier, asset_class, shares, override_shares, price, is_custom_value,
			custom_total_value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query,
		h.AccountID,
		h.PortfolioName,
		nullString(h.PortfolioID),
		h.Sector,
		h.PositionName,
		h.Identifier,
		nullString(string(h.AssetClass)),
		h.Shares,
		h.OverrideShares,
		h.Price,
		boolToInt(h.IsCustomValue),
		h.CustomTotalValue,
		h.CreatedAt,
		h.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert holding: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get holding ID: %w", err)
	}
	h.ID = id

	r.log.Debug().
		Int64("account_id", h.AccountID).
		Int64("holding_id", id).
		Str("position", h.PositionName).
		Msg("Holding created")

	return id, nil
}

// GetByID returns one holding of an account
func (r *HoldingRepository) GetByID(accountID, id int64) (*Holding, error) {
	row := r.db.QueryRow("SELECT "+holdingColumns+" FROM holdings WHERE account_id = ? AND id = ?", accountID, id)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHoldingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query holding: %w", err)
	}
	return h, nil
}

// List returns all holdings of an account ordered by portfolio, sector and position
func (r *HoldingRepository) List(accountID int64) ([]Holding, error) {
	query := "SELECT " + holdingColumns + ` FROM holdings
		WHERE account_id = ?
		ORDER BY portfolio_name, sector, position_name, id`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []Holding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, *h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// Update replaces every editable field of a holding
func (r *HoldingRepository) Update(h *Holding) error {
	h.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE holdings SET
			portfolio_name = ?, portfolio_id = ?, sector = ?, position_name = ?,
			identifier = ?, asset_class = ?, shares = ?, override_shares = ?, price = ?,
			is_custom_value = ?, custom_total_value = ?, updated_at = ?
		WHERE account_id = ? AND id = ?
	`
	result, err := r.db.Exec(query,
		h.PortfolioName,
		nullString(h.PortfolioID),
		h.Sector,
		h.PositionName,
		h.Identifier,
		nullString(string(h.AssetClass)),
		h.Shares,
		h.OverrideShares,
		h.Price,
		boolToInt(h.IsCustomValue),
		h.CustomTotalValue,
		h.UpdatedAt,
		h.AccountID,
		h.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrHoldingNotFound
	}
	return nil
}

// Delete removes one holding of an account
func (r *HoldingRepository) Delete(accountID, id int64) error {
	result, err := r.db.Exec("DELETE FROM holdings WHERE account_id = ? AND id = ?", accountID, id)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrHoldingNotFound
	}

	r.log.Debug().Int64("account_id", accountID).Int64("holding_id", id).Msg("Holding deleted")
	return nil
}

// GetHoldingRows returns the account's holdings as engine input rows.
// Current value is the custom total for custom-valued holdings, otherwise
// effective shares times price.
func (r *HoldingRepository) GetHoldingRows(accountID int64) ([]domain.HoldingRow, error) {
	query := `
		SELECT portfolio_name, portfolio_id, sector, position_name, identifier, asset_class,
			CASE
				WHEN is_custom_value = 1 THEN COALESCE(custom_total_value, 0)
				ELSE COALESCE(override_shares, shares, 0) * COALESCE(price, 0)
			END AS current_value
		FROM holdings
		WHERE account_id = ?
		ORDER BY portfolio_name, sector, position_name, id
	`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding rows: %w", err)
	}
	defer rows.Close()

	result := []domain.HoldingRow{}
	for rows.Next() {
		var (
			row         domain.HoldingRow
			portfolioID sql.NullString
			sector      sql.NullString
			identifier  sql.NullString
			assetClass  sql.NullString
		)
		if err := rows.Scan(
			&row.PortfolioName,
			&portfolioID,
			&sector,
			&row.PositionName,
			&identifier,
			&assetClass,
			&row.CurrentValue,
		); err != nil {
			return nil, fmt.Errorf("failed to scan holding row: %w", err)
		}

		row.PortfolioID = portfolioID.String
		row.Sector = stringPtr(sector)
		row.Identifier = stringPtr(identifier)
		row.AssetClass = domain.AssetClass(assetClass.String)
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holding rows: %w", err)
	}

	r.log.Debug().Int64("account_id", accountID).Int("rows", len(result)).Msg("Loaded holding rows")
	return result, nil
}

// GetDeploymentHoldings returns the account's holdings priced for cash deployment.
// Holding IDs are rendered as decimal strings.
func (r *HoldingRepository) GetDeploymentHoldings(accountID int64) ([]rebalancing.Holding, error) {
	holdings, err := r.List(accountID)
	if err != nil {
		return nil, err
	}

	result := make([]rebalancing.Holding, 0, len(holdings))
	for i := range holdings {
		h := &holdings[i]
		dh := rebalancing.Holding{
			ID:            strconv.FormatInt(h.ID, 10),
			PortfolioName: h.PortfolioName,
			Name:          h.PositionName,
			CurrentValue:  decimal.NewFromFloat(h.CurrentValue()),
		}
		if h.Identifier != nil {
			dh.Identifier = *h.Identifier
		}
		if h.Price != nil {
			dh.Price = decimal.NewNullDecimal(decimal.NewFromFloat(*h.Price))
		}
		result = append(result, dh)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(s rowScanner) (*Holding, error) {
	var (
		h                Holding
		portfolioID      sql.NullString
		sector           sql.NullString
		identifier       sql.NullString
		assetClass       sql.NullString
		shares           sql.NullFloat64
		overrideShares   sql.NullFloat64
		price            sql.NullFloat64
		isCustomValue    int
		customTotalValue sql.NullFloat64
	)

	err := s.Scan(
		&h.ID,
		&h.AccountID,
		&h.PortfolioName,
		&portfolioID,
		&sector,
		&h.PositionName,
		&identifier,
		&assetClass,
		&shares,
		&overrideShares,
		&price,
		&isCustomValue,
		&customTotalValue,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.PortfolioID = portfolioID.String
	h.Sector = stringPtr(sector)
	h.Identifier = stringPtr(identifier)
	h.AssetClass = domain.AssetClass(assetClass.String)
	h.Shares = floatPtr(shares)
	h.OverrideShares = floatPtr(overrideShares)
	h.Price = floatPtr(price)
	h.IsCustomValue = isCustomValue != 0
	h.CustomTotalValue = floatPtr(customTotalValue)

	return &h, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
