package allocation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/events"
)

// HoldingsProvider supplies the holdings snapshot for an account
type HoldingsProvider interface {
	GetHoldingRows(accountID int64) ([]domain.HoldingRow, error)
}

// PlanCache caches whole calculated plans per account
type PlanCache interface {
	GetIfFresh(accountID int64) (*domain.RebalancingPlan, error)
	Store(accountID int64, plan *domain.RebalancingPlan) error
	Invalidate(accountID int64) error
}

// Backupper snapshots persistent state before it is overwritten
type Backupper interface {
	Backup(ctx context.Context) ([]string, error)
}

// Service wires the engine to persisted holdings, targets and rules.
// Every write invalidates the account's cached plan.
type Service struct {
	engine       *Engine
	repo         *Repository
	holdings     HoldingsProvider
	cache        PlanCache
	eventManager *events.Manager
	backupper    Backupper
	defaultRules domain.AllocationRules
	log          zerolog.Logger
}

// NewService creates a new allocation service.
// cache, eventManager and backupper may be nil.
func NewService(
	engine *Engine,
	repo *Repository,
	holdings HoldingsProvider,
	cache PlanCache,
	eventManager *events.Manager,
	defaultRules domain.AllocationRules,
	log zerolog.Logger,
) *Service {
	return &Service{
		engine:       engine,
		repo:         repo,
		holdings:     holdings,
		cache:        cache,
		eventManager: eventManager,
		defaultRules: defaultRules,
		log:          log.With().Str("service", "allocation").Logger(),
	}
}

// SetBackupper enables a backup before every target or rule write
func (s *Service) SetBackupper(b Backupper) {
	s.backupper = b
}

// Engine returns the underlying engine for stateless calculations
func (s *Service) Engine() *Engine {
	return s.engine
}

// DefaultRules returns the process-wide rules used for accounts without their own
func (s *Service) DefaultRules() domain.AllocationRules {
	return s.defaultRules
}

// GetPlan returns the account's rebalancing plan, serving a fresh cached copy when available
func (s *Service) GetPlan(accountID int64) (*domain.RebalancingPlan, error) {
	if s.cache != nil {
		plan, err := s.cache.GetIfFresh(accountID)
		if err != nil {
			s.log.Warn().Err(err).Int64("account_id", accountID).Msg("Plan cache read failed, recalculating")
		} else if plan != nil {
			s.log.Debug().Int64("account_id", accountID).Str("plan_id", plan.ID).Msg("Serving cached plan")
			return plan, nil
		}
	}

	rows, err := s.holdings.GetHoldingRows(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	cfg, err := s.repo.GetTargetConfig(accountID)
	if err != nil {
		return nil, err
	}

	rules, err := s.GetRules(accountID)
	if err != nil {
		return nil, err
	}

	plan := s.engine.Calculate(rows, cfg, rules)

	if s.cache != nil {
		if err := s.cache.Store(accountID, plan); err != nil {
			s.log.Warn().Err(err).Int64("account_id", accountID).Msg("Failed to cache plan")
		}
	}

	s.emit(&events.PlanCalculatedData{
		AccountID:       accountID,
		PlanID:          plan.ID,
		Portfolios:      plan.Summary.PortfolioCount,
		CappedPositions: plan.Summary.CappedPositions,
		TotalValue:      plan.Summary.TotalCurrentValue,
	})

	return plan, nil
}

// GetTargetConfig returns the account's builder configuration
func (s *Service) GetTargetConfig(accountID int64) (domain.TargetAllocationConfig, error) {
	return s.repo.GetTargetConfig(accountID)
}

// SaveTargetConfig validates and stores the account's builder configuration
func (s *Service) SaveTargetConfig(ctx context.Context, accountID int64, cfg domain.TargetAllocationConfig) error {
	if err := ValidateTargetConfig(cfg); err != nil {
		return err
	}

	s.backup(ctx)

	if err := s.repo.SaveTargetConfig(accountID, cfg); err != nil {
		return err
	}

	s.emit(&events.AllocationTargetsChangedData{AccountID: accountID, Portfolios: len(cfg)})
	s.InvalidatePlan(accountID, "allocation targets changed")
	return nil
}

// GetRules returns the account's allocation rules, falling back to the defaults
func (s *Service) GetRules(accountID int64) (domain.AllocationRules, error) {
	rules, found, err := s.repo.GetRules(accountID)
	if err != nil {
		return domain.AllocationRules{}, err
	}
	if !found {
		return s.defaultRules, nil
	}
	return rules, nil
}

// SaveRules validates and stores the account's allocation rules
func (s *Service) SaveRules(ctx context.Context, accountID int64, rules domain.AllocationRules) error {
	if err := ValidateRules(rules); err != nil {
		return err
	}

	s.backup(ctx)

	if err := s.repo.SaveRules(accountID, rules); err != nil {
		return err
	}

	s.emit(&events.AllocationRulesChangedData{
		AccountID:    accountID,
		MaxPerStock:  rules.MaxPerStock,
		MaxPerETF:    rules.MaxPerETF,
		MaxPerCrypto: rules.MaxPerCrypto,
	})
	s.InvalidatePlan(accountID, "allocation rules changed")
	return nil
}

// ResetRules drops the account's rules so the defaults apply
func (s *Service) ResetRules(accountID int64) error {
	if err := s.repo.DeleteRules(accountID); err != nil {
		return err
	}

	s.emit(&events.AllocationRulesChangedData{
		AccountID:    accountID,
		MaxPerStock:  s.defaultRules.MaxPerStock,
		MaxPerETF:    s.defaultRules.MaxPerETF,
		MaxPerCrypto: s.defaultRules.MaxPerCrypto,
	})
	s.InvalidatePlan(accountID, "allocation rules reset")
	return nil
}

// InvalidatePlan drops the account's cached plan. Failures are logged, never returned.
func (s *Service) InvalidatePlan(accountID int64, reason string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Invalidate(accountID); err != nil {
		s.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to invalidate plan cache")
		return
	}

	s.log.Debug().Int64("account_id", accountID).Str("reason", reason).Msg("Plan cache invalidated")
	s.emit(&events.CacheInvalidatedData{AccountID: accountID, Reason: reason})
}

func (s *Service) backup(ctx context.Context) {
	if s.backupper == nil {
		return
	}
	if _, err := s.backupper.Backup(ctx); err != nil {
		s.log.Error().Err(err).Msg("Pre-write backup failed, continuing")
	}
}

func (s *Service) emit(data events.EventData) {
	if s.eventManager == nil {
		return
	}
	s.eventManager.EmitTyped("allocation", data)
}
