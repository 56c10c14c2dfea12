package allocation

import (
	"github.com/aristath/allocator/internal/domain"
)

// BuilderConfig is the resolved builder configuration for one portfolio
type BuilderConfig struct {
	Name                 string
	Allocation           float64
	MinPositions         int
	DesiredPositions     *int
	Positions            []domain.TargetPosition
	UsePlaceholderWeight bool
	PlaceholderWeight    float64
}

// EffectivePositions returns the desired position count, falling back to the minimum
func (b *BuilderConfig) EffectivePositions() int {
	if b == nil {
		return 0
	}
	if b.DesiredPositions != nil {
		return *b.DesiredPositions
	}
	return b.MinPositions
}

// PositionTree is the Portfolio -> Sector -> Position tree built from holding rows.
// Portfolios and sectors keep the order in which they first appear in the rows.
type PositionTree struct {
	Portfolios []*domain.Portfolio
	Builder    map[string]*BuilderConfig // keyed by portfolio name
}

// TotalCurrentValue sums current values across all portfolios
func (t *PositionTree) TotalCurrentValue() float64 {
	total := 0.0
	for _, p := range t.Portfolios {
		total += p.CurrentValue
	}
	return total
}

type positionKey struct {
	portfolio string
	position  string
}

// BuildPositionTree folds raw holding rows into the portfolio tree and resolves
// each position's target weight.
//
// Weight priority: explicit builder weight (> 0), then the placeholder weight for
// portfolios that only declare placeholders, then the asset-class default.
// Portfolios present only in the configuration produce no tree entry.
func (e *Engine) BuildPositionTree(
	rows []domain.HoldingRow,
	cfg domain.TargetAllocationConfig,
	rules domain.AllocationRules,
) *PositionTree {
	e.log.Info().Int("rows", len(rows)).Msg("Processing portfolio positions")

	explicitWeights := make(map[positionKey]float64)
	builder := make(map[string]*BuilderConfig)

	for _, tp := range cfg {
		if tp.Name == "" {
			continue
		}

		bc := &BuilderConfig{
			Name:             tp.Name,
			Allocation:       tp.Allocation,
			MinPositions:     tp.MinPositions,
			DesiredPositions: tp.DesiredPositions,
			Positions:        tp.Positions,
		}
		builder[tp.Name] = bc

		realCount := 0
		var placeholder *domain.TargetPosition
		for i := range tp.Positions {
			pos := tp.Positions[i]
			if pos.IsPlaceholder {
				if placeholder == nil {
					placeholder = &tp.Positions[i]
				}
				continue
			}
			realCount++
			if pos.Weight != nil && *pos.Weight > 0 {
				explicitWeights[positionKey{tp.Name, pos.CompanyName}] = *pos.Weight
			}
		}

		if realCount == 0 && placeholder != nil && placeholder.Weight != nil && *placeholder.Weight > 0 {
			bc.UsePlaceholderWeight = true
			bc.PlaceholderWeight = *placeholder.Weight
		}
	}

	tree := &PositionTree{Builder: builder}
	portfolios := make(map[string]*domain.Portfolio)
	sectors := make(map[string]map[string]*domain.Sector)

	for _, row := range rows {
		portfolio, ok := portfolios[row.PortfolioName]
		if !ok {
			portfolio = &domain.Portfolio{
				Name: row.PortfolioName,
				ID:   row.PortfolioID,
			}
			portfolios[row.PortfolioName] = portfolio
			sectors[row.PortfolioName] = make(map[string]*domain.Sector)
			tree.Portfolios = append(tree.Portfolios, portfolio)
		}

		if row.PositionName == "" {
			continue
		}

		sectorName := domain.UncategorizedSector
		if row.Sector != nil && *row.Sector != "" {
			sectorName = *row.Sector
		}
		sector, ok := sectors[row.PortfolioName][sectorName]
		if !ok {
			sector = &domain.Sector{Name: sectorName}
			sectors[row.PortfolioName][sectorName] = sector
			portfolio.Sectors = append(portfolio.Sectors, sector)
		}

		portfolio.CurrentValue += row.CurrentValue
		sector.CurrentValue += row.CurrentValue

		sector.Positions = append(sector.Positions, &domain.Position{
			Name:                   row.PositionName,
			Identifier:             row.Identifier,
			AssetClass:             row.AssetClass,
			CurrentValue:           row.CurrentValue,
			TargetAllocationWeight: resolveWeight(row, builder[row.PortfolioName], explicitWeights, rules),
		})
		sector.PositionCount = len(sector.Positions)
	}

	e.log.Info().Int("portfolios", len(tree.Portfolios)).Msg("Processed portfolios with positions")
	return tree
}

func resolveWeight(
	row domain.HoldingRow,
	bc *BuilderConfig,
	explicitWeights map[positionKey]float64,
	rules domain.AllocationRules,
) float64 {
	if w, ok := explicitWeights[positionKey{row.PortfolioName, row.PositionName}]; ok {
		return w
	}
	if bc != nil && bc.UsePlaceholderWeight {
		return bc.PlaceholderWeight
	}
	return defaultWeightFor(row.AssetClass, rules)
}
