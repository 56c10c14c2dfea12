package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// portfolio.db - holdings, allocation targets and rules
	portfolioDB, err := openDatabase(cfg, database.NamePortfolio, database.ProfileStandard)
	if err != nil {
		return nil, err
	}
	container.PortfolioDB = portfolioDB

	// cache.db - calculated plans, safe to delete
	cacheDB, err := openDatabase(cfg, database.NameCache, database.ProfileCache)
	if err != nil {
		portfolioDB.Close()
		return nil, err
	}
	container.CacheDB = cacheDB

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

func openDatabase(cfg *config.Config, name string, profile database.DatabaseProfile) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(name),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", name, err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
	}
	return db, nil
}
