package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/database"
)

// InitializeDatabases opens and migrates the allocator database, and the
// cache database when the sqlite memo backend is selected.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// allocator.db - positions, jobs, job results
	allocatorDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "allocator.db"),
		Profile: database.ProfileStandard,
		Name:    database.NameAllocator,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize allocator database: %w", err)
	}
	container.AllocatorDB = allocatorDB

	// cache.db - memoized prices, profiles, forecasts
	if cfg.CacheBackend == config.CacheBackendSQLite {
		cacheDB, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, "cache.db"),
			Profile: database.ProfileCache,
			Name:    database.NameCache,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize cache database: %w", err)
		}
		container.CacheDB = cacheDB
	}

	for name, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
		}
	}

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("databases", len(container.Databases())).
		Msg("Databases initialized")

	return container, nil
}
