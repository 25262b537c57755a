// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/allocator/internal/clientdata"
	"github.com/aristath/allocator/internal/clients/yahoo"
	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/allocation"
	"github.com/aristath/allocator/internal/modules/jobs"
	"github.com/aristath/allocator/internal/modules/portfolio"
	"github.com/aristath/allocator/internal/scheduler"
	"github.com/aristath/allocator/internal/services"
)

// Container holds all dependencies for the application. It is created by
// Wire and is the single source of truth for service instances.
type Container struct {
	// Databases
	AllocatorDB *database.DB // positions, jobs, job results
	CacheDB     *database.DB // memoized market data (sqlite backend)

	// Memo store. MemoRepo is set for the sqlite backend, RedisStore for redis.
	MemoStore  clientdata.Store
	MemoRepo   *clientdata.Repository
	RedisStore *clientdata.RedisStore

	// Repositories
	PositionRepo *portfolio.PositionRepository
	JobRepo      *jobs.Repository

	// Clients
	YahooClient *yahoo.Client
	Predictor   domain.PricePredictor
	Notifier    domain.Notifier

	// Services
	InstrumentBuilder *services.InstrumentBuilder
	AllocationService *allocation.Service
	JobRunner         *jobs.Runner
}

// Databases returns the open databases by name.
func (c *Container) Databases() map[string]*database.DB {
	dbs := map[string]*database.DB{}
	if c.AllocatorDB != nil {
		dbs[database.NameAllocator] = c.AllocatorDB
	}
	if c.CacheDB != nil {
		dbs[database.NameCache] = c.CacheDB
	}
	return dbs
}

// Close releases databases and connections. Safe on a partly built container.
func (c *Container) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.RedisStore != nil {
		keep(c.RedisStore.Close())
	}
	if c.CacheDB != nil {
		keep(c.CacheDB.Close())
	}
	if c.AllocatorDB != nil {
		keep(c.AllocatorDB.Close())
	}
	return firstErr
}

// JobInstances holds the registered job instances, for manual triggering.
// Optimization and ClientDataCleanup are nil when not registered.
type JobInstances struct {
	Optimization        *scheduler.OptimizationJob
	ClientDataCleanup   *clientdata.CleanupJob
	JobHistoryCleanup   *scheduler.JobHistoryCleanupJob
	DatabaseMaintenance *scheduler.DatabaseMaintenanceJob
}
