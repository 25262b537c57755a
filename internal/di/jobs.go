package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/clientdata"
	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/jobs"
	"github.com/aristath/allocator/internal/scheduler"
)

// Maintenance schedules (six fields, seconds first)
const (
	scheduleClientDataCleanup   = "0 15 3 * * *"
	scheduleJobHistoryCleanup   = "0 30 3 * * *"
	scheduleDatabaseMaintenance = "0 45 3 * * *"
)

// ScheduledRequest is the optimization request run on cfg.Schedule.
func ScheduledRequest(cfg *config.Config) jobs.Request {
	return jobs.Request{
		Symbols:           cfg.Symbols,
		StockLimit:        domain.CommonPriceLimit(cfg.MaxPerInstrumentBudget),
		Budget:            cfg.Budget,
		PredictPeriodDays: cfg.PredictPeriodDays,
	}
}

// RegisterJobs creates the background jobs and registers them with sched.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	instances := &JobInstances{}

	if cfg.Schedule != "" {
		instances.Optimization = scheduler.NewOptimizationJob(container.JobRunner, ScheduledRequest(cfg), 0, log)
		if err := sched.AddJob(cfg.Schedule, instances.Optimization); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", instances.Optimization.Name(), err)
		}
	}

	if container.MemoRepo != nil {
		instances.ClientDataCleanup = clientdata.NewCleanupJob(container.MemoRepo, log)
		if err := sched.AddJob(scheduleClientDataCleanup, instances.ClientDataCleanup); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", instances.ClientDataCleanup.Name(), err)
		}
	}

	instances.JobHistoryCleanup = scheduler.NewJobHistoryCleanupJob(container.JobRepo, scheduler.DefaultJobRetention, log)
	if err := sched.AddJob(scheduleJobHistoryCleanup, instances.JobHistoryCleanup); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", instances.JobHistoryCleanup.Name(), err)
	}

	instances.DatabaseMaintenance = scheduler.NewDatabaseMaintenanceJob(container.Databases(), log)
	if err := sched.AddJob(scheduleDatabaseMaintenance, instances.DatabaseMaintenance); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", instances.DatabaseMaintenance.Name(), err)
	}

	log.Info().Bool("scheduled_optimization", instances.Optimization != nil).Msg("Jobs registered")
	return instances, nil
}
