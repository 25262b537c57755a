// Package main is the entry point for the allocator HTTP service.
//
// The service builds instrument records from market data and forecasts, runs
// the evolutionary allocator for each optimization job and serves the results
// over a REST API. Optional cron schedules run optimizations and maintenance in
// the background.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/di"
	allocationhandlers "github.com/aristath/allocator/internal/modules/allocation/handlers"
	jobshandlers "github.com/aristath/allocator/internal/modules/jobs/handlers"
	markethandlers "github.com/aristath/allocator/internal/modules/market/handlers"
	portfoliohandlers "github.com/aristath/allocator/internal/modules/portfolio/handlers"
	"github.com/aristath/allocator/internal/scheduler"
	"github.com/aristath/allocator/internal/server"
	"github.com/aristath/allocator/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting allocator")

	sched := scheduler.New(log)

	// Databases, memo store, clients, services and background jobs
	container, jobInstances, err := di.Wire(cfg, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close container")
		}
	}()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Databases: container.Databases(),
		Modules: []server.RouteRegistrar{
			portfoliohandlers.NewHandler(container.PositionRepo, log),
			jobshandlers.NewHandler(container.JobRunner, container.JobRepo, log),
			allocationhandlers.NewHandler(container.AllocationService, log),
			markethandlers.NewHandler(container.InstrumentBuilder, container.YahooClient, cfg.Symbols, log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	sched.Start()
	if jobInstances.Optimization != nil {
		log.Info().Str("schedule", cfg.Schedule).Strs("symbols", cfg.Symbols).Msg("Scheduled optimization enabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Running jobs are cancelled and recorded as failed
	if err := container.JobRunner.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Job runner did not stop in time")
	}

	sched.Stop()

	log.Info().Msg("Server stopped")
}
