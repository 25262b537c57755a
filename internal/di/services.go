package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/clientdata"
	"github.com/aristath/allocator/internal/clients/predictor"
	"github.com/aristath/allocator/internal/clients/yahoo"
	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/allocation"
	"github.com/aristath/allocator/internal/modules/jobs"
	"github.com/aristath/allocator/internal/modules/portfolio"
	"github.com/aristath/allocator/internal/notify"
	"github.com/aristath/allocator/internal/services"
)

// InitializeRepositories creates the SQLite repositories and the memo store.
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.PositionRepo = portfolio.NewPositionRepository(container.AllocatorDB.Conn(), log)
	container.JobRepo = jobs.NewRepository(container.AllocatorDB.Conn(), log)

	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		store, err := clientdata.NewRedisStoreFromURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		container.RedisStore = store
		container.MemoStore = store
	default:
		container.MemoRepo = clientdata.NewRepository(container.CacheDB.Conn())
		container.MemoStore = container.MemoRepo
	}

	log.Info().Str("backend", cfg.CacheBackend).Msg("Memo store initialized")
	return nil
}

// InitializeServices creates clients and services.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.YahooClient = yahoo.NewClient(log)

	// Forecasts: the prediction service when configured, the price trend otherwise
	trend := predictor.NewTrendPredictor(container.YahooClient, log)
	var forecaster domain.PricePredictor = trend
	if cfg.PredictorURL != "" {
		forecaster = predictor.NewFallbackPredictor(predictor.NewClient(cfg.PredictorURL, log), trend, log)
	}
	container.Predictor = forecaster

	notifier, err := notify.New(notify.Config{Token: cfg.TelegramToken, ChatID: cfg.TelegramChat}, log)
	if err != nil {
		return err
	}
	container.Notifier = notifier

	container.InstrumentBuilder = services.NewInstrumentBuilder(
		container.YahooClient,
		container.Predictor,
		container.MemoStore,
		cfg.Parallelism,
		log,
	)
	container.AllocationService = allocation.NewService(
		container.PositionRepo,
		cfg.EvolutionConfig(),
		allocation.DefaultRiskWeights(),
		log,
	)
	container.JobRunner = jobs.NewRunner(
		container.JobRepo,
		container.InstrumentBuilder,
		container.AllocationService,
		container.Notifier,
		cfg.MaxJobs,
		log,
	)

	return nil
}
