// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/aristath/allocator/internal/evolution"
)

// Memo store backends
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Defaults for scheduled runs and requests that omit them
	Budget                 float64
	MaxPerInstrumentBudget float64
	PredictPeriodDays      int
	Symbols                []string
	Schedule               string // cron spec with seconds; empty disables scheduled runs

	// Evolutionary search
	PopulationSize int
	Generations    int
	Seed           uint64
	EvalWorkers    int

	Parallelism   int // concurrent market data lookups
	MaxJobs       int // concurrent optimization jobs
	CacheBackend  string
	RedisURL      string
	PredictorURL  string // empty uses the trend predictor only
	TelegramToken string
	TelegramChat  int64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("ALLOCATOR_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	defaults := evolution.DefaultConfig()
	cfg := &Config{
		DataDir:                dataDir,
		Port:                   getEnvAsInt("ALLOCATOR_PORT", 8010),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		Budget:                 getEnvAsFloat("ALLOCATOR_BUDGET", 50),
		MaxPerInstrumentBudget: getEnvAsFloat("ALLOCATOR_MAX_PER_INSTRUMENT", 50),
		PredictPeriodDays:      getEnvAsInt("ALLOCATOR_PREDICT_DAYS", 30),
		Symbols:                getEnvAsList("ALLOCATOR_SYMBOLS"),
		Schedule:               getEnv("ALLOCATOR_SCHEDULE", ""),
		PopulationSize:         getEnvAsInt("ALLOCATOR_POPULATION", defaults.PopulationSize),
		Generations:            getEnvAsInt("ALLOCATOR_GENERATIONS", defaults.Generations),
		Seed:                   uint64(getEnvAsInt64("ALLOCATOR_SEED", 0)),
		EvalWorkers:            getEnvAsInt("ALLOCATOR_EVAL_WORKERS", defaults.Workers),
		Parallelism:            getEnvAsInt("ALLOCATOR_PARALLELISM", 8),
		MaxJobs:                getEnvAsInt("ALLOCATOR_MAX_JOBS", 4),
		CacheBackend:           strings.ToLower(getEnv("PRICE_CACHE_BACKEND", CacheBackendSQLite)),
		RedisURL:               getEnv("REDIS_URL", ""),
		PredictorURL:           getEnv("PREDICTOR_URL", ""),
		TelegramToken:          getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChat:           getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.CacheBackend {
	case CacheBackendSQLite:
	case CacheBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache backend: %q", c.CacheBackend)
	}
	if c.Budget < 0 {
		return fmt.Errorf("budget must not be negative: %v", c.Budget)
	}
	if c.PredictPeriodDays < 1 {
		return fmt.Errorf("predict period must be positive: %d", c.PredictPeriodDays)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be positive: %d", c.Parallelism)
	}
	if c.MaxJobs < 1 {
		return fmt.Errorf("max jobs must be positive: %d", c.MaxJobs)
	}
	if c.EvalWorkers < 0 {
		return fmt.Errorf("eval workers must not be negative: %d", c.EvalWorkers)
	}
	if err := c.EvolutionConfig().Validate(); err != nil {
		return err
	}
	if c.Schedule != "" {
		if len(c.Symbols) == 0 {
			return fmt.Errorf("ALLOCATOR_SYMBOLS is required when ALLOCATOR_SCHEDULE is set")
		}
		if _, err := ParseSchedule(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
		}
	}
	if c.TelegramToken != "" && c.TelegramChat == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

// EvolutionConfig returns the search parameters with the configured sizes.
func (c *Config) EvolutionConfig() evolution.Config {
	cfg := evolution.DefaultConfig()
	cfg.PopulationSize = c.PopulationSize
	cfg.Generations = c.Generations
	cfg.Seed = c.Seed
	cfg.Workers = c.EvalWorkers
	return cfg
}

// ParseSchedule parses a cron spec the way the scheduler does: six fields
// with seconds first, or a descriptor such as "@daily".
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(spec)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
