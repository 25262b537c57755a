package di

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/notify"
	"github.com/aristath/allocator/internal/scheduler"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:                t.TempDir(),
		Port:                   8010,
		Budget:                 50,
		MaxPerInstrumentBudget: 25,
		PredictPeriodDays:      30,
		PopulationSize:         120,
		Generations:            350,
		EvalWorkers:            1,
		Parallelism:            8,
		MaxJobs:                4,
		CacheBackend:           config.CacheBackendSQLite,
	}
}

func TestWire_SQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	sched := scheduler.New(zerolog.Nop())

	container, instances, err := Wire(cfg, sched, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.FileExists(t, filepath.Join(cfg.DataDir, "allocator.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "cache.db"))
	assert.Len(t, container.Databases(), 2)

	assert.NotNil(t, container.MemoRepo)
	assert.Nil(t, container.RedisStore)
	assert.Same(t, container.MemoRepo, container.MemoStore)
	assert.NotNil(t, container.PositionRepo)
	assert.NotNil(t, container.JobRepo)
	assert.NotNil(t, container.InstrumentBuilder)
	assert.NotNil(t, container.AllocationService)
	assert.NotNil(t, container.JobRunner)
	assert.IsType(t, notify.Noop{}, container.Notifier)

	assert.Nil(t, instances.Optimization)
	assert.NotNil(t, instances.ClientDataCleanup)
	assert.NotNil(t, instances.JobHistoryCleanup)
	require.NotNil(t, instances.DatabaseMaintenance)
	assert.NoError(t, sched.RunNow(instances.DatabaseMaintenance))
	assert.NoError(t, sched.RunNow(instances.ClientDataCleanup))
}

func TestWire_RedisBackendAndSchedule(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.CacheBackend = config.CacheBackendRedis
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.Symbols = []string{"VOO"}
	cfg.Schedule = "@daily"
	cfg.PredictorURL = "http://localhost:9"

	container, instances, err := Wire(cfg, scheduler.New(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.RedisStore)
	assert.Nil(t, container.MemoRepo)
	assert.Nil(t, container.CacheDB)
	assert.NoFileExists(t, filepath.Join(cfg.DataDir, "cache.db"))
	assert.Equal(t, []string{database.NameAllocator}, keys(container.Databases()))

	assert.NotNil(t, instances.Optimization)
	assert.Nil(t, instances.ClientDataCleanup)
}

func TestWire_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.CacheBackend = config.CacheBackendRedis
	cfg.RedisURL = "redis://" + addr

	_, _, err := Wire(cfg, scheduler.New(zerolog.Nop()), zerolog.Nop())
	assert.Error(t, err)
}

func TestScheduledRequest(t *testing.T) {
	cfg := testConfig(t)
	cfg.Symbols = []string{"VOO", "QQQ"}

	req := ScheduledRequest(cfg)
	assert.Equal(t, cfg.Symbols, req.Symbols)
	assert.Equal(t, 50.0, req.Budget)
	assert.Equal(t, 30, req.PredictPeriodDays)
	assert.Equal(t, domain.StockLimitPrice, req.StockLimit.Type)
	require.NotNil(t, req.StockLimit.Common)
	assert.Equal(t, 25.0, *req.StockLimit.Common)
}

func keys(m map[string]*database.DB) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
