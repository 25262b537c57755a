package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/evolution"
	"github.com/aristath/allocator/internal/modules/allocation"
)

type fakeBuilder struct {
	instruments map[string]domain.Instrument
	err         error
	block       chan struct{}
}

func (b *fakeBuilder) Build(ctx context.Context, symbols []string, _ int) ([]domain.Instrument, error) {
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	out := []domain.Instrument{}
	for _, s := range symbols {
		if inst, ok := b.instruments[s]; ok {
			out = append(out, inst)
		}
	}
	return out, nil
}

type recordingOptimizer struct {
	mu     sync.Mutex
	limits []domain.StockLimit
	err    error
}

func (o *recordingOptimizer) OptimizeWithLimit(_ context.Context, instruments []domain.Instrument, budget float64, limit domain.StockLimit) (*allocation.Report, error) {
	o.mu.Lock()
	o.limits = append(o.limits, limit)
	o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	return &allocation.Report{Budget: budget, Modes: []allocation.ModeReport{{Mode: allocation.ModeRiskAware, NothingToBuy: len(instruments) == 0}}}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func testInstruments() map[string]domain.Instrument {
	return map[string]domain.Instrument{
		"LOW":  {Symbol: "LOW", CurrentPrice: 10, PredictedPrice: 11},
		"MID":  {Symbol: "MID", CurrentPrice: 20, PredictedPrice: 23},
		"HIGH": {Symbol: "HIGH", CurrentPrice: 5, PredictedPrice: 6},
	}
}

func commonRequest(symbols ...string) Request {
	return Request{Symbols: symbols, Budget: 30, StockLimit: domain.CommonPriceLimit(50), PredictPeriodDays: 30}
}

func waitTerminal(t *testing.T, repo *Repository, id string) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		j, err := repo.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestRunner_ExecuteWithAllocationService(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	cfg := evolution.DefaultConfig()
	cfg.PopulationSize = 40
	cfg.Generations = 60
	cfg.Seed = 1
	service := allocation.NewService(nil, cfg, allocation.DefaultRiskWeights(), zerolog.Nop())
	notifier := &recordingNotifier{}

	runner := NewRunner(repo, &fakeBuilder{instruments: testInstruments()}, service, notifier, 2, zerolog.Nop())

	job, err := runner.Execute(context.Background(), commonRequest("low", "MID", "HIGH"))
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, job.Status)
	assert.Equal(t, []string{"LOW", "MID", "HIGH"}, job.Symbols)

	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, stored.Status)

	report, err := repo.GetResult(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, report.Modes, 2)
	for _, mr := range report.Modes {
		assert.LessOrEqual(t, mr.Totals.Cost, 30.0)
	}

	messages := notifier.sent()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], job.ID)
	assert.Contains(t, messages[0], "Budget:")
}

func TestRunner_SubmitRunsInBackground(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	optimizer := &recordingOptimizer{}
	runner := NewRunner(repo, &fakeBuilder{instruments: testInstruments()}, optimizer, nil, 2, zerolog.Nop())
	runner.newID = func() string { return "job-1" }

	job, err := runner.Submit(context.Background(), commonRequest("LOW"))
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, StatusCreated, job.Status)

	final := waitTerminal(t, repo, "job-1")
	assert.Equal(t, StatusFinished, final.Status)

	_, err = repo.GetResult(context.Background(), "job-1")
	assert.NoError(t, err)
	require.NoError(t, runner.Shutdown(context.Background()))
}

func TestRunner_BuildFailureMarksJobFailed(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	notifier := &recordingNotifier{}
	runner := NewRunner(repo, &fakeBuilder{err: errors.New("market data down")}, &recordingOptimizer{}, notifier, 1, zerolog.Nop())

	job, err := runner.Execute(context.Background(), commonRequest("LOW"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)

	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "market data down")

	_, err = repo.GetResult(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrResultNotReady)
	assert.Empty(t, notifier.sent())
}

func TestRunner_OptimizerFailureMarksJobFailed(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	optimizer := &recordingOptimizer{err: evolution.ErrInvalidConfig}
	runner := NewRunner(repo, &fakeBuilder{instruments: testInstruments()}, optimizer, nil, 1, zerolog.Nop())

	job, err := runner.Execute(context.Background(), commonRequest("LOW"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Error, "optimization")
}

func TestRunner_NotifyFailureDoesNotFailJob(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	runner := NewRunner(repo, &fakeBuilder{instruments: testInstruments()}, &recordingOptimizer{}, notifier, 1, zerolog.Nop())

	job, err := runner.Execute(context.Background(), commonRequest("LOW"))
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, job.Status)
	assert.Len(t, notifier.sent(), 1)
}

func TestRunner_SubmitBusy(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	block := make(chan struct{})
	runner := NewRunner(repo, &fakeBuilder{instruments: testInstruments(), block: block}, &recordingOptimizer{}, nil, 1, zerolog.Nop())

	first, err := runner.Submit(context.Background(), commonRequest("LOW"))
	require.NoError(t, err)

	_, err = runner.Submit(context.Background(), commonRequest("MID"))
	assert.ErrorIs(t, err, ErrRunnerBusy)

	jobs, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	close(block)
	assert.Equal(t, StatusFinished, waitTerminal(t, repo, first.ID).Status)

	require.Eventually(t, func() bool {
		_, err := runner.Submit(context.Background(), commonRequest("MID"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, runner.Shutdown(context.Background()))
}

func TestRunner_ShutdownFailsRunningJobs(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	runner := NewRunner(repo, &fakeBuilder{instruments: testInstruments(), block: make(chan struct{})}, &recordingOptimizer{}, nil, 1, zerolog.Nop())

	job, err := runner.Submit(context.Background(), commonRequest("LOW"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.Shutdown(ctx))

	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, context.Canceled.Error())
}

func TestRunner_InvalidRequestIsNotRecorded(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	runner := NewRunner(repo, &fakeBuilder{}, &recordingOptimizer{}, nil, 1, zerolog.Nop())

	_, err := runner.Submit(context.Background(), Request{Budget: 10, StockLimit: domain.CommonPriceLimit(5)})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = runner.Execute(context.Background(), Request{Symbols: []string{"LOW"}, Budget: -1, StockLimit: domain.CommonPriceLimit(5)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	jobs, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRunner_PerInstrumentLimitsFollowBuiltInstruments(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	optimizer := &recordingOptimizer{}
	runner := NewRunner(repo, &fakeBuilder{instruments: testInstruments()}, optimizer, nil, 1, zerolog.Nop())

	req := Request{
		Symbols:    []string{"LOW", "GONE", "HIGH"},
		StockLimit: domain.StockLimit{Type: domain.StockLimitCount, Limits: []float64{1, 2, 3}},
		Budget:     30,
	}
	job, err := runner.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, job.Status)

	require.Len(t, optimizer.limits, 1)
	assert.Equal(t, []float64{1, 3}, optimizer.limits[0].Limits)
}
