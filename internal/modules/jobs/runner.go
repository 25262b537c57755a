package jobs

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/allocation"
)

// DefaultMaxConcurrent bounds jobs in flight when none is configured.
const DefaultMaxConcurrent = 4

// JobStore persists jobs and their reports.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	UpdateStatus(ctx context.Context, id string, status Status, errText string) error
	SaveResult(ctx context.Context, id string, report *allocation.Report) error
}

// InstrumentBuilder turns symbols into instrument records.
type InstrumentBuilder interface {
	Build(ctx context.Context, symbols []string, periodDays int) ([]domain.Instrument, error)
}

// Optimizer produces the allocation report for a set of instruments.
type Optimizer interface {
	OptimizeWithLimit(ctx context.Context, instruments []domain.Instrument, budget float64, limit domain.StockLimit) (*allocation.Report, error)
}

// Runner executes jobs: build instruments, optimize, save the report and
// notify. At most maxConcurrent jobs run at once.
type Runner struct {
	store     JobStore
	builder   InstrumentBuilder
	optimizer Optimizer
	notifier  domain.Notifier
	sem       *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	newID func() string
	log   zerolog.Logger
}

// NewRunner creates a runner. notifier may be nil.
func NewRunner(
	store JobStore,
	builder InstrumentBuilder,
	optimizer Optimizer,
	notifier domain.Notifier,
	maxConcurrent int,
	log zerolog.Logger,
) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:     store,
		builder:   builder,
		optimizer: optimizer,
		notifier:  notifier,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:       ctx,
		cancel:    cancel,
		newID:     func() string { return uuid.New().String() },
		log:       log.With().Str("component", "job_runner").Logger(),
	}
}

// Submit records a new job and runs it in the background. It returns
// ErrRunnerBusy without recording anything when the runner is full.
func (r *Runner) Submit(ctx context.Context, req Request) (*Job, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !r.sem.TryAcquire(1) {
		return nil, ErrRunnerBusy
	}

	job, err := r.create(ctx, req)
	if err != nil {
		r.sem.Release(1)
		return nil, err
	}

	snapshot := *job
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		r.process(r.ctx, job)
	}()

	return &snapshot, nil
}

// Execute records a new job and runs it before returning, waiting for a free
// slot if needed. The returned job carries the final status.
func (r *Runner) Execute(ctx context.Context, req Request) (*Job, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a job slot: %w", err)
	}
	defer r.sem.Release(1)

	job, err := r.create(ctx, req)
	if err != nil {
		return nil, err
	}
	r.process(ctx, job)
	return job, nil
}

// Shutdown cancels running background jobs and waits for them to record
// their final status, or for ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) create(ctx context.Context, req Request) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:                r.newID(),
		Symbols:           req.Symbols,
		StockLimit:        req.StockLimit,
		Budget:            req.Budget,
		PredictPeriodDays: req.PredictPeriodDays,
		Status:            StatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.store.Create(ctx, job); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("job_id", job.ID).
		Strs("symbols", job.Symbols).
		Float64("budget", job.Budget).
		Int("predict_period_days", job.PredictPeriodDays).
		Msg("Job created")
	return job, nil
}

// process runs the job steps in order. A failing step marks the job FAILED
// with the error text; later steps are skipped.
func (r *Runner) process(ctx context.Context, job *Job) {
	log := r.log.With().Str("job_id", job.ID).Logger()
	start := time.Now()

	if err := r.setStatus(ctx, job, StatusPreparingData, ""); err != nil {
		r.fail(ctx, job, err)
		return
	}
	instruments, err := r.builder.Build(ctx, job.Symbols, job.PredictPeriodDays)
	if err != nil {
		r.fail(ctx, job, fmt.Errorf("preparing data: %w", err))
		return
	}

	if err := r.setStatus(ctx, job, StatusOptimization, ""); err != nil {
		r.fail(ctx, job, err)
		return
	}
	limit := alignLimit(job.StockLimit, job.Symbols, instruments)
	report, err := r.optimizer.OptimizeWithLimit(ctx, instruments, job.Budget, limit)
	if err != nil {
		r.fail(ctx, job, fmt.Errorf("optimization: %w", err))
		return
	}

	if err := r.store.SaveResult(ctx, job.ID, report); err != nil {
		r.fail(ctx, job, fmt.Errorf("saving result: %w", err))
		return
	}
	if err := r.setStatus(ctx, job, StatusFinished, ""); err != nil {
		r.fail(ctx, job, err)
		return
	}

	log.Info().
		Int("instruments", len(instruments)).
		Dur("duration", time.Since(start)).
		Msg("Job finished")

	r.notify(ctx, job, report)
}

func (r *Runner) setStatus(ctx context.Context, job *Job, status Status, errText string) error {
	if err := r.store.UpdateStatus(ctx, job.ID, status, errText); err != nil {
		return err
	}
	job.Status = status
	job.Error = errText
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Runner) fail(ctx context.Context, job *Job, cause error) {
	r.log.Error().Err(cause).Str("job_id", job.ID).Str("status", string(job.Status)).Msg("Job failed")

	// The failure must be recorded even when ctx is what failed the job.
	if err := r.setStatus(context.WithoutCancel(ctx), job, StatusFailed, cause.Error()); err != nil {
		r.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job failure")
	}
}

func (r *Runner) notify(ctx context.Context, job *Job, report *allocation.Report) {
	if r.notifier == nil {
		return
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Job %s finished\n\n", job.ID)
	if err := allocation.Render(&buf, *report); err != nil {
		r.log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to render report")
		return
	}
	if err := r.notifier.Notify(ctx, buf.String()); err != nil {
		r.log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to send notification")
	}
}

// alignLimit keeps the per-instrument limits of the symbols that produced an
// instrument, in instrument order. Common limits pass through unchanged.
func alignLimit(limit domain.StockLimit, symbols []string, instruments []domain.Instrument) domain.StockLimit {
	if limit.Common != nil || len(limit.Limits) != len(symbols) {
		return limit
	}
	bySymbol := make(map[string]float64, len(symbols))
	for i, s := range symbols {
		bySymbol[s] = limit.Limits[i]
	}
	aligned := make([]float64, 0, len(instruments))
	for _, inst := range instruments {
		aligned = append(aligned, bySymbol[inst.Symbol])
	}
	limit.Limits = aligned
	return limit
}
