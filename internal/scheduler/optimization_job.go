package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/modules/jobs"
)

// JobExecutor runs one optimization job to completion.
type JobExecutor interface {
	Execute(ctx context.Context, req jobs.Request) (*jobs.Job, error)
}

// OptimizationJob runs the configured optimization request on a schedule.
type OptimizationJob struct {
	executor JobExecutor
	request  jobs.Request
	timeout  time.Duration
	log      zerolog.Logger
}

// NewOptimizationJob creates a recurring optimization job. timeout <= 0 means
// no limit.
func NewOptimizationJob(executor JobExecutor, request jobs.Request, timeout time.Duration, log zerolog.Logger) *OptimizationJob {
	return &OptimizationJob{
		executor: executor,
		request:  request,
		timeout:  timeout,
		log:      log.With().Str("job", "scheduled_optimization").Logger(),
	}
}

// Name returns the job name
func (j *OptimizationJob) Name() string {
	return "scheduled_optimization"
}

// Run executes the request and reports a failed job as an error.
func (j *OptimizationJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	job, err := j.executor.Execute(ctx, j.request)
	if err != nil {
		return fmt.Errorf("failed to run scheduled optimization: %w", err)
	}
	if job.Status == jobs.StatusFailed {
		return fmt.Errorf("scheduled optimization %s failed: %s", job.ID, job.Error)
	}

	j.log.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("Scheduled optimization completed")
	return nil
}
