package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultJobRetention is how long finished jobs are kept.
const DefaultJobRetention = 30 * 24 * time.Hour

// JobPruner deletes finished jobs older than a cutoff.
type JobPruner interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobHistoryCleanupJob removes old finished and failed jobs with their reports.
type JobHistoryCleanupJob struct {
	pruner    JobPruner
	retention time.Duration
	log       zerolog.Logger
}

// NewJobHistoryCleanupJob creates a cleanup job. retention <= 0 uses
// DefaultJobRetention.
func NewJobHistoryCleanupJob(pruner JobPruner, retention time.Duration, log zerolog.Logger) *JobHistoryCleanupJob {
	if retention <= 0 {
		retention = DefaultJobRetention
	}
	return &JobHistoryCleanupJob{
		pruner:    pruner,
		retention: retention,
		log:       log.With().Str("job", "job_history_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *JobHistoryCleanupJob) Name() string {
	return "job_history_cleanup"
}

// Run deletes jobs last updated before now - retention.
func (j *JobHistoryCleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.pruner.DeleteFinishedBefore(ctx, time.Now().Add(-j.retention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Old jobs removed")
	}
	return nil
}
