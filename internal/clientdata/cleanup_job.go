package clientdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob prunes memo rows that are past their stale-fallback window.
// Rows that expired less than retention ago are kept for Get.
type CleanupJob struct {
	repo      *Repository
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewCleanupJob creates a cleanup job using StaleRetention.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:      repo,
		retention: StaleRetention,
		now:       time.Now,
		log:       log.With().Str("job", "memo_prune").Logger(),
	}
}

// Run deletes rows whose expires_at is older than now minus retention.
// Every table is attempted; the first failure is returned.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	pruned := zerolog.Dict()
	var total int64
	var firstErr error

	for _, table := range AllTables {
		n, err := j.repo.DeleteExpiredBefore(ctx, table, cutoff)
		if err != nil {
			j.log.Error().Err(err).Str("table", table).Msg("Failed to prune memo table")
			if firstErr == nil {
				firstErr = fmt.Errorf("prune %s: %w", table, err)
			}
			continue
		}
		pruned.Int64(table, n)
		total += n
	}

	event := j.log.Debug()
	if total > 0 {
		event = j.log.Info()
	}
	event.
		Time("cutoff", cutoff).
		Dict("pruned", pruned).
		Int64("total", total).
		Msg("Memo prune finished")

	return firstErr
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
