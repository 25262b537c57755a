package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/database"
)

// walWarnFrames is the WAL size, in frames, above which a warning is logged.
const walWarnFrames = 1000

// DatabaseMaintenanceJob checks the integrity of each database and
// checkpoints its WAL.
type DatabaseMaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewDatabaseMaintenanceJob creates a maintenance job over the named
// databases. Nil entries are skipped.
func NewDatabaseMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *DatabaseMaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run checks every database. A failed integrity check stops the run, since a
// corrupted database cannot be repaired automatically.
func (j *DatabaseMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	checked := 0
	for _, name := range names {
		db := j.databases[name]
		if db == nil {
			continue
		}

		if err := checkIntegrity(ctx, db); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, frames, checkpointed int
		err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
		if err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("Failed to checkpoint WAL")
		} else if frames > walWarnFrames {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", frames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, forcing truncate checkpoint")
			if err := db.WALCheckpoint("TRUNCATE"); err != nil {
				j.log.Warn().Err(err).Str("database", name).Msg("Truncate checkpoint failed")
			}
		}

		checked++
	}

	j.log.Info().Int("checked", checked).Msg("Database maintenance completed")
	return nil
}

func checkIntegrity(ctx context.Context, db *database.DB) error {
	if err := db.QuickCheck(ctx); err != nil {
		return err
	}
	var result string
	if err := db.Conn().QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}
	return nil
}
