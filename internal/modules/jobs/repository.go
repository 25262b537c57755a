package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/allocator/internal/modules/allocation"
)

const jobColumns = "id, symbols, stock_limit, budget, predict_period_days, status, error, created_at, updated_at"

// Repository handles job and job result database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new job repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "jobs").Logger(),
	}
}

// Create inserts a new job
func (r *Repository) Create(ctx context.Context, job *Job) error {
	symbols, err := json.Marshal(job.Symbols)
	if err != nil {
		return fmt.Errorf("failed to marshal symbols: %w", err)
	}
	limit, err := json.Marshal(job.StockLimit)
	if err != nil {
		return fmt.Errorf("failed to marshal stock limit: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(symbols),
		string(limit),
		job.Budget,
		job.PredictPeriodDays,
		string(job.Status),
		nullString(job.Error),
		job.CreatedAt.Unix(),
		job.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns one job
func (r *Repository) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return job, nil
}

// List returns the most recent jobs first. limit <= 0 returns all jobs.
func (r *Repository) List(ctx context.Context, limit int) ([]Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs ORDER BY created_at DESC, id"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

// UpdateStatus moves a job to status. errText is stored for failed jobs.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, errText string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		string(status), nullString(errText), time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	r.log.Debug().Str("job_id", id).Str("status", string(status)).Msg("Job status updated")
	return nil
}

// SaveResult stores the report of a job, replacing any earlier one.
func (r *Repository) SaveResult(ctx context.Context, id string, report *allocation.Report) error {
	data, err := msgpack.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO job_results (job_id, report, created_at) VALUES (?, ?, ?)",
		id, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result of job %s: %w", id, err)
	}
	return nil
}

// GetResult returns the stored report of a job.
func (r *Repository) GetResult(ctx context.Context, id string) (*allocation.Report, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, "SELECT report FROM job_results WHERE job_id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: %s", ErrResultNotReady, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result of job %s: %w", id, err)
	}

	var report allocation.Report
	if err := msgpack.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report of job %s: %w", id, err)
	}
	return &report, nil
}

// DeleteFinishedBefore removes terminal jobs last updated before cutoff,
// together with their results.
func (r *Repository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const terminal = "status IN (?, ?) AND updated_at < ?"
	args := []interface{}{string(StatusFinished), string(StatusFailed), cutoff.Unix()}

	if _, err := tx.ExecContext(ctx, "DELETE FROM job_results WHERE job_id IN (SELECT id FROM jobs WHERE "+terminal+")", args...); err != nil {
		return 0, fmt.Errorf("failed to delete job results: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE "+terminal, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete jobs: %w", err)
	}
	if deleted, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("failed to count deleted jobs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                  Job
		symbols, limit       string
		status               string
		errText              sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&job.ID, &symbols, &limit, &job.Budget, &job.PredictPeriodDays,
		&status, &errText, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(symbols), &job.Symbols); err != nil {
		return nil, fmt.Errorf("failed to unmarshal symbols: %w", err)
	}
	if err := json.Unmarshal([]byte(limit), &job.StockLimit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stock limit: %w", err)
	}
	job.Status = Status(status)
	job.Error = errText.String
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	job.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
