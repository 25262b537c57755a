// Package jobs runs optimizations asynchronously and keeps their status and
// reports in SQLite.
package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/allocator/internal/domain"
)

var (
	// ErrJobNotFound is returned when no job has the requested ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrResultNotReady is returned for a job that has no stored report yet.
	ErrResultNotReady = errors.New("job result not ready")
	// ErrRunnerBusy is returned by Submit when the runner is at capacity.
	ErrRunnerBusy = errors.New("too many jobs in progress")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid job request")
)

// DefaultPredictPeriodDays is the forecast horizon used when a request has none.
const DefaultPredictPeriodDays = 30

// Status is the lifecycle state of a job.
type Status string

const (
	StatusCreated       Status = "CREATED"
	StatusPreparingData Status = "PREPARING_DATA"
	StatusOptimization  Status = "OPTIMIZATION"
	StatusFinished      Status = "FINISHED"
	StatusFailed        Status = "FAILED"
)

// Terminal reports whether the job will not change any more.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// Job is one optimization request and its progress.
type Job struct {
	ID                string            `json:"id"`
	Symbols           []string          `json:"symbols"`
	StockLimit        domain.StockLimit `json:"stock_limit"`
	Budget            float64           `json:"budget"`
	PredictPeriodDays int               `json:"predict_period_days"`
	Status            Status            `json:"status"`
	Error             string            `json:"error,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Request is what a caller submits to start a job.
type Request struct {
	Symbols           []string          `json:"symbols"`
	StockLimit        domain.StockLimit `json:"stock_limit"`
	Budget            float64           `json:"budget"`
	PredictPeriodDays int               `json:"predict_period_days"`
}

// Normalize upper-cases and de-duplicates symbols and fills the default
// forecast horizon. Per-instrument limits follow their symbols.
func (r Request) Normalize() Request {
	perSymbol := r.StockLimit.Common == nil && len(r.StockLimit.Limits) == len(r.Symbols)

	seen := make(map[string]bool, len(r.Symbols))
	symbols := make([]string, 0, len(r.Symbols))
	var limits []float64
	for i, s := range r.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
		if perSymbol {
			limits = append(limits, r.StockLimit.Limits[i])
		}
	}
	r.Symbols = symbols
	if perSymbol {
		r.StockLimit.Limits = limits
	}
	if r.PredictPeriodDays == 0 {
		r.PredictPeriodDays = DefaultPredictPeriodDays
	}
	return r
}

// Validate checks a normalized request.
func (r Request) Validate() error {
	if len(r.Symbols) == 0 {
		return fmt.Errorf("%w: at least one symbol is required", ErrInvalidRequest)
	}
	if r.Budget < 0 {
		return fmt.Errorf("%w: budget must not be negative, got %v", ErrInvalidRequest, r.Budget)
	}
	if r.PredictPeriodDays < 1 {
		return fmt.Errorf("%w: predict period must be positive, got %d", ErrInvalidRequest, r.PredictPeriodDays)
	}
	if err := r.StockLimit.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.StockLimit.Common == nil && len(r.StockLimit.Limits) != len(r.Symbols) {
		return fmt.Errorf("%w: %d limits for %d symbols", ErrInvalidRequest, len(r.StockLimit.Limits), len(r.Symbols))
	}
	return nil
}
