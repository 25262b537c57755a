// Package clientdata memoizes external market data and forecasts.
// Entries are JSON blobs with an expiration time; stale entries stay readable
// as a fallback when the upstream call fails.
package clientdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Memo tables
const (
	TablePrices    = "current_prices"
	TableProfiles  = "instrument_profiles"
	TableForecasts = "price_forecasts"
)

// AllTables lists every memo table for cleanup operations.
var AllTables = []string{
	TablePrices,
	TableProfiles,
	TableForecasts,
}

// validTables is a set for O(1) table name validation.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Store is a memo store keyed by table and key.
type Store interface {
	// Store saves data with expiration = now + ttl.
	Store(ctx context.Context, table, key string, data interface{}, ttl time.Duration) error
	// GetIfFresh returns nil, nil when the key is missing or expired.
	GetIfFresh(ctx context.Context, table, key string) (json.RawMessage, error)
	// Get returns data regardless of expiration; nil, nil when missing.
	Get(ctx context.Context, table, key string) (json.RawMessage, error)
	Delete(ctx context.Context, table, key string) error
}

// ValidateTable ensures the table name is in our allowed list.
// Table names are interpolated into SQL, so anything else is rejected.
func ValidateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Repository is the SQLite Store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Store upserts data with expiration = now + ttl.
func (r *Repository) Store(ctx context.Context, table, key string, data interface{}, ttl time.Duration) error {
	if err := ValidateTable(table); err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (key, data, expires_at) VALUES (?, ?, ?)", table)
	if _, err := r.db.ExecContext(ctx, query, key, string(jsonData), time.Now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}
	return nil
}

// GetIfFresh returns data only if expires_at > now.
func (r *Repository) GetIfFresh(ctx context.Context, table, key string) (json.RawMessage, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT data FROM %s WHERE key = ? AND expires_at > ?", table)
	return r.scan(ctx, table, query, key, time.Now().Unix())
}

// Get returns data regardless of expiration status.
func (r *Repository) Get(ctx context.Context, table, key string) (json.RawMessage, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT data FROM %s WHERE key = ?", table)
	return r.scan(ctx, table, query, key)
}

func (r *Repository) scan(ctx context.Context, table, query string, args ...interface{}) (json.RawMessage, error) {
	var data string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}
	return json.RawMessage(data), nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, table, key string) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", table)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// DeleteExpiredBefore removes the rows of table that expired before cutoff.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpiredBefore(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	if err := ValidateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)
	result, err := r.db.ExecContext(ctx, query, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	return deleted, nil
}
