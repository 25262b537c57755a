// Package portfolio keeps the share counts already held, which discount the
// profit of instruments during optimization.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
)

// ErrPositionNotFound is returned when a symbol has no position.
var ErrPositionNotFound = errors.New("position not found")

// Position is the number of units held of one symbol.
type Position struct {
	Symbol    string    `json:"symbol"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PositionRepository handles position database operations
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// NormalizeSymbol trims and upper-cases a symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// GetAll returns all positions ordered by symbol
func (r *PositionRepository) GetAll(ctx context.Context) ([]Position, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT symbol, quantity, updated_at FROM positions ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []Position{}
	for rows.Next() {
		var pos Position
		var updatedAt int64
		if err := rows.Scan(&pos.Symbol, &pos.Quantity, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		pos.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}

// GetBySymbol returns one position
func (r *PositionRepository) GetBySymbol(ctx context.Context, symbol string) (*Position, error) {
	var pos Position
	var updatedAt int64
	err := r.db.QueryRowContext(ctx,
		"SELECT symbol, quantity, updated_at FROM positions WHERE symbol = ?",
		NormalizeSymbol(symbol),
	).Scan(&pos.Symbol, &pos.Quantity, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", symbol, err)
	}
	pos.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &pos, nil
}

// Upsert sets the held quantity of a symbol
func (r *PositionRepository) Upsert(ctx context.Context, symbol string, quantity int) error {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative, got %d", quantity)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions (symbol, quantity, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET quantity = excluded.quantity, updated_at = excluded.updated_at`,
		symbol, quantity, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", symbol, err)
	}

	r.log.Debug().Str("symbol", symbol).Int("quantity", quantity).Msg("Position updated")
	return nil
}

// Delete removes a position
func (r *PositionRepository) Delete(ctx context.Context, symbol string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM positions WHERE symbol = ?", NormalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to delete position %s: %w", symbol, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, symbol)
	}
	return nil
}

// GetOwnershipCounts returns symbol -> held quantity for every non-empty position.
func (r *PositionRepository) GetOwnershipCounts(ctx context.Context) (domain.OwnershipMap, error) {
	positions, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(domain.OwnershipMap, len(positions))
	for _, pos := range positions {
		if pos.Quantity > 0 {
			counts[pos.Symbol] = pos.Quantity
		}
	}
	return counts, nil
}

var _ domain.OwnershipSource = (*PositionRepository)(nil)
