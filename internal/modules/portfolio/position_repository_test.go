package portfolio

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	file, ok := database.SchemaFor(database.NameAllocator)
	require.True(t, ok)
	require.NoError(t, database.ApplySchema(db, file))

	t.Cleanup(func() { db.Close() })
	return db
}

func TestPositionRepository_UpsertAndGet(t *testing.T) {
	repo := NewPositionRepository(setupTestDB(t), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, " voo ", 5))
	require.NoError(t, repo.Upsert(ctx, "QQQ", 2))
	require.NoError(t, repo.Upsert(ctx, "VOO", 7))

	positions, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "QQQ", positions[0].Symbol)
	assert.Equal(t, "VOO", positions[1].Symbol)
	assert.Equal(t, 7, positions[1].Quantity)

	pos, err := repo.GetBySymbol(ctx, "voo")
	require.NoError(t, err)
	assert.Equal(t, 7, pos.Quantity)
	assert.False(t, pos.UpdatedAt.IsZero())
}

func TestPositionRepository_Validation(t *testing.T) {
	repo := NewPositionRepository(setupTestDB(t), zerolog.Nop())
	ctx := context.Background()

	assert.Error(t, repo.Upsert(ctx, "", 1))
	assert.Error(t, repo.Upsert(ctx, "VOO", -1))

	_, err := repo.GetBySymbol(ctx, "MISSING")
	assert.ErrorIs(t, err, ErrPositionNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "MISSING"), ErrPositionNotFound)
}

func TestPositionRepository_OwnershipCounts(t *testing.T) {
	repo := NewPositionRepository(setupTestDB(t), zerolog.Nop())
	ctx := context.Background()

	counts, err := repo.GetOwnershipCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)

	require.NoError(t, repo.Upsert(ctx, "VOO", 5))
	require.NoError(t, repo.Upsert(ctx, "SPY", 10))
	require.NoError(t, repo.Upsert(ctx, "VTI", 0))
	require.NoError(t, repo.Upsert(ctx, "ARKK", 1))
	require.NoError(t, repo.Delete(ctx, "ARKK"))

	counts, err = repo.GetOwnershipCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OwnershipMap{"VOO": 5, "SPY": 10}, counts)
	assert.Equal(t, 0, counts.Count("VTI"))
}
