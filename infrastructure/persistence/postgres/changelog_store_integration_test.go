//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"rndindex/application/ports"
	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Run with: DATABASE_URL=postgres://... go test -tags integration ./infrastructure/persistence/postgres/
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	logger := zap.NewNop()
	require.NoError(t, RunMigrations(databaseURL, logger))

	ctx := context.Background()
	pool, err := Connect(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE change_log RESTART IDENTITY`)
	require.NoError(t, err)
	return pool
}

func setupStore(t *testing.T) (*ChangeLogStore, *AdvisoryLock) {
	t.Helper()
	pool := setupPool(t)
	logger := zap.NewNop()
	return NewChangeLogStore(pool, logger), NewAdvisoryLock(pool, "integration-test", logger)
}

func TestChangeLogStore_RoundTrip(t *testing.T) {
	// Arrange
	store, _ := setupStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx,
		entities.ChangeRecord{ObjectType: "mntner", Key: "test-mnt", Operation: entities.OperationCreate, Timestamp: base,
			Attributes: []entities.Attribute{entities.NewAttribute("mntner", "TEST-MNT")}},
		entities.ChangeRecord{ObjectType: "person", Key: "TP1-TEST", Operation: entities.OperationCreate, Timestamp: base.Add(time.Second),
			Attributes: []entities.Attribute{entities.NewAttribute("mnt-by", "TEST-MNT")}},
	))

	// Act
	watermark, err := store.Watermark(ctx)
	require.NoError(t, err)
	ids, err := store.ListObjects(ctx, 1)
	require.NoError(t, err)
	changes, err := store.GetChanges(ctx, valueobjects.MustObjectID("mntner", "TEST-MNT"), ports.Latest)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(2), watermark)
	assert.Equal(t, []valueobjects.ObjectID{valueobjects.MustObjectID("mntner", "TEST-MNT")}, ids)
	require.Len(t, changes, 1)
	assert.Equal(t, "TEST-MNT", changes[0].Key)
	assert.Equal(t, []entities.Attribute{entities.NewAttribute("mntner", "TEST-MNT")}, changes[0].Attributes)
	assert.True(t, base.Equal(changes[0].Timestamp))
}

func TestAdvisoryLock_Exclusive(t *testing.T) {
	_, lock := setupStore(t)
	ctx := context.Background()

	held, err := lock.Acquire(ctx, "run-1", time.Minute)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "run-2", time.Minute)
	assert.ErrorIs(t, err, ports.ErrLockHeld)

	require.NoError(t, held.Release(ctx))
	require.NoError(t, held.Release(ctx))

	again, err := lock.Acquire(ctx, "run-3", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestChangeLogStore_Append_WaitsForEarlierSequences(t *testing.T) {
	// Arrange
	pool := setupPool(t)
	store := NewChangeLogStore(pool, zap.NewNop())
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	pending, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer pending.Rollback(ctx)
	_, err = pending.Exec(ctx,
		`INSERT INTO change_log (object_type, pkey, operation, attributes, timestamp)
		 VALUES ('mntner', 'SLOW-MNT', 'create', '[]', $1)`,
		base,
	)
	require.NoError(t, err)

	// Act
	done := make(chan error, 1)
	go func() {
		done <- store.Append(ctx, entities.ChangeRecord{
			ObjectType: "mntner",
			Key:        "FAST-MNT",
			Operation:  entities.OperationCreate,
			Timestamp:  base.Add(time.Second),
		})
	}()

	// Assert
	select {
	case err := <-done:
		t.Fatalf("append committed ahead of an earlier sequence: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	watermark, err := store.Watermark(ctx)
	require.NoError(t, err)
	assert.Zero(t, watermark)

	require.NoError(t, pending.Commit(ctx))
	require.NoError(t, <-done)

	watermark, err = store.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), watermark)
	ids, err := store.ListObjects(ctx, watermark)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.ObjectID{
		valueobjects.MustObjectID("mntner", "FAST-MNT"),
		valueobjects.MustObjectID("mntner", "SLOW-MNT"),
	}, ids)
}
