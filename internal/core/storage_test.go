package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanctioncore/internal/catalog"
	"sanctioncore/internal/config"
	"sanctioncore/internal/infra/persistence/memory"
	"sanctioncore/internal/infra/persistence/redis"
	"sanctioncore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreDrivers(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenPersistentStore(ctx, config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, mem)
	require.NoError(t, mem.Close())

	path := filepath.Join(t.TempDir(), "nested", "sanctions.db")
	lite, err := OpenPersistentStore(ctx, config.StorageConfig{SQLitePath: path})
	require.NoError(t, err)
	require.IsType(t, &sqlite.Store{}, lite)
	assert.Equal(t, path, lite.(*sqlite.Store).Path())
	require.NoError(t, lite.Close())

	mr := miniredis.RunT(t)
	rs, err := OpenPersistentStore(ctx, config.StorageConfig{Driver: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &redis.Store{}, rs)
	require.NoError(t, rs.Close())
}

func TestOpenPersistentStoreErrors(t *testing.T) {
	ctx := context.Background()
	_, err := OpenPersistentStore(ctx, config.StorageConfig{Driver: "cassandra"})
	require.ErrorContains(t, err, "unknown storage driver cassandra")

	store, err := OpenPersistentStore(ctx, config.StorageConfig{Driver: "redis", RedisAddr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Nil(t, store)
}

// The engine behaves the same over every durable backend.
func TestServiceLifecycleOverDurableBackends(t *testing.T) {
	ctx := context.Background()
	backends := map[string]func(t *testing.T) config.StorageConfig{
		"sqlite": func(t *testing.T) config.StorageConfig {
			return config.StorageConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "s.db")}
		},
		"redis": func(t *testing.T) config.StorageConfig {
			return config.StorageConfig{Driver: "redis", RedisAddr: miniredis.RunT(t).Addr()}
		},
	}
	for name, cfg := range backends {
		t.Run(name, func(t *testing.T) {
			store, err := OpenPersistentStore(ctx, cfg(t))
			require.NoError(t, err)
			clock := newTestClock()
			svc := NewService(store, catalog.Default(), WithClock(clock.Now), WithIDGenerator(sequentialIDs()))
			t.Cleanup(func() { _ = svc.Close() })

			a := mustCreateSpecific(t, svc, 2, 0, 1)
			b := mustCreateSpecific(t, svc, 2, 1, 1)
			mustCreateSpecific(t, svc, 3, 2, 5)

			escalated, err := svc.EscalateOne(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, escalated.Quantity)

			clock.Advance(30 * time.Hour)
			report, err := svc.Sweep(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Escalated)

			swept, err := svc.Get(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 15, swept.Quantity)
			assert.True(t, swept.Deadline.Equal(report.RanAt.Add(SweepDeadlineExtension)))
			assert.Equal(t, int64(2), swept.Version)

			n, err := svc.CompleteAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			sum, err := svc.Summary(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, sum.ByStatus["done"])
		})
	}
}
