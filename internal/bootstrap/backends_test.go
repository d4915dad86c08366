package bootstrap_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/bootstrap"
	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/store"
)

func baseConfig() *config.Config {
	return &config.Config{
		Fallback: config.FallbackConfig{
			Driver:          config.FallbackDriverMemory,
			KeyPrefix:       "herald",
			ReprobeInterval: time.Second,
		},
	}
}

func checkerNames(b *bootstrap.Backends) []string {
	var names []string
	for _, c := range b.Checkers() {
		names = append(names, c.Name())
	}
	return names
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Should serve from the fallback store without a database", func(t *testing.T) {
		b, err := bootstrap.Open(ctx, baseConfig(), logger)
		require.NoError(t, err)
		defer b.Close()

		assert.Nil(t, b.DB)
		assert.Nil(t, b.Redis)
		assert.Equal(t, "memory", b.KV.Driver())
		assert.False(t, b.Repo.PrimaryAvailable())
		assert.Equal(t, []string{"fallback"}, checkerNames(b))

		require.NoError(t, b.Repo.UpsertCustomers(ctx, []*store.Customer{{ID: "c1", Name: "Ann", Email: "ann@example.com"}}))
		all, err := b.Repo.ListAllCustomers(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Should back the fallback store with redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := baseConfig()
		cfg.Fallback.Driver = config.FallbackDriverRedis
		cfg.Redis = config.RedisConfig{
			Host:           mr.Host(),
			Port:           mr.Port(),
			PoolSize:       2,
			DialTimeout:    time.Second,
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			PoolTimeout:    time.Second,
			PingMaxRetries: 1,
			PingBackoff:    time.Millisecond,
		}

		b, err := bootstrap.Open(ctx, cfg, logger)
		require.NoError(t, err)
		defer b.Close()

		assert.NotNil(t, b.Redis)
		assert.Equal(t, "redis", b.KV.Driver())
		assert.ElementsMatch(t, []string{"redis", "fallback"}, checkerNames(b))

		require.NoError(t, b.Repo.UpsertCustomers(ctx, []*store.Customer{{ID: "c1", Name: "Ann", Email: "ann@example.com"}}))
		assert.NotEmpty(t, mr.Keys())
	})

	t.Run("Should open a sqlite fallback file", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Fallback.Driver = config.FallbackDriverSQLite
		cfg.Fallback.SQLitePath = filepath.Join(t.TempDir(), "fallback.db")

		b, err := bootstrap.Open(ctx, cfg, logger)
		require.NoError(t, err)
		defer b.Close()

		assert.Equal(t, "sqlite", b.KV.Driver())
		for _, c := range b.Checkers() {
			assert.NoError(t, c.Check(ctx), c.Name())
		}
	})

	t.Run("Should fail when the redis driver has no redis settings", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Fallback.Driver = config.FallbackDriverRedis

		_, err := bootstrap.Open(ctx, cfg, logger)
		assert.ErrorContains(t, err, "fallback store")
	})

	t.Run("Should fail when postgres is unreachable", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Database = config.DatabaseConfig{
			Host:           "127.0.0.1",
			Port:           "1",
			Name:           "herald",
			User:           "herald",
			SSLMode:        "disable",
			MaxConns:       1,
			ConnectTimeout: 500 * time.Millisecond,
			PingMaxRetries: 1,
			PingBackoff:    time.Millisecond,
		}

		_, err := bootstrap.Open(ctx, cfg, logger)
		assert.ErrorContains(t, err, "postgres")
	})
}
