package fallback

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/config"
)

// drivers builds one instance of every driver for contract tests.
func drivers(t *testing.T) map[string]KV {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sqliteKV, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "fallback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteKV.Close() })

	return map[string]KV{
		"memory": NewMemoryKV(),
		"redis":  NewRedisKV(client, "herald-test"),
		"sqlite": sqliteKV,
	}
}

func TestKV_Contract(t *testing.T) {
	ctx := context.Background()

	for name, kv := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, kv.Driver())
			require.NoError(t, kv.Ping(ctx))

			t.Run("unwritten collection is empty", func(t *testing.T) {
				written, err := kv.Written(ctx, "segments")
				require.NoError(t, err)
				assert.False(t, written)

				all, err := kv.Load(ctx, "segments")
				require.NoError(t, err)
				assert.Empty(t, all)

				got, err := kv.Get(ctx, "segments", "s1")
				require.NoError(t, err)
				assert.Empty(t, got)
			})

			t.Run("put then get returns only found ids", func(t *testing.T) {
				require.NoError(t, kv.Put(ctx, "campaigns", map[string][]byte{
					"c1": []byte(`{"id":"c1"}`),
					"c2": []byte(`{"id":"c2"}`),
				}))

				got, err := kv.Get(ctx, "campaigns", "c1", "missing")
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.JSONEq(t, `{"id":"c1"}`, string(got["c1"]))

				all, err := kv.Load(ctx, "campaigns")
				require.NoError(t, err)
				assert.Len(t, all, 2)
			})

			t.Run("put overwrites single entry", func(t *testing.T) {
				require.NoError(t, kv.Put(ctx, "messages", map[string][]byte{"m1": []byte(`1`), "m2": []byte(`2`)}))
				require.NoError(t, kv.Put(ctx, "messages", map[string][]byte{"m1": []byte(`10`)}))

				all, err := kv.Load(ctx, "messages")
				require.NoError(t, err)
				assert.Equal(t, map[string][]byte{"m1": []byte(`10`), "m2": []byte(`2`)}, all)
			})

			t.Run("collections are isolated", func(t *testing.T) {
				require.NoError(t, kv.Put(ctx, "segments", map[string][]byte{"c1": []byte(`{"id":"seg"}`)}))

				got, err := kv.Get(ctx, "campaigns", "c1")
				require.NoError(t, err)
				assert.JSONEq(t, `{"id":"c1"}`, string(got["c1"]))
			})

			t.Run("delete removes and tolerates missing ids", func(t *testing.T) {
				require.NoError(t, kv.Put(ctx, "customers", map[string][]byte{"u1": []byte(`{}`)}))
				require.NoError(t, kv.Delete(ctx, "customers", "u1", "nope"))
				require.NoError(t, kv.Delete(ctx, "customers", "u1"))
				require.NoError(t, kv.Delete(ctx, "customers"))

				all, err := kv.Load(ctx, "customers")
				require.NoError(t, err)
				assert.Empty(t, all)

				written, err := kv.Written(ctx, "customers")
				require.NoError(t, err)
				assert.True(t, written, "emptied collection still counts as written")
			})

			t.Run("empty put marks collection written", func(t *testing.T) {
				require.NoError(t, kv.Put(ctx, "journal", map[string][]byte{}))

				written, err := kv.Written(ctx, "journal")
				require.NoError(t, err)
				assert.True(t, written)
			})
		})
	}
}

func TestKV_ManyEntries(t *testing.T) {
	ctx := context.Background()
	const n = 1200

	for name, kv := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			entries := make(map[string][]byte, n)
			ids := make([]string, 0, n)
			for i := range n {
				id := fmt.Sprintf("log-%04d", i)
				entries[id] = []byte(fmt.Sprintf(`{"id":%q}`, id))
				ids = append(ids, id)
			}
			require.NoError(t, kv.Put(ctx, "communication_logs", entries))

			got, err := kv.Get(ctx, "communication_logs", ids...)
			require.NoError(t, err)
			assert.Len(t, got, n)

			require.NoError(t, kv.Delete(ctx, "communication_logs", ids[:n/2]...))
			all, err := kv.Load(ctx, "communication_logs")
			require.NoError(t, err)
			assert.Len(t, all, n/2)
			assert.NotContains(t, all, ids[0])
			assert.Contains(t, all, ids[n-1])
		})
	}
}

func TestMemoryKV_IsolatesCallerBuffers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewMemoryKV()

	buf := []byte("abc")
	require.NoError(t, kv.Put(ctx, "c", map[string][]byte{"k": buf}))
	buf[0] = 'z'

	got, err := kv.Get(ctx, "c", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got["k"]))

	got["k"][1] = 'z'
	again, _ := kv.Load(ctx, "c")
	assert.Equal(t, "abc", string(again["k"]))
}

func TestMemoryKV_Close(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Close())

	assert.ErrorIs(t, kv.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, kv.Put(ctx, "c", nil), ErrClosed)
	assert.ErrorIs(t, kv.Delete(ctx, "c", "k"), ErrClosed)
	_, err := kv.Get(ctx, "c", "k")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = kv.Load(ctx, "c")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = kv.Written(ctx, "c")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRedisKV_Namespacing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, NewRedisKV(client, "herald").Put(ctx, "segments", map[string][]byte{"s1": []byte(`{}`)}))
	require.NoError(t, NewRedisKV(client, "").Put(ctx, "segments", map[string][]byte{"s1": []byte(`[1]`)}))

	assert.Equal(t, `{}`, mr.HGet("herald:fallback:segments", "s1"))
	assert.Equal(t, `[1]`, mr.HGet("fallback:segments", "s1"))

	ok, err := mr.SIsMember("herald:fallback:collections", "segments")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisKV_ServerDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	kv := NewRedisKV(client, "herald")

	mr.Close()

	assert.Error(t, kv.Ping(ctx))
	_, err := kv.Get(ctx, "segments", "s1")
	assert.Error(t, err)
	assert.Error(t, kv.Put(ctx, "segments", map[string][]byte{"s1": nil}))
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "segments", map[string][]byte{"s1": []byte(`{"id":"s1"}`)}))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	written, err := second.Written(ctx, "segments")
	require.NoError(t, err)
	assert.True(t, written)

	got, err := second.Get(ctx, "segments", "s1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"s1"}`, string(got["s1"]))
}

func TestNew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name       string
		cfg        *config.FallbackConfig
		withRedis  bool
		wantDriver string
		wantErr    bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "memory", cfg: &config.FallbackConfig{Driver: config.FallbackDriverMemory}, wantDriver: "memory"},
		{name: "sqlite in memory", cfg: &config.FallbackConfig{Driver: config.FallbackDriverSQLite, SQLitePath: ":memory:"}, wantDriver: "sqlite"},
		{name: "redis without client", cfg: &config.FallbackConfig{Driver: config.FallbackDriverRedis}, wantErr: true},
		{name: "redis", cfg: &config.FallbackConfig{Driver: config.FallbackDriverRedis, KeyPrefix: "h"}, withRedis: true, wantDriver: "redis"},
		{name: "unknown", cfg: &config.FallbackConfig{Driver: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var client *redis.Client
			if tt.withRedis {
				mr := miniredis.RunT(t)
				client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
				defer client.Close()
			}

			kv, err := New(ctx, tt.cfg, client)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer kv.Close()
			assert.Equal(t, tt.wantDriver, kv.Driver())
		})
	}
}
