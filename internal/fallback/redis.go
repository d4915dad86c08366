package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyNamespace separates fallback collections from any other data in the instance.
// Example: "herald:fallback:segments"
const keyNamespace = "fallback"

// collectionsKey names the set of collections that have been written.
const collectionsKey = "collections"

// RedisKV stores each collection as a Redis hash whose fields are entity ids.
type RedisKV struct {
	client *redis.Client
	prefix string
}

var _ KV = (*RedisKV)(nil)

// NewRedisKV wraps an existing client. The client lifecycle stays with the caller.
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	if client == nil {
		panic("fallback: redis client cannot be nil")
	}
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) key(k string) string {
	if r.prefix == "" {
		return fmt.Sprintf("%s:%s", keyNamespace, k)
	}
	return fmt.Sprintf("%s:%s:%s", r.prefix, keyNamespace, k)
}

// Load reads the whole collection (HGETALL).
func (r *RedisKV) Load(ctx context.Context, collection string) (map[string][]byte, error) {
	defer observe(r.Driver(), "load", time.Now())

	fields, err := r.client.HGetAll(ctx, r.key(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %q from redis: %w", collection, err)
	}

	out := make(map[string][]byte, len(fields))
	for id, v := range fields {
		out[id] = []byte(v)
	}
	return out, nil
}

// Get reads the requested fields (HMGET).
func (r *RedisKV) Get(ctx context.Context, collection string, ids ...string) (map[string][]byte, error) {
	defer observe(r.Driver(), "get", time.Now())

	out := make(map[string][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values, err := r.client.HMGet(ctx, r.key(collection), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %q from redis: %w", collection, err)
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[ids[i]] = []byte(s)
		}
	}
	return out, nil
}

// Put writes fields (HSET) and records the collection in one transaction.
func (r *RedisKV) Put(ctx context.Context, collection string, entries map[string][]byte) error {
	defer observe(r.Driver(), "put", time.Now())

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(entries) > 0 {
			fields := make(map[string]any, len(entries))
			for id, v := range entries {
				fields[id] = v
			}
			pipe.HSet(ctx, r.key(collection), fields)
		}
		pipe.SAdd(ctx, r.key(collectionsKey), collection)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %q to redis: %w", collection, err)
	}
	return nil
}

// Delete removes fields (HDEL).
func (r *RedisKV) Delete(ctx context.Context, collection string, ids ...string) error {
	defer observe(r.Driver(), "delete", time.Now())

	if len(ids) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, r.key(collection), ids...).Err(); err != nil {
		return fmt.Errorf("failed to delete from %q in redis: %w", collection, err)
	}
	return nil
}

// Written checks the collections set (SISMEMBER).
func (r *RedisKV) Written(ctx context.Context, collection string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key(collectionsKey), collection).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %q in redis: %w", collection, err)
	}
	return ok, nil
}

// Ping verifies the connection.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Driver returns "redis".
func (r *RedisKV) Driver() string { return "redis" }

// Close is a no-op: the shared client is closed by its owner.
func (r *RedisKV) Close() error { return nil }
