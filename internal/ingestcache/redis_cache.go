package ingestcache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"docmind/internal/apperr"
)

// RedisCache stores entries as a single Redis hash, one field per archive
// path, so a watcher process and a separately-deployed orchestrator
// process can share idempotency state without a common filesystem.
type RedisCache struct {
	client *redis.Client
	key    string
}

// NewRedisCache returns a RedisCache using the given client and hash key.
func NewRedisCache(client *redis.Client, hashKey string) *RedisCache {
	if hashKey == "" {
		hashKey = "docmind:ingest-cache"
	}
	return &RedisCache{client: client, key: hashKey}
}

func (c *RedisCache) Lookup(ctx context.Context, archivePath string) (Entry, bool, error) {
	raw, err := c.client.HGet(ctx, c.key, archivePath).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, apperr.New(apperr.Retriable, "redis hget", err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (c *RedisCache) MarkIndexed(ctx context.Context, archivePath string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return apperr.New(apperr.Retriable, "marshal cache entry", err)
	}
	if err := c.client.HSet(ctx, c.key, archivePath, data).Err(); err != nil {
		return apperr.New(apperr.Retriable, "redis hset", err)
	}
	return nil
}

func (c *RedisCache) EraseAll(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return apperr.New(apperr.Retriable, "redis del", err)
	}
	return nil
}
