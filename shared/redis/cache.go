package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ViewCache is a generic JSON-backed Redis cache for read model projections.
// Bind it to a specific view type T; each instance holds a Redis client and an
// optional TTL (pass 0 for keys that should not expire). Every entry carries a
// version so an older projection never replaces a newer one.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewViewCache[T any](client *goredis.Client, ttl time.Duration, logger *zap.Logger) *ViewCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewCache[T]{client: client, ttl: ttl, logger: logger}
}

// Get retrieves and unmarshals a value from Redis.
// Returns (nil, false) on any miss or deserialisation error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.logger.Warn("view cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("view cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &v, true
}

// setIfNewer writes the view and its version unless the stored version is
// higher. Equal versions overwrite, so re-projecting the same state is a no-op.
var setIfNewer = goredis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and tonumber(current) > tonumber(ARGV[2]) then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

func versionKey(key string) string { return key + ":version" }

// Set stores value under key unless a newer version is already cached, and
// reports whether it wrote. A failed write is logged, not returned; readers
// fall back to the ledger.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T, version int64) bool {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("view cache marshal failed", zap.String("key", key), zap.Error(err))
		return false
	}
	written, err := setIfNewer.Run(ctx, c.client,
		[]string{key, versionKey(key)},
		data, version, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		c.logger.Warn("view cache write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if written == 0 {
		c.logger.Debug("stale view not cached", zap.String("key", key), zap.Int64("version", version))
	}
	return written == 1
}

func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key, versionKey(key)).Err(); err != nil {
		c.logger.Warn("view cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
