package cache

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const scanBatch = 100

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

type Redis struct {
	rdb    *goredis.Client
	logger *slog.Logger
}

func NewRedis(rdb *goredis.Client, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{rdb: rdb, logger: logger.With("component", "redis_cache")}
}

// Ping reports whether the backing store is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	raw, err := r.rdb.Get(ctx, Key(namespace, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn("cache_get_failed", "namespace", namespace, "error", err)
		return nil, false
	}
	return raw, true
}

func (r *Redis) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) {
	if err := r.rdb.Set(ctx, Key(namespace, key), value, effectiveTTL(ttl)).Err(); err != nil {
		r.logger.Warn("cache_set_failed", "namespace", namespace, "error", err)
	}
}

func (r *Redis) Delete(ctx context.Context, namespace, key string) {
	if err := r.rdb.Del(ctx, Key(namespace, key)).Err(); err != nil {
		r.logger.Warn("cache_delete_failed", "namespace", namespace, "error", err)
	}
}

// ClearNamespace walks the namespace with SCAN and deletes in batches.
func (r *Redis) ClearNamespace(ctx context.Context, namespace string) int {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, namespacePrefix(namespace)+"*", scanBatch).Result()
		if err != nil {
			r.logger.Warn("cache_clear_failed", "namespace", namespace, "error", err)
			return removed
		}
		if len(keys) > 0 {
			n, err := r.rdb.Del(ctx, keys...).Result()
			if err != nil {
				r.logger.Warn("cache_clear_failed", "namespace", namespace, "error", err)
				return removed
			}
			removed += int(n)
		}
		if next == 0 {
			return removed
		}
		cursor = next
	}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
