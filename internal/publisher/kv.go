package publisher

import (
	"context"
	"errors"
	"time"

	rediscommon "rescue-console/common/redis"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss 表示缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// KVStore 抽象的 KV 存储（用于在单元测试中替换 Redis）
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// EventSink 追加事件到事件流
type EventSink interface {
	Append(ctx context.Context, stream, eventType string, data interface{}) error
}

// RedisKVStore 基于 go-redis 的 KV 与事件流实现
type RedisKVStore struct {
	client       *redis.Client
	streamMaxLen int64
}

func NewRedisKVStore(client *redis.Client, streamMaxLen int64) *RedisKVStore {
	return &RedisKVStore{client: client, streamMaxLen: streamMaxLen}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKVStore) Append(ctx context.Context, stream, eventType string, data interface{}) error {
	_, err := rediscommon.PublishJSONToStream(ctx, r.client, stream, eventType, data, r.streamMaxLen)
	return err
}
