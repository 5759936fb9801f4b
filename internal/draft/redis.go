package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cv:draft:template:"

// RedisStore 将草稿保存到 Redis，键带 TTL，过期即视为无草稿。
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore 构造 RedisStore；ttl<=0 表示永不过期。
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return redisKeyPrefix + Key(key)
}

// Load 读取草稿，不存在时返回 ok=false。
func (s *RedisStore) Load(ctx context.Context, key string) (Record, bool, error) {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("get draft %q: %w", key, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, false, fmt.Errorf("decode draft %q: %w", key, err)
	}
	return record, true, nil
}

// Save 整体覆盖草稿并刷新 TTL。
func (s *RedisStore) Save(ctx context.Context, key string, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode draft %q: %w", key, err)
	}
	if err := s.client.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set draft %q: %w", key, err)
	}
	return nil
}

// Delete 删除草稿，不存在时视为成功。
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("delete draft %q: %w", key, err)
	}
	return nil
}
