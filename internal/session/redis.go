package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions as session:<token> keys with a TTL.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Set(ctx context.Context, token, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, redisKeyPrefix+token, value, ttl).Err()
}

// Touch uses SET XX so a key removed by a concurrent logout is not
// written back.
func (s *RedisStore) Touch(ctx context.Context, token, value string, ttl time.Duration) error {
	ok, err := s.rdb.SetXX(ctx, redisKeyPrefix+token, value, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (string, error) {
	value, err := s.rdb.Get(ctx, redisKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return value, err
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	n, err := s.rdb.Del(ctx, redisKeyPrefix+token).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Name() string { return "redis" }
