package abicache

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chieftally:abi:"

// RedisStore should comply with the Store interface
var _ Store = &RedisStore{}

// RedisStore backs the ABI cache with Redis, for deployments where several
// observers share one cache. Entries are immutable so no TTL is set.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis instance at url
// (redis://[user:pass@]host:port/db) and verifies it is reachable.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, address common.Address) (string, bool, error) {
	abiJSON, err := s.client.Get(ctx, redisKeyPrefix+address.Hex()).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return abiJSON, true, nil
}

func (s *RedisStore) Put(ctx context.Context, address common.Address, abiJSON string) error {
	return s.client.Set(ctx, redisKeyPrefix+address.Hex(), abiJSON, 0).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
