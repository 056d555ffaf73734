package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tariffmatch/backend/pkg/logger"
)

// ErrNotFound is returned by Store.Get when a key is absent.
var ErrNotFound = errors.New("cache: key not found")

// Store is the narrow contract the cache needs from its backing key/value
// store: get, set with TTL, pattern scan + delete, atomic counters, and
// size/memory metadata. Any store offering these primitives will do.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	Increment(ctx context.Context, key string, ttl time.Duration) error
	GetCounter(ctx context.Context, key string) (int64, error)
	CountPattern(ctx context.Context, pattern string) (int64, error)
	TotalKeys(ctx context.Context) (int64, error)
	MemoryUsageBytes(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis and verifies reachability with a ping.
func NewRedisStore(host string, port int, password string, db int) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis store initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &redisStore{client: client}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return data, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

func (s *redisStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64

	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		removed++
	}

	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan keys: %w", err)
	}

	return removed, nil
}

func (s *redisStore) Increment(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}
	if ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("failed to refresh counter ttl: %w", err)
		}
	}
	return nil
}

func (s *redisStore) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}
	return val, nil
}

func (s *redisStore) CountPattern(ctx context.Context, pattern string) (int64, error) {
	var count int64

	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan keys: %w", err)
	}

	return count, nil
}

func (s *redisStore) TotalKeys(ctx context.Context) (int64, error) {
	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get db size: %w", err)
	}
	return size, nil
}

func (s *redisStore) MemoryUsageBytes(ctx context.Context) (int64, error) {
	info, err := s.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get memory info: %w", err)
	}
	return parseUsedMemory(info), nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// parseUsedMemory extracts used_memory from an INFO memory section.
func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if value, found := strings.CutPrefix(line, "used_memory:"); found {
			bytes, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0
			}
			return bytes
		}
	}
	return 0
}
