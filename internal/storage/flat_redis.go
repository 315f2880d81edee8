package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/claude/liftlog/internal/models"
)

// RedisFlat is a FlatStore on a Redis instance. All keys live under prefix
// so several trackers can share one database.
type RedisFlat struct {
	client *redis.Client
	prefix string
}

// NewRedisFlat wraps an existing client.
func NewRedisFlat(client *redis.Client, prefix string) *RedisFlat {
	return &RedisFlat{client: client, prefix: prefix}
}

// DialRedisFlat connects to addr and verifies the connection with PING.
func DialRedisFlat(ctx context.Context, addr, password string, db int, prefix string) (*RedisFlat, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return NewRedisFlat(client, prefix), nil
}

func (s *RedisFlat) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w: %w", key, err, models.ErrStorageFailure)
	}
	return v, true, nil
}

func (s *RedisFlat) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w: %w", key, err, models.ErrStorageFailure)
	}
	return nil
}

func (s *RedisFlat) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w: %w", key, err, models.ErrStorageFailure)
	}
	return nil
}

// Keys scans the prefix and returns the unprefixed keys sorted.
func (s *RedisFlat) Keys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		page, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w: %w", err, models.ErrStorageFailure)
		}
		for _, k := range page {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the underlying client.
func (s *RedisFlat) Close() error {
	return s.client.Close()
}
