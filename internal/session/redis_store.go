package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/exora/cart-session/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(cfg *config.RedisConnect) (*redis.Client, error) {

	redisURL := cfg.GetDSN()
	slog.Info("Connecting to Redis", slog.String("url", fmt.Sprintf("redis://%s:<password>@%s:%s", cfg.Username, cfg.Host, cfg.Port)))

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.DB = cfg.DB

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("✅ Successfully connected to Redis")
	return client, nil
}

// NewRedisStore namespaces every key as <prefix>:session:<key>.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: Key(prefix, SessionKeyPrefix),
	}
}

func (r *RedisStore) key(key string) string {
	return Key(r.prefix, key)
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {

	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {

		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to get key %s from redis: %w", r.key(key), err)
	}

	return value, true, nil
}

// Set stores value without expiry; the login flow owns the session lifetime.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {

	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s in redis: %w", r.key(key), err)
	}

	return nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {

	if len(keys) == 0 {
		return nil
	}

	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = r.key(key)
	}

	if err := r.client.Del(ctx, namespaced...).Err(); err != nil {
		return fmt.Errorf("failed to delete session keys from redis: %w", err)
	}

	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
