package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig configures the Redis state store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires idle device state. Zero keeps it forever.
	TTL time.Duration
}

// Redis keeps device state in Redis so several BFF replicas share it.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("state: connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Redis{client: client, ttl: cfg.TTL, prefix: "bh:", logger: logger}, nil
}

// Load decodes the value at key into v.
func (r *Redis) Load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, &domain.ErrExternalService{Service: "redis", Err: err}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode state %q: %w", key, err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, r.prefix+key, r.ttl).Err(); err != nil {
			r.logger.Debug("state: failed to extend ttl", zap.String("key", key), zap.Error(err))
		}
	}
	return true, nil
}

// Save stores v at key.
func (r *Redis) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %q: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, r.ttl).Err(); err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// Delete removes keys.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
