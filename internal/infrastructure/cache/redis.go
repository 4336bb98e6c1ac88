package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
)

// NewRedisClient builds the shared redis client used for health windows, active
// vendor caches and sync locks.
func NewRedisClient(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.URL,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// redisCache implements the Cache interface using Redis.
type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache wraps an existing redis client in the Cache interface.
func NewRedisCache(client *redis.Client, logger *zap.Logger) Cache {
	return &redisCache{client: client, logger: logger}
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheKeyNotFound{Key: key}
		}
		r.logger.Error("redis get failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return result, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Error("redis set failed",
			zap.String("key", key),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("redis delete failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *redisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	result, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		r.logger.Error("redis setnx failed",
			zap.String("key", key),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return result, nil
}

func (r *redisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		r.logger.Error("json unmarshal failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("json unmarshal failed: %w", err)
	}
	return nil
}

func (r *redisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Error("json marshal failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("json marshal failed: %w", err)
	}
	return r.Set(ctx, key, data, ttl)
}

func (r *redisCache) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("redis close failed", zap.Error(err))
		return fmt.Errorf("redis close failed: %w", err)
	}
	return nil
}
