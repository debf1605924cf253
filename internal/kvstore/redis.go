package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/logger"
	"go.uber.org/zap"
)

const keyPrefix = "btcscope:"

// RedisStore хранилище поверх Redis
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, cfg config.CacheConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis %s: %w", cfg.Address, err)
	}

	logger.Info("Подключено к Redis", zap.String("address", cfg.Address), zap.Int("db", cfg.DB))

	return &RedisStore{
		client: client,
		prefix: keyPrefix,
	}, nil
}

// IsConfigured всегда true для Redis
func (r *RedisStore) IsConfigured() bool {
	return true
}

// Get получает значение из Redis
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s из Redis: %w", key, err)
	}
	return data, nil
}

// Set устанавливает значение в Redis с TTL (0 без срока)
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи %s в Redis: %w", key, err)
	}
	return nil
}

// Remove удаляет ключ из Redis
func (r *RedisStore) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Keys возвращает ключи с префиксом через SCAN
func (r *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("ошибка сканирования ключей Redis: %w", err)
	}
	return keys, nil
}

// Close закрывает соединение
func (r *RedisStore) Close() error {
	return r.client.Close()
}
