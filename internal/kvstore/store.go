// Package kvstore хранит небольшие JSON-значения по ключу: последние
// удачные снимки деривативов и позиции пользователя.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/skalibog/btcscope/internal/config"
)

var (
	// ErrNotFound ключ отсутствует или истек
	ErrNotFound = errors.New("kvstore: ключ не найден")
	// ErrNotConfigured хранилище не настроено
	ErrNotConfigured = errors.New("kvstore: хранилище не настроено")
)

// Store интерфейс key-value хранилища
type Store interface {
	IsConfigured() bool
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// New создает хранилище по конфигурации
func New(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisStore(ctx, cfg)
	case "memory":
		return NewMemoryStore(), nil
	case "none", "":
		return NullStore{}, nil
	default:
		return nil, fmt.Errorf("неизвестный тип кэша: %q", cfg.Type)
	}
}

// GetJSON читает и декодирует значение
func GetJSON(ctx context.Context, s Store, key string, dest interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("ошибка декодирования значения %s: %w", key, err)
	}
	return nil
}

// SetJSON кодирует и сохраняет значение
func SetJSON(ctx context.Context, s Store, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка кодирования значения %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}
