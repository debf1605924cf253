package kvstore

import (
	"context"
	"time"
)

// NullStore пустое хранилище: ничего не хранит и сообщает, что не настроено
type NullStore struct{}

func (NullStore) IsConfigured() bool { return false }

func (NullStore) Get(context.Context, string) ([]byte, error) { return nil, ErrNotFound }

func (NullStore) Set(context.Context, string, []byte, time.Duration) error { return ErrNotConfigured }

func (NullStore) Remove(context.Context, string) error { return nil }

func (NullStore) Keys(context.Context, string) ([]string, error) { return nil, nil }

func (NullStore) Close() error { return nil }
