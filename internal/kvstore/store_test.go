package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skalibog/btcscope/internal/config"
)

func TestMemoryStoreRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore().WithClock(func() time.Time { return now })

	if err := m.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := m.Get(ctx, "a")
	if err != nil || string(got) != "1" {
		t.Fatalf("ожидалось 1, получено %q (%v)", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound после истечения TTL, получено %v", err)
	}
}

func TestMemoryStoreKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.Set(ctx, "position:b", []byte("{}"), 0)
	_ = m.Set(ctx, "position:a", []byte("{}"), 0)
	_ = m.Set(ctx, "derivatives:BTCUSDT", []byte("{}"), 0)

	keys, err := m.Keys(ctx, "position:")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "position:a" {
		t.Errorf("неожиданные ключи: %v", keys)
	}

	_ = m.Remove(ctx, "position:a")
	if keys, _ := m.Keys(ctx, "position:"); len(keys) != 1 {
		t.Errorf("после удаления ожидался 1 ключ, получено %v", keys)
	}
}

func TestNullStore(t *testing.T) {
	ctx := context.Background()
	var s Store = NullStore{}

	if s.IsConfigured() {
		t.Error("пустое хранилище не должно считаться настроенным")
	}
	if _, err := s.Get(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}
	if err := s.Set(ctx, "x", nil, 0); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ожидался ErrNotConfigured, получено %v", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	type payload struct {
		Price float64 `json:"price"`
	}
	if err := SetJSON(ctx, m, "p", payload{Price: 42}, 0); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var got payload
	if err := GetJSON(ctx, m, "p", &got); err != nil || got.Price != 42 {
		t.Fatalf("ожидалось 42, получено %+v (%v)", got, err)
	}

	_ = m.Set(ctx, "broken", []byte("{"), 0)
	if err := GetJSON(ctx, m, "broken", &got); err == nil {
		t.Error("ожидалась ошибка декодирования")
	}
}

func TestNewByType(t *testing.T) {
	ctx := context.Background()
	if s, err := New(ctx, config.CacheConfig{Type: "none"}); err != nil || s.IsConfigured() {
		t.Errorf("none: %v %v", s, err)
	}
	if s, err := New(ctx, config.CacheConfig{Type: "memory"}); err != nil || !s.IsConfigured() {
		t.Errorf("memory: %v %v", s, err)
	}
	if _, err := New(ctx, config.CacheConfig{Type: "etcd"}); err == nil {
		t.Error("ожидалась ошибка для неизвестного типа")
	}
}
