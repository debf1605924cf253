package stable

import (
	"testing"
	"time"

	"github.com/skalibog/btcscope/internal/config"
)

func TestGate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := NewGate(config.RecalcConfig{PriceChangePercent: 0.5, TTLMinutes: 15}).
		WithClock(func() time.Time { return now })

	if !g.ShouldRecalculate("BTCUSDT", 60000) {
		t.Fatal("первый вызов должен пересчитывать")
	}
	if g.ShouldRecalculate("BTCUSDT", 60200) {
		t.Error("движение 0.33% ниже порога")
	}
	if !g.ShouldRecalculate("BTCUSDT", 60400) {
		t.Error("движение 0.67% должно пересчитывать")
	}

	// опорная цена теперь 60400
	now = now.Add(14 * time.Minute)
	if g.ShouldRecalculate("BTCUSDT", 60310) {
		t.Error("TTL еще не истек")
	}
	now = now.Add(time.Minute)
	if !g.ShouldRecalculate("BTCUSDT", 60310) {
		t.Error("после TTL нужен пересчет")
	}

	if !g.ShouldRecalculate("ETHUSDT", 3000) {
		t.Error("ключи независимы")
	}

	g.Reset()
	if !g.ShouldRecalculate("BTCUSDT", 60310) {
		t.Error("после сброса первый вызов снова пересчитывает")
	}
	g.Forget("BTCUSDT")
	if !g.ShouldRecalculate("BTCUSDT", 60310) {
		t.Error("после Forget ключ считается новым")
	}
}

func TestCache(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache[int](15 * time.Minute).WithClock(func() time.Time { return now })

	if _, _, ok := c.Get("a"); ok {
		t.Fatal("пустой кэш")
	}

	c.Put("a", 42)
	v, stale, ok := c.Get("a")
	if !ok || stale || v != 42 {
		t.Errorf("ожидалось свежее 42, получено %d stale=%v ok=%v", v, stale, ok)
	}

	now = now.Add(15 * time.Minute)
	if _, stale, _ := c.Get("a"); !stale {
		t.Error("запись старше TTL должна быть устаревшей")
	}

	c.Reset()
	if len(c.Keys()) != 0 {
		t.Error("после Reset кэш пуст")
	}
}
