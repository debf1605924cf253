// Package stable управляет частотой пересчета: анализ повторяется только при
// заметном движении цены или по истечении TTL.
package stable

import (
	"math"
	"sync"
	"time"

	"github.com/skalibog/btcscope/internal/config"
)

type mark struct {
	price float64
	at    time.Time
}

// Gate решает, нужен ли пересчет для ключа
type Gate struct {
	mu        sync.Mutex
	threshold float64
	ttl       time.Duration
	now       func() time.Time
	marks     map[string]mark
}

// NewGate создает гейт по настройкам пересчета
func NewGate(cfg config.RecalcConfig) *Gate {
	return &Gate{
		threshold: cfg.PriceChangePercent,
		ttl:       time.Duration(cfg.TTLMinutes) * time.Minute,
		now:       time.Now,
		marks:     make(map[string]mark),
	}
}

// WithClock подменяет источник времени
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// ShouldRecalculate возвращает true при первом вызове для ключа, при движении
// цены не меньше порога или после истечения TTL. При true запоминает цену.
func (g *Gate) ShouldRecalculate(key string, price float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	last, ok := g.marks[key]

	recalc := !ok || last.price <= 0
	if !recalc && math.Abs(price-last.price)/last.price*100 >= g.threshold {
		recalc = true
	}
	if !recalc && g.ttl > 0 && now.Sub(last.at) >= g.ttl {
		recalc = true
	}

	if recalc {
		g.marks[key] = mark{price: price, at: now}
	}
	return recalc
}

// Forget сбрасывает состояние ключа
func (g *Gate) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.marks, key)
}

// Reset сбрасывает все ключи
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marks = make(map[string]mark)
}
