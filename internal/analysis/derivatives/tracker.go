package derivatives

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/skalibog/btcscope/internal/kvstore"
	"github.com/skalibog/btcscope/pkg/logger"
	"github.com/skalibog/btcscope/pkg/models"
	"go.uber.org/zap"
)

const keyPrefix = "derivatives:"

// Tracker хранит последний удачный снимок по символу
type Tracker struct {
	mu    sync.RWMutex
	last  map[string]models.DerivativesSnapshot
	store kvstore.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewTracker создает трекер поверх key-value хранилища
func NewTracker(store kvstore.Store, ttl time.Duration) *Tracker {
	if store == nil {
		store = kvstore.NullStore{}
	}
	return &Tracker{
		last:  make(map[string]models.DerivativesSnapshot),
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Resolve возвращает свежий снимок и запоминает его, либо при ошибке
// последний удачный с флагом Stale. Никогда не возвращает пустой результат.
func (t *Tracker) Resolve(ctx context.Context, symbol string, fresh *models.DerivativesSnapshot, err error) models.DerivativesSnapshot {
	if err == nil && fresh != nil {
		t.remember(ctx, symbol, *fresh)
		return *fresh
	}
	if err == nil {
		err = errors.New("нет данных деривативов")
	}

	logger.Warn("Используются последние известные данные деривативов",
		zap.String("symbol", symbol),
		zap.Error(err))

	snap, ok := t.lookup(ctx, symbol)
	if !ok {
		snap = Neutral(symbol, t.now())
	}
	snap.Stale = true
	snap.Error = err.Error()
	return snap
}

func (t *Tracker) remember(ctx context.Context, symbol string, snap models.DerivativesSnapshot) {
	t.mu.Lock()
	t.last[symbol] = snap
	t.mu.Unlock()

	if !t.store.IsConfigured() {
		return
	}
	if err := kvstore.SetJSON(ctx, t.store, keyPrefix+symbol, snap, t.ttl); err != nil {
		logger.Warn("Не удалось сохранить снимок деривативов",
			zap.String("symbol", symbol),
			zap.Error(err))
	}
}

func (t *Tracker) lookup(ctx context.Context, symbol string) (models.DerivativesSnapshot, bool) {
	t.mu.RLock()
	snap, ok := t.last[symbol]
	t.mu.RUnlock()
	if ok {
		return snap, true
	}

	var stored models.DerivativesSnapshot
	err := kvstore.GetJSON(ctx, t.store, keyPrefix+symbol, &stored)
	switch {
	case err == nil:
		return stored, true
	case errors.Is(err, kvstore.ErrNotFound):
	default:
		// Поврежденная запись считается промахом
		logger.Warn("Некорректная запись деривативов в хранилище",
			zap.String("symbol", symbol),
			zap.Error(err))
	}
	return models.DerivativesSnapshot{}, false
}
