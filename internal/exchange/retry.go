package exchange

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/jpillora/backoff"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/logger"
	"go.uber.org/zap"
)

// retryPolicy общее число попыток с экспоненциальной задержкой между ними
type retryPolicy struct {
	attempts int
	min      time.Duration
	max      time.Duration
}

func newRetryPolicy(cfg config.BinanceConfig) retryPolicy {
	base := time.Duration(cfg.RetryBaseMillis) * time.Millisecond
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retryPolicy{
		attempts: attempts,
		min:      base,
		max:      base * 8,
	}
}

// withRetry выполняет запрос не более attempts раз, повторяя при сетевых сбоях.
// Ошибки API биржи (неверный символ, лимиты) не повторяются.
func withRetry[T any](ctx context.Context, p retryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	b := &backoff.Backoff{
		Min:    p.min,
		Max:    p.max,
		Factor: 2,
		Jitter: true,
	}

	for {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if common.IsAPIError(err) || ctx.Err() != nil || int(b.Attempt())+1 >= p.attempts {
			return v, err
		}

		delay := b.Duration()
		logger.Warn("Повтор запроса к бирже",
			zap.String("op", op),
			zap.Float64("attempt", b.Attempt()),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}
