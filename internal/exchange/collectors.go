package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skalibog/btcscope/internal/storage"
	"github.com/skalibog/btcscope/pkg/logger"
	"go.uber.org/zap"
)

// DataCollector фоновый сборщик данных
type DataCollector interface {
	// Start блокируется до отмены контекста или вызова Stop
	Start(ctx context.Context) error
	Stop()
}

// poller общий цикл опроса с фиксированным интервалом
type poller struct {
	name    string
	every   time.Duration
	collect func(ctx context.Context) error
	stopCh  chan struct{}
	once    sync.Once
}

func newPoller(name string, every time.Duration, collect func(ctx context.Context) error) *poller {
	if every <= 0 {
		every = time.Minute
	}
	return &poller{
		name:    name,
		every:   every,
		collect: collect,
		stopCh:  make(chan struct{}),
	}
}

// Start выполняет первый сбор сразу, затем по таймеру
func (p *poller) Start(ctx context.Context) error {
	logger.Info("Запуск сборщика", zap.String("collector", p.name), zap.Duration("interval", p.every))
	p.runOnce(ctx)

	ticker := time.NewTicker(p.every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// Stop останавливает сборщик
func (p *poller) Stop() {
	p.once.Do(func() { close(p.stopCh) })
}

func (p *poller) runOnce(ctx context.Context) {
	if err := p.collect(ctx); err != nil {
		logger.Warn("Ошибка сбора данных", zap.String("collector", p.name), zap.Error(err))
	}
}

// CandleCollector собирает свечи по символам и интервалам
type CandleCollector struct {
	*poller
	client    MarketData
	store     storage.Storage
	symbols   []string
	intervals []string
	limit     int
}

// NewCandleCollector создает сборщик свечей
func NewCandleCollector(client MarketData, store storage.Storage, symbols, intervals []string, limit int, every time.Duration) *CandleCollector {
	c := &CandleCollector{
		client:    client,
		store:     store,
		symbols:   symbols,
		intervals: intervals,
		limit:     limit,
	}
	c.poller = newPoller("candles", every, c.Collect)
	return c
}

// Collect загружает свечи один раз
func (c *CandleCollector) Collect(ctx context.Context) error {
	var errs []error
	for _, symbol := range c.symbols {
		for _, interval := range c.intervals {
			candles, err := c.client.GetKlines(ctx, symbol, interval, c.limit)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", symbol, interval, err))
				continue
			}
			if err := c.store.SaveCandles(ctx, candles); err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", symbol, interval, err))
			}
		}
	}
	return errors.Join(errs...)
}

// OrderBookCollector собирает стаканы заявок
type OrderBookCollector struct {
	*poller
	client  MarketData
	store   storage.Storage
	symbols []string
	depth   int
}

// NewOrderBookCollector создает сборщик стаканов
func NewOrderBookCollector(client MarketData, store storage.Storage, symbols []string, depth int, every time.Duration) *OrderBookCollector {
	c := &OrderBookCollector{
		client:  client,
		store:   store,
		symbols: symbols,
		depth:   depth,
	}
	c.poller = newPoller("orderbook", every, c.Collect)
	return c
}

// Collect загружает стаканы один раз
func (c *OrderBookCollector) Collect(ctx context.Context) error {
	var errs []error
	for _, symbol := range c.symbols {
		ob, err := c.client.GetOrderBook(ctx, symbol, c.depth)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		if err := c.store.SaveOrderBook(ctx, ob); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(errs...)
}

// FundingRateCollector собирает историю ставок финансирования
type FundingRateCollector struct {
	*poller
	client  MarketData
	store   storage.Storage
	symbols []string
	periods int
}

// NewFundingRateCollector создает сборщик ставок финансирования
func NewFundingRateCollector(client MarketData, store storage.Storage, symbols []string, periods int, every time.Duration) *FundingRateCollector {
	c := &FundingRateCollector{
		client:  client,
		store:   store,
		symbols: symbols,
		periods: periods,
	}
	c.poller = newPoller("funding", every, c.Collect)
	return c
}

// Collect загружает ставки один раз
func (c *FundingRateCollector) Collect(ctx context.Context) error {
	var errs []error
	for _, symbol := range c.symbols {
		rates, err := c.client.GetFundingHistory(ctx, symbol, c.periods)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		if err := c.store.SaveFundingRates(ctx, rates); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(errs...)
}

// OpenInterestCollector собирает почасовую историю открытого интереса
type OpenInterestCollector struct {
	*poller
	client  MarketData
	store   storage.Storage
	symbols []string
}

// NewOpenInterestCollector создает сборщик открытого интереса
func NewOpenInterestCollector(client MarketData, store storage.Storage, symbols []string, every time.Duration) *OpenInterestCollector {
	c := &OpenInterestCollector{
		client:  client,
		store:   store,
		symbols: symbols,
	}
	c.poller = newPoller("open_interest", every, c.Collect)
	return c
}

// Collect загружает историю за последние сутки
func (c *OpenInterestCollector) Collect(ctx context.Context) error {
	var errs []error
	for _, symbol := range c.symbols {
		history, err := c.client.GetOpenInterestHistory(ctx, symbol, "1h", 25)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		if err := c.store.SaveOpenInterest(ctx, history); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(errs...)
}
