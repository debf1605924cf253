package exchange

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
	"github.com/skalibog/btcscope/pkg/logger"
	"github.com/skalibog/btcscope/pkg/models"
	"go.uber.org/zap"
)

// markPriceMaxAge после этого срока без обновлений поток считается неисправным
const markPriceMaxAge = 15 * time.Second

type markPriceServeFunc func(symbol string, handler futures.WsMarkPriceHandler, errHandler futures.ErrHandler) (chan struct{}, chan struct{}, error)

type liquidationServeFunc func(symbol string, handler futures.WsLiquidationOrderHandler, errHandler futures.ErrHandler) (chan struct{}, chan struct{}, error)

// subscription поддерживает websocket-подписку, переподключаясь после обрыва
type subscription struct {
	name   string
	stopCh chan struct{}
	once   sync.Once
}

func newSubscription(name string) subscription {
	return subscription{name: name, stopCh: make(chan struct{})}
}

// Stop закрывает все подписки
func (s *subscription) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

// keep держит подписку открытой до отмены контекста или Stop
func (s *subscription) keep(ctx context.Context, symbol string, connect func() (chan struct{}, chan struct{}, error)) {
	b := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}

	for {
		doneC, stopC, err := connect()
		if err != nil {
			logger.Warn("Ошибка подключения к потоку",
				zap.String("stream", s.name),
				zap.String("symbol", symbol),
				zap.Error(err))
		} else {
			select {
			case <-doneC:
				logger.Warn("Поток закрыт, переподключение",
					zap.String("stream", s.name),
					zap.String("symbol", symbol))
			case <-s.stopCh:
				close(stopC)
				return
			case <-ctx.Done():
				close(stopC)
				return
			}
		}

		select {
		case <-time.After(b.Duration()):
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *subscription) run(ctx context.Context, symbols []string, connect func(symbol string) (chan struct{}, chan struct{}, error)) error {
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			s.keep(ctx, sym, func() (chan struct{}, chan struct{}, error) { return connect(sym) })
		}(symbol)
	}
	wg.Wait()
	return nil
}

type pricePoint struct {
	price float64
	at    time.Time
}

// PriceStream держит последнюю маркировочную цену из websocket.
// Пока поток свежий, опрос цены по REST не нужен.
type PriceStream struct {
	subscription
	mu      sync.RWMutex
	symbols []string
	prices  map[string]pricePoint
	maxAge  time.Duration
	now     func() time.Time
	serve   markPriceServeFunc
}

// NewPriceStream создает поток цен по символам
func NewPriceStream(symbols []string) *PriceStream {
	return &PriceStream{
		subscription: newSubscription("mark_price"),
		symbols:      symbols,
		prices:       make(map[string]pricePoint),
		maxAge:       markPriceMaxAge,
		now:          time.Now,
		serve:        futures.WsMarkPriceServe,
	}
}

// Start подписывается на все символы и блокируется до остановки
func (s *PriceStream) Start(ctx context.Context) error {
	return s.run(ctx, s.symbols, func(symbol string) (chan struct{}, chan struct{}, error) {
		return s.serve(symbol, s.handle, func(err error) {
			logger.Warn("Ошибка потока цен", zap.String("symbol", symbol), zap.Error(err))
		})
	})
}

func (s *PriceStream) handle(event *futures.WsMarkPriceEvent) {
	price := parseFloat(event.MarkPrice)
	if price <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[strings.ToUpper(event.Symbol)] = pricePoint{price: price, at: s.now()}
}

// Price возвращает цену, если поток по символу свежий
func (s *PriceStream) Price(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[strings.ToUpper(symbol)]
	if !ok || s.now().Sub(p.at) > s.maxAge {
		return 0, false
	}
	return p.price, true
}

// LiquidationCollector буферизует принудительные ликвидации по символам
type LiquidationCollector struct {
	subscription
	mu      sync.RWMutex
	symbols []string
	events  map[string][]models.LiquidationEvent
	window  time.Duration
	now     func() time.Time
	serve   liquidationServeFunc
}

// NewLiquidationCollector создает сборщик ликвидаций с окном хранения window
func NewLiquidationCollector(symbols []string, window time.Duration) *LiquidationCollector {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &LiquidationCollector{
		subscription: newSubscription("liquidations"),
		symbols:      symbols,
		events:       make(map[string][]models.LiquidationEvent),
		window:       window,
		now:          time.Now,
		serve:        futures.WsLiquidationOrderServe,
	}
}

// Start подписывается на все символы и блокируется до остановки
func (c *LiquidationCollector) Start(ctx context.Context) error {
	return c.run(ctx, c.symbols, func(symbol string) (chan struct{}, chan struct{}, error) {
		return c.serve(symbol, c.handle, func(err error) {
			logger.Warn("Ошибка потока ликвидаций", zap.String("symbol", symbol), zap.Error(err))
		})
	})
}

func (c *LiquidationCollector) handle(event *futures.WsLiquidationOrderEvent) {
	o := event.LiquidationOrder
	price := parseFloat(o.AvgPrice)
	if price <= 0 {
		price = parseFloat(o.Price)
	}
	qty := parseFloat(o.AccumulatedFilledQty)
	if qty <= 0 {
		qty = parseFloat(o.OrigQuantity)
	}
	if price <= 0 || qty <= 0 {
		return
	}

	ev := models.LiquidationEvent{
		Symbol:   strings.ToUpper(o.Symbol),
		Side:     string(o.Side),
		Price:    price,
		Quantity: qty,
		Time:     time.UnixMilli(o.TradeTime),
	}
	if o.TradeTime == 0 {
		ev.Time = c.now()
	}
	c.Add(ev)
}

// Add добавляет событие и отбрасывает вышедшие из окна
func (c *LiquidationCollector) Add(ev models.LiquidationEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[ev.Symbol] = c.prune(append(c.events[ev.Symbol], ev))
}

// Events возвращает события символа в пределах окна по возрастанию времени
func (c *LiquidationCollector) Events(symbol string) []models.LiquidationEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	events := c.prune(append([]models.LiquidationEvent(nil), c.events[strings.ToUpper(symbol)]...))
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})
	return events
}

func (c *LiquidationCollector) prune(events []models.LiquidationEvent) []models.LiquidationEvent {
	cutoff := c.now().Add(-c.window)
	kept := events[:0]
	for _, ev := range events {
		if ev.Time.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	return kept
}
