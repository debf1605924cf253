package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skalibog/btcscope/pkg/models"
)

// maxSeriesLength ограничение длины каждого ряда в памяти
const maxSeriesLength = 1000

type storedSignal struct {
	signal models.IntradaySignal
	at     time.Time
}

// MemoryStorage хранилище в памяти процесса
type MemoryStorage struct {
	mu           sync.RWMutex
	candles      map[string][]*models.Candle
	orderBooks   map[string]*models.OrderBook
	fundingRates map[string][]*models.FundingRate
	openInterest map[string][]*models.OpenInterest
	signals      map[string][]storedSignal
}

// NewMemoryStorage создает пустое хранилище
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		candles:      make(map[string][]*models.Candle),
		orderBooks:   make(map[string]*models.OrderBook),
		fundingRates: make(map[string][]*models.FundingRate),
		openInterest: make(map[string][]*models.OpenInterest),
		signals:      make(map[string][]storedSignal),
	}
}

func candleKey(symbol, interval string) string {
	return symbol + "|" + interval
}

// SaveCandles сохраняет свечи. Свеча с тем же временем открытия заменяется.
func (s *MemoryStorage) SaveCandles(_ context.Context, candles []*models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]bool)
	for _, c := range candles {
		key := candleKey(c.Symbol, c.Interval)
		series := s.candles[key]

		replaced := false
		for i := len(series) - 1; i >= 0 && !replaced; i-- {
			if series[i].OpenTime.Equal(c.OpenTime) {
				series[i] = c
				replaced = true
			}
		}
		if !replaced {
			series = append(series, c)
		}
		s.candles[key] = series
		touched[key] = true
	}

	for key := range touched {
		series := s.candles[key]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].OpenTime.Before(series[j].OpenTime)
		})
		s.candles[key] = trimTail(series)
	}
	return nil
}

// GetCandles возвращает последние limit свечей
func (s *MemoryStorage) GetCandles(_ context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.candles[candleKey(symbol, interval)]
	if len(series) == 0 {
		return nil, ErrNoData
	}
	return copyTail(series, limit), nil
}

// SaveOrderBook сохраняет стакан, хранится только последний
func (s *MemoryStorage) SaveOrderBook(_ context.Context, orderBook *models.OrderBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderBooks[orderBook.Symbol] = orderBook
	return nil
}

// GetLatestOrderBook возвращает последний стакан
func (s *MemoryStorage) GetLatestOrderBook(_ context.Context, symbol string) (*models.OrderBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ob, ok := s.orderBooks[symbol]
	if !ok {
		return nil, ErrNoData
	}
	return ob, nil
}

// SaveFundingRates сохраняет ставки, повторы по времени пропускаются
func (s *MemoryStorage) SaveFundingRates(_ context.Context, rates []*models.FundingRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rates {
		series := s.fundingRates[r.Symbol]
		if n := len(series); n > 0 && !r.Timestamp.After(series[n-1].Timestamp) {
			continue
		}
		s.fundingRates[r.Symbol] = trimTail(append(series, r))
	}
	return nil
}

// GetFundingRates возвращает последние limit ставок
func (s *MemoryStorage) GetFundingRates(_ context.Context, symbol string, limit int) ([]*models.FundingRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.fundingRates[symbol]
	if len(series) == 0 {
		return nil, ErrNoData
	}
	return copyTail(series, limit), nil
}

// SaveOpenInterest сохраняет историю открытого интереса
func (s *MemoryStorage) SaveOpenInterest(_ context.Context, history []*models.OpenInterest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, oi := range history {
		series := s.openInterest[oi.Symbol]
		if n := len(series); n > 0 && !oi.Timestamp.After(series[n-1].Timestamp) {
			continue
		}
		s.openInterest[oi.Symbol] = trimTail(append(series, oi))
	}
	return nil
}

// GetOpenInterest возвращает последние limit значений
func (s *MemoryStorage) GetOpenInterest(_ context.Context, symbol string, limit int) ([]*models.OpenInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.openInterest[symbol]
	if len(series) == 0 {
		return nil, ErrNoData
	}
	return copyTail(series, limit), nil
}

// SaveSignal сохраняет сигнал
func (s *MemoryStorage) SaveSignal(_ context.Context, signal *models.IntradaySignal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[signal.Asset] = trimTail(append(s.signals[signal.Asset], storedSignal{signal: *signal, at: at}))
	return nil
}

// GetSignalHistory возвращает последние limit сигналов по символу
func (s *MemoryStorage) GetSignalHistory(_ context.Context, symbol string, limit int) ([]*models.IntradaySignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := copyTail(s.signals[symbol], limit)
	out := make([]*models.IntradaySignal, 0, len(stored))
	for i := range stored {
		sig := stored[i].signal
		out = append(out, &sig)
	}
	return out, nil
}

// GetSymbols возвращает символы, по которым есть свечи
func (s *MemoryStorage) GetSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var symbols []string
	for _, series := range s.candles {
		if len(series) == 0 || seen[series[0].Symbol] {
			continue
		}
		seen[series[0].Symbol] = true
		symbols = append(symbols, series[0].Symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Close ничего не делает
func (s *MemoryStorage) Close() {}

func trimTail[T any](series []T) []T {
	if len(series) > maxSeriesLength {
		return append([]T(nil), series[len(series)-maxSeriesLength:]...)
	}
	return series
}

func copyTail[T any](series []T, limit int) []T {
	start := 0
	if limit > 0 && len(series) > limit {
		start = len(series) - limit
	}
	return append([]T(nil), series[start:]...)
}
