package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/logger"
	"github.com/skalibog/btcscope/pkg/models"
	"go.uber.org/zap"
)

// Ticker суточная статистика по символу
type Ticker struct {
	Symbol             string    `json:"symbol"`
	LastPrice          float64   `json:"last_price"`
	PriceChangePercent float64   `json:"price_change_percent"`
	Time               time.Time `json:"time"`
}

// MarketData источник рыночных данных, только чтение
type MarketData interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error)
	GetFundingRate(ctx context.Context, symbol string) (*models.FundingRate, error)
	GetFundingHistory(ctx context.Context, symbol string, limit int) ([]*models.FundingRate, error)
	GetOpenInterest(ctx context.Context, symbol string) (*models.OpenInterest, error)
	GetOpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]*models.OpenInterest, error)
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// BinanceClient клиент для чтения данных фьючерсов Binance
type BinanceClient struct {
	futures *futures.Client
	retry   retryPolicy
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	if cfg.Testnet {
		// Переключатель тестовой сети в библиотеке глобальный
		futures.UseTestnet = true
	}

	client := futures.NewClient(cfg.APIKey, cfg.APISecret)

	logger.Info("Клиент Binance создан",
		zap.Bool("testnet", cfg.Testnet),
		zap.Int("retry_attempts", cfg.RetryAttempts))

	return &BinanceClient{
		futures: client,
		retry:   newRetryPolicy(cfg),
	}, nil
}

// GetKlines получает исторические свечи по возрастанию времени
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	klines, err := withRetry(ctx, c.retry, "свечи "+symbol+" "+interval, func(ctx context.Context) ([]*futures.Kline, error) {
		return c.futures.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	candles := make([]*models.Candle, 0, len(klines))
	for _, k := range klines {
		candle := &models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  time.UnixMilli(k.OpenTime),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			CloseTime: time.UnixMilli(k.CloseTime),
		}
		if candle.Close <= 0 {
			continue
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// GetOrderBook получает стакан заявок
func (c *BinanceClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error) {
	ob, err := withRetry(ctx, c.retry, "стакан "+symbol, func(ctx context.Context) (*futures.DepthResponse, error) {
		return c.futures.NewDepthService().
			Symbol(symbol).
			Limit(limit).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения стакана: %w", err)
	}

	orderBook := &models.OrderBook{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Bids:      make([]models.OrderBookLevel, 0, len(ob.Bids)),
		Asks:      make([]models.OrderBookLevel, 0, len(ob.Asks)),
	}
	if ob.Time > 0 {
		orderBook.Timestamp = time.UnixMilli(ob.Time)
	}

	for _, bid := range ob.Bids {
		orderBook.Bids = append(orderBook.Bids, models.OrderBookLevel{
			Price:  parseFloat(bid.Price),
			Amount: parseFloat(bid.Quantity),
		})
	}
	for _, ask := range ob.Asks {
		orderBook.Asks = append(orderBook.Asks, models.OrderBookLevel{
			Price:  parseFloat(ask.Price),
			Amount: parseFloat(ask.Quantity),
		})
	}

	return orderBook, nil
}

// GetFundingRate получает текущую ставку финансирования из premium index
func (c *BinanceClient) GetFundingRate(ctx context.Context, symbol string) (*models.FundingRate, error) {
	rates, err := withRetry(ctx, c.retry, "premium index "+symbol, func(ctx context.Context) ([]*futures.PremiumIndex, error) {
		return c.futures.NewPremiumIndexService().
			Symbol(symbol).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ставки финансирования: %w", err)
	}

	if len(rates) == 0 {
		return nil, fmt.Errorf("не найдены данные о ставке финансирования для %s", symbol)
	}

	return &models.FundingRate{
		Symbol:          symbol,
		Rate:            parseFloat(rates[0].LastFundingRate),
		Timestamp:       time.Now(),
		NextFundingTime: time.UnixMilli(rates[0].NextFundingTime),
	}, nil
}

// GetFundingHistory получает историю ставок финансирования по возрастанию времени
func (c *BinanceClient) GetFundingHistory(ctx context.Context, symbol string, limit int) ([]*models.FundingRate, error) {
	history, err := withRetry(ctx, c.retry, "история фандинга "+symbol, func(ctx context.Context) ([]*futures.FundingRate, error) {
		return c.futures.NewFundingRateService().
			Symbol(symbol).
			Limit(limit).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории финансирования: %w", err)
	}

	rates := make([]*models.FundingRate, 0, len(history))
	for _, h := range history {
		rates = append(rates, &models.FundingRate{
			Symbol:    symbol,
			Rate:      parseFloat(h.FundingRate),
			Timestamp: time.UnixMilli(h.FundingTime),
		})
	}
	return rates, nil
}

// GetOpenInterest получает текущий открытый интерес в контрактах
func (c *BinanceClient) GetOpenInterest(ctx context.Context, symbol string) (*models.OpenInterest, error) {
	oi, err := withRetry(ctx, c.retry, "открытый интерес "+symbol, func(ctx context.Context) (*futures.OpenInterest, error) {
		return c.futures.NewGetOpenInterestService().
			Symbol(symbol).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения открытого интереса: %w", err)
	}

	return &models.OpenInterest{
		Symbol:    symbol,
		Value:     parseFloat(oi.OpenInterest),
		Timestamp: time.UnixMilli(oi.Time),
	}, nil
}

// GetOpenInterestHistory получает историю открытого интереса с оценкой в USD
func (c *BinanceClient) GetOpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]*models.OpenInterest, error) {
	stats, err := withRetry(ctx, c.retry, "история OI "+symbol, func(ctx context.Context) ([]*futures.OpenInterestStatistic, error) {
		return c.futures.NewOpenInterestStatisticsService().
			Symbol(symbol).
			Period(period).
			Limit(limit).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории открытого интереса: %w", err)
	}

	history := make([]*models.OpenInterest, 0, len(stats))
	for _, s := range stats {
		history = append(history, &models.OpenInterest{
			Symbol:    symbol,
			Value:     parseFloat(s.SumOpenInterest),
			ValueUSD:  parseFloat(s.SumOpenInterestValue),
			Timestamp: time.UnixMilli(s.Timestamp),
		})
	}
	return history, nil
}

// GetTicker получает суточную статистику
func (c *BinanceClient) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	stats, err := withRetry(ctx, c.retry, "тикер "+symbol, func(ctx context.Context) ([]*futures.PriceChangeStats, error) {
		return c.futures.NewListPriceChangeStatsService().
			Symbol(symbol).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тикера: %w", err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("нет статистики для %s", symbol)
	}

	return &Ticker{
		Symbol:             symbol,
		LastPrice:          parseFloat(stats[0].LastPrice),
		PriceChangePercent: parseFloat(stats[0].PriceChangePercent),
		Time:               time.Now(),
	}, nil
}

// GetPrice получает последнюю цену
func (c *BinanceClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := withRetry(ctx, c.retry, "цена "+symbol, func(ctx context.Context) ([]*futures.SymbolPrice, error) {
		return c.futures.NewListPricesService().
			Symbol(symbol).
			Do(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка получения цены: %w", err)
	}

	for _, p := range prices {
		if strings.EqualFold(p.Symbol, symbol) {
			return parseFloat(p.Price), nil
		}
	}
	return 0, fmt.Errorf("цена для %s не найдена", symbol)
}

// parseFloat разбирает числовую строку биржи, некорректное значение дает 0
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
