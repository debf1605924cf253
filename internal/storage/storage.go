package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

// ErrNoData данных для запроса нет
var ErrNoData = errors.New("нет данных")

// Storage интерфейс для работы с хранилищем данных.
// Все выборки возвращают записи по возрастанию времени.
type Storage interface {
	// Методы для свечей
	SaveCandles(ctx context.Context, candles []*models.Candle) error
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)

	// Методы для стакана заявок
	SaveOrderBook(ctx context.Context, orderBook *models.OrderBook) error
	GetLatestOrderBook(ctx context.Context, symbol string) (*models.OrderBook, error)

	// Методы для ставок финансирования
	SaveFundingRates(ctx context.Context, rates []*models.FundingRate) error
	GetFundingRates(ctx context.Context, symbol string, limit int) ([]*models.FundingRate, error)

	// Методы для открытого интереса
	SaveOpenInterest(ctx context.Context, history []*models.OpenInterest) error
	GetOpenInterest(ctx context.Context, symbol string, limit int) ([]*models.OpenInterest, error)

	// Методы для сигналов
	SaveSignal(ctx context.Context, signal *models.IntradaySignal, at time.Time) error
	GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.IntradaySignal, error)

	// Вспомогательные методы
	GetSymbols(ctx context.Context) ([]string, error)
	Close()
}

// New создает хранилище по типу из конфигурации
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "influxdb":
		return NewInfluxDBStorage(cfg)
	case "memory", "":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %q", cfg.Type)
	}
}

// IntervalDuration конвертирует строковый интервал в duration
func IntervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "6h":
		return 6 * time.Hour
	case "8h":
		return 8 * time.Hour
	case "12h":
		return 12 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "3d":
		return 72 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}
