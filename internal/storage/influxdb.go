package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/logger"
	"github.com/skalibog/btcscope/pkg/models"
	"go.uber.org/zap"
)

// InfluxDBStorage хранит ряды в InfluxDB: candles, orderbooks,
// funding_rates, open_interest, signals. Тег symbol есть у всех измерений.
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	logger.Info("Подключено хранилище InfluxDB",
		zap.String("url", cfg.URL),
		zap.String("bucket", cfg.Bucket))

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// candlePoint точка свечи
func candlePoint(candle *models.Candle) *write.Point {
	return influxdb2.NewPoint(
		"candles",
		map[string]string{
			"symbol":   candle.Symbol,
			"interval": candle.Interval,
		},
		map[string]interface{}{
			"open":   candle.Open,
			"high":   candle.High,
			"low":    candle.Low,
			"close":  candle.Close,
			"volume": candle.Volume,
		},
		candle.OpenTime,
	)
}

// SaveCandles сохраняет множество свечей одной записью
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(candles))
	for _, candle := range candles {
		points = append(points, candlePoint(candle))
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей: %w", err)
	}
	return nil
}

// GetCandles получает последние свечи по возрастанию времени
func (s *InfluxDBStorage) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	q := series{
		measurement: "candles",
		start:       lookbackFor(interval, limit),
		tags:        map[string]string{"symbol": symbol, "interval": interval},
		limit:       limit,
	}
	candles, err := queryRecords(ctx, s, q, func(r *query.FluxRecord) *models.Candle {
		return &models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  r.Time(),
			Open:      floatField(r, "open"),
			High:      floatField(r, "high"),
			Low:       floatField(r, "low"),
			Close:     floatField(r, "close"),
			Volume:    floatField(r, "volume"),
			CloseTime: r.Time().Add(IntervalDuration(interval)),
		}
	})
	if err != nil {
		return nil, fmt.Errorf("свечи %s %s: %w", symbol, interval, err)
	}
	if len(candles) == 0 {
		return nil, ErrNoData
	}
	return candles, nil
}

// SaveOrderBook сохраняет стакан заявок, уровни кодируются в JSON
func (s *InfluxDBStorage) SaveOrderBook(ctx context.Context, orderBook *models.OrderBook) error {
	asks, err := json.Marshal(orderBook.Asks)
	if err != nil {
		return fmt.Errorf("ошибка кодирования стакана: %w", err)
	}
	bids, err := json.Marshal(orderBook.Bids)
	if err != nil {
		return fmt.Errorf("ошибка кодирования стакана: %w", err)
	}

	point := influxdb2.NewPoint(
		"orderbooks",
		map[string]string{
			"symbol": orderBook.Symbol,
		},
		map[string]interface{}{
			"asks": string(asks),
			"bids": string(bids),
		},
		orderBook.Timestamp,
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("ошибка записи стакана: %w", err)
	}
	return nil
}

// GetLatestOrderBook последний сохраненный стакан за час
func (s *InfluxDBStorage) GetLatestOrderBook(ctx context.Context, symbol string) (*models.OrderBook, error) {
	q := series{
		measurement: "orderbooks",
		start:       "-1h",
		tags:        map[string]string{"symbol": symbol},
		limit:       1,
	}
	var decodeErr error
	books, err := queryRecords(ctx, s, q, func(r *query.FluxRecord) *models.OrderBook {
		book := &models.OrderBook{Symbol: symbol, Timestamp: r.Time()}
		asks, _ := r.ValueByKey("asks").(string)
		bids, _ := r.ValueByKey("bids").(string)
		decodeErr = errors.Join(
			json.Unmarshal([]byte(asks), &book.Asks),
			json.Unmarshal([]byte(bids), &book.Bids))
		return book
	})
	if err != nil {
		return nil, fmt.Errorf("стакан %s: %w", symbol, err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("ошибка разбора стакана %s: %w", symbol, decodeErr)
	}
	if len(books) == 0 {
		return nil, ErrNoData
	}
	return books[0], nil
}

// SaveFundingRates сохраняет ставки финансирования
func (s *InfluxDBStorage) SaveFundingRates(ctx context.Context, rates []*models.FundingRate) error {
	if len(rates) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rates))
	for _, rate := range rates {
		points = append(points, influxdb2.NewPoint(
			"funding_rates",
			map[string]string{
				"symbol": rate.Symbol,
			},
			map[string]interface{}{
				"rate": rate.Rate,
			},
			rate.Timestamp,
		))
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи ставок финансирования: %w", err)
	}
	return nil
}

// GetFundingRates история ставок финансирования за две недели
func (s *InfluxDBStorage) GetFundingRates(ctx context.Context, symbol string, limit int) ([]*models.FundingRate, error) {
	q := series{
		measurement: "funding_rates",
		start:       "-14d",
		tags:        map[string]string{"symbol": symbol},
		limit:       limit,
	}
	rates, err := queryRecords(ctx, s, q, func(r *query.FluxRecord) *models.FundingRate {
		return &models.FundingRate{Symbol: symbol, Rate: floatField(r, "rate"), Timestamp: r.Time()}
	})
	if err != nil {
		return nil, fmt.Errorf("ставки финансирования %s: %w", symbol, err)
	}
	if len(rates) == 0 {
		return nil, ErrNoData
	}
	return rates, nil
}

// SaveOpenInterest сохраняет историю открытого интереса
func (s *InfluxDBStorage) SaveOpenInterest(ctx context.Context, history []*models.OpenInterest) error {
	if len(history) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(history))
	for _, oi := range history {
		points = append(points, influxdb2.NewPoint(
			"open_interest",
			map[string]string{
				"symbol": oi.Symbol,
			},
			map[string]interface{}{
				"value":     oi.Value,
				"value_usd": oi.ValueUSD,
			},
			oi.Timestamp,
		))
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи открытого интереса: %w", err)
	}
	return nil
}

// GetOpenInterest история открытого интереса за две недели
func (s *InfluxDBStorage) GetOpenInterest(ctx context.Context, symbol string, limit int) ([]*models.OpenInterest, error) {
	q := series{
		measurement: "open_interest",
		start:       "-14d",
		tags:        map[string]string{"symbol": symbol},
		limit:       limit,
	}
	history, err := queryRecords(ctx, s, q, func(r *query.FluxRecord) *models.OpenInterest {
		return &models.OpenInterest{
			Symbol:    symbol,
			Value:     floatField(r, "value"),
			ValueUSD:  floatField(r, "value_usd"),
			Timestamp: r.Time(),
		}
	})
	if err != nil {
		return nil, fmt.Errorf("открытый интерес %s: %w", symbol, err)
	}
	if len(history) == 0 {
		return nil, ErrNoData
	}
	return history, nil
}

// SaveSignal сохраняет сигнал; факторы и предупреждения пишутся JSON-строкой
func (s *InfluxDBStorage) SaveSignal(ctx context.Context, signal *models.IntradaySignal, at time.Time) error {
	factors, err := json.Marshal(signal.Factors)
	if err != nil {
		return fmt.Errorf("ошибка кодирования факторов: %w", err)
	}

	fields := map[string]interface{}{
		"direction":   string(signal.Direction),
		"confidence":  signal.Confidence,
		"entry":       signal.EntryPrice,
		"stop_loss":   signal.StopLoss,
		"tp1":         signal.TakeProfit1,
		"tp2":         signal.TakeProfit2,
		"tp3":         signal.TakeProfit3,
		"risk_reward": signal.RiskRewardRatio,
		"atr":         signal.ATR,
		"factors":     string(factors),
	}
	if signal.ConfluenceScore != nil {
		fields["confluence"] = *signal.ConfluenceScore
	}

	point := influxdb2.NewPoint(
		"signals",
		map[string]string{
			"symbol":    signal.Asset,
			"timeframe": signal.Timeframe,
		},
		fields,
		at,
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("ошибка записи сигнала: %w", err)
	}
	return nil
}

// GetSignalHistory последние сигналы символа по всем таймфреймам
func (s *InfluxDBStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.IntradaySignal, error) {
	q := series{
		measurement: "signals",
		start:       "-30d",
		tags:        map[string]string{"symbol": symbol},
		limit:       limit,
		ungroup:     true,
	}
	signals, err := queryRecords(ctx, s, q, func(r *query.FluxRecord) *models.IntradaySignal {
		direction, _ := r.ValueByKey("direction").(string)
		timeframe, _ := r.ValueByKey("timeframe").(string)
		sig := &models.IntradaySignal{
			Asset:           symbol,
			Timeframe:       timeframe,
			Direction:       models.Direction(direction),
			Confidence:      floatField(r, "confidence"),
			EntryPrice:      floatField(r, "entry"),
			StopLoss:        floatField(r, "stop_loss"),
			TakeProfit1:     floatField(r, "tp1"),
			TakeProfit2:     floatField(r, "tp2"),
			TakeProfit3:     floatField(r, "tp3"),
			RiskRewardRatio: floatField(r, "risk_reward"),
			ATR:             floatField(r, "atr"),
		}
		if v, ok := r.ValueByKey("confluence").(float64); ok {
			sig.ConfluenceScore = &v
		}
		if raw, ok := r.ValueByKey("factors").(string); ok {
			if err := json.Unmarshal([]byte(raw), &sig.Factors); err != nil {
				logger.Warn("Некорректные факторы сигнала в хранилище",
					zap.String("symbol", symbol),
					zap.Error(err))
			}
		}
		return sig
	})
	if err != nil {
		return nil, fmt.Errorf("история сигналов %s: %w", symbol, err)
	}
	return signals, nil
}

// GetSymbols символы, по которым за сутки сохранялись свечи
func (s *InfluxDBStorage) GetSymbols(ctx context.Context) ([]string, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
	|> range(start: -1d)
	|> filter(fn: (r) => r._measurement == "candles")
	|> keep(columns: ["symbol"])
	|> group()
	|> distinct(column: "symbol")`, s.bucket)

	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса символов: %w", err)
	}
	defer result.Close()

	var symbols []string
	for result.Next() {
		if symbol, ok := result.Record().Value().(string); ok {
			symbols = append(symbols, symbol)
		}
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка чтения символов: %w", result.Err())
	}
	return symbols, nil
}

// series выборка последних limit записей одного измерения
type series struct {
	measurement string
	start       string
	tags        map[string]string
	limit       int
	// ungroup сводит таблицы разных тегов в одну перед сортировкой
	ungroup bool
}

func (q series) flux(bucket string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n\t|> range(start: %s)\n", bucket, q.start)
	fmt.Fprintf(&b, "\t|> filter(fn: (r) => r._measurement == %q)\n", q.measurement)

	keys := make([]string, 0, len(q.tags))
	for k := range q.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\t|> filter(fn: (r) => r.%s == %q)\n", k, q.tags[k])
	}

	b.WriteString("\t|> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n")
	if q.ungroup {
		b.WriteString("\t|> group()\n")
	}
	fmt.Fprintf(&b, "\t|> sort(columns: [\"_time\"], desc: true)\n\t|> limit(n: %d)", q.limit)
	return b.String()
}

// queryRecords выполняет выборку и возвращает записи по возрастанию времени
func queryRecords[T any](ctx context.Context, s *InfluxDBStorage, q series, decode func(*query.FluxRecord) T) ([]T, error) {
	result, err := s.queryAPI.Query(ctx, q.flux(s.bucket))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса %s: %w", q.measurement, err)
	}
	defer result.Close()

	var out []T
	for result.Next() {
		out = append(out, decode(result.Record()))
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", q.measurement, result.Err())
	}

	reverse(out)
	return out, nil
}

// floatField извлекает числовое поле записи
func floatField(record *query.FluxRecord, key string) float64 {
	switch v := record.ValueByKey(key).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// lookbackFor окно запроса с запасом под limit свечей интервала
func lookbackFor(interval string, limit int) string {
	span := IntervalDuration(interval) * time.Duration(limit*2)
	if span < 24*time.Hour {
		span = 24 * time.Hour
	}
	return fmt.Sprintf("-%ds", int64(span.Seconds()))
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
