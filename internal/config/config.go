package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/skalibog/btcscope/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Trading  TradingConfig  `yaml:"trading"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	HTTP     HTTPConfig     `yaml:"http"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey                 string `yaml:"api_key"`
	APISecret              string `yaml:"api_secret"`
	Testnet                bool   `yaml:"testnet"`
	UseWebsocket           bool   `yaml:"use_websocket"`
	CandlePollSeconds      int    `yaml:"candle_poll_seconds"`
	DerivativesPollSeconds int    `yaml:"derivatives_poll_seconds"`
	OrderBookPollSeconds   int    `yaml:"orderbook_poll_seconds"`
	RetryAttempts          int    `yaml:"retry_attempts"`
	RetryBaseMillis        int    `yaml:"retry_base_millis"`
}

// TradingConfig содержит отслеживаемые рынки и параметры портфеля
type TradingConfig struct {
	Symbols    []string        `yaml:"symbols"`
	Timeframes []string        `yaml:"timeframes"`
	TopK       int             `yaml:"top_k"`
	Portfolio  PortfolioConfig `yaml:"portfolio"`
}

// PortfolioConfig параметры для оценки кредита под залог BTC
type PortfolioConfig struct {
	Value              float64 `yaml:"value"`
	AnnualInterestRate float64 `yaml:"annual_interest_rate"`
}

// AnalysisConfig содержит настройки аналитических модулей
type AnalysisConfig struct {
	IntervalSeconds int               `yaml:"interval_seconds"`
	Recalc          RecalcConfig      `yaml:"recalc"`
	Technical       TechnicalConfig   `yaml:"technical"`
	Levels          LevelsConfig      `yaml:"levels"`
	Derivatives     DerivativesConfig `yaml:"derivatives"`
	Liquidation     LiquidationConfig `yaml:"liquidation"`
	Confluence      ConfluenceConfig  `yaml:"confluence"`
	Signal          SignalConfig      `yaml:"signal"`
	Trade           TradeConfig       `yaml:"trade"`
	Position        PositionConfig    `yaml:"position"`
	OrderBook       OrderBookConfig   `yaml:"orderbook"`
	VolumeDelta     VolumeDeltaConfig `yaml:"volume_delta"`
}

// RecalcConfig порог пересчета по изменению цены и жесткий TTL
type RecalcConfig struct {
	PriceChangePercent float64 `yaml:"price_change_percent"`
	TTLMinutes         int     `yaml:"ttl_minutes"`
}

// TechnicalConfig настройки технического анализа
type TechnicalConfig struct {
	CandleLimit int `yaml:"candle_limit"`
	RSIPeriod   int `yaml:"rsi_period"`
	MACDFast    int `yaml:"macd_fast"`
	MACDSlow    int `yaml:"macd_slow"`
	MACDSignal  int `yaml:"macd_signal"`
	ATRPeriod   int `yaml:"atr_period"`
	OBVLookback int `yaml:"obv_lookback"`
}

// LevelsConfig настройки детектора уровней и сглаживания
type LevelsConfig struct {
	MaxLevels             int     `yaml:"max_levels"`
	MaxSupportDistance    float64 `yaml:"max_support_distance"`
	MaxResistanceDistance float64 `yaml:"max_resistance_distance"`
	DedupPercent          float64 `yaml:"dedup_percent"`
	PivotWindow           int     `yaml:"pivot_window"`
	TouchTolerance        float64 `yaml:"touch_tolerance"`
	FibExtension          float64 `yaml:"fib_extension"`
	HistoryCycles         int     `yaml:"history_cycles"`
	MatchPercent          float64 `yaml:"match_percent"`
	SmoothingWeight       float64 `yaml:"smoothing_weight"`
	SmoothingMaxChange    float64 `yaml:"smoothing_max_change"`
	PostDedupPercent      float64 `yaml:"post_dedup_percent"`
}

// DerivativesConfig настройки анализа открытого интереса и фандинга
type DerivativesConfig struct {
	FundingWeight         float64 `yaml:"funding_weight"`
	OpenInterestWeight    float64 `yaml:"open_interest_weight"`
	ExtremePositive       float64 `yaml:"extreme_positive"`
	HighPositive          float64 `yaml:"high_positive"`
	Negative              float64 `yaml:"negative"`
	ExtremeNegative       float64 `yaml:"extreme_negative"`
	OITrendThreshold      float64 `yaml:"oi_trend_threshold"`
	PriceFlatThreshold    float64 `yaml:"price_flat_threshold"`
	FundingHistoryPeriods int     `yaml:"funding_history_periods"`
}

// LiquidationConfig настройки оценки пулов ликвидаций
type LiquidationConfig struct {
	LookoutPercent   float64 `yaml:"lookout_percent"`
	HotPercent       float64 `yaml:"hot_percent"`
	WarmPercent      float64 `yaml:"warm_percent"`
	FallbackPercent  float64 `yaml:"fallback_percent"`
	ATRMultiplier    float64 `yaml:"atr_multiplier"`
	VolMultiplier    float64 `yaml:"vol_multiplier"`
	MinDistance      float64 `yaml:"min_distance"`
	MaxDistance      float64 `yaml:"max_distance"`
	CrowdedFactor    float64 `yaml:"crowded_factor"`
	OILiquidityShare float64 `yaml:"oi_liquidity_share"`
	SafetyMargin     float64 `yaml:"safety_margin"`
	EventWindowHours int     `yaml:"event_window_hours"`
}

// ConfluenceConfig пороги мультитаймфреймового подтверждения
type ConfluenceConfig struct {
	StrongThreshold   float64 `yaml:"strong_threshold"`
	ModerateThreshold float64 `yaml:"moderate_threshold"`
	MaxAdjacent       int     `yaml:"max_adjacent"`
}

// SignalConfig настройки генерации сигнала
type SignalConfig struct {
	MinNetScore          float64 `yaml:"min_net_score"`
	ATRStopMultiplier    float64 `yaml:"atr_stop_multiplier"`
	FallbackStopPercent  float64 `yaml:"fallback_stop_percent"`
	DerivativesThreshold float64 `yaml:"derivatives_threshold"`
	MaxFactors           int     `yaml:"max_factors"`
	ConfidenceWeight     float64 `yaml:"confidence_weight"`
	ConfluenceWeight     float64 `yaml:"confluence_weight"`
}

// TradeConfig настройки генерации торгового сетапа
type TradeConfig struct {
	MinConfidence        float64 `yaml:"min_confidence"`
	MinConfluence        float64 `yaml:"min_confluence"`
	ATRStopMultiplier    float64 `yaml:"atr_stop_multiplier"`
	MinStopPercent       float64 `yaml:"min_stop_percent"`
	MaxStopPercent       float64 `yaml:"max_stop_percent"`
	MarginRiskPercent    float64 `yaml:"margin_risk_percent"`
	MaxLeverage          int     `yaml:"max_leverage"`
	ConservativeLeverage int     `yaml:"conservative_leverage"`
}

// PositionConfig настройки анализа открытых позиций
type PositionConfig struct {
	CriticalLiquidationDistance float64 `yaml:"critical_liquidation_distance"`
	ExitLiquidationDistance     float64 `yaml:"exit_liquidation_distance"`
	WarningLiquidationDistance  float64 `yaml:"warning_liquidation_distance"`
	FlipConfidence              float64 `yaml:"flip_confidence"`
	ScalpProfitPercent          float64 `yaml:"scalp_profit_percent"`
	DCAFraction                 float64 `yaml:"dca_fraction"`
}

// OrderBookConfig настройки анализа стакана
type OrderBookConfig struct {
	Depth              int     `yaml:"depth"`
	ImbalanceThreshold float64 `yaml:"imbalance_threshold"`
}

// VolumeDeltaConfig настройки анализа дельты объемов
type VolumeDeltaConfig struct {
	Lookback              int     `yaml:"lookback"`
	SignificanceThreshold float64 `yaml:"significance_threshold"`
}

// StorageConfig настройки хранения временных рядов
type StorageConfig struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// CacheConfig настройки key-value хранилища (last known good, позиции)
type CacheConfig struct {
	Type       string `yaml:"type"`
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// HTTPConfig настройки JSON API для браузерного дашборда
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Enabled     bool `yaml:"enabled"`
	RefreshRate int  `yaml:"refresh_rate_ms"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Load загружает конфигурацию из файла поверх значений по умолчанию
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("Файл .env не найден, используются значения конфигурации")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}

	logger.Info("Загружена конфигурация",
		zap.String("path", path),
		zap.Strings("symbols", cfg.Trading.Symbols),
		zap.Strings("timeframes", cfg.Trading.Timeframes))
	return cfg, nil
}

// applyEnv переопределяет секреты переменными окружения
func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		c.Storage.Token = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Password = v
	}
}

// Validate проверяет конфигурацию на границе, до передачи в движки
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return errors.New("не задан список символов")
	}
	if len(c.Trading.Timeframes) == 0 {
		return errors.New("не задан список таймфреймов")
	}
	if c.Analysis.IntervalSeconds <= 0 {
		return errors.New("analysis.interval_seconds должен быть больше нуля")
	}
	if c.Trading.Portfolio.Value < 0 || c.Trading.Portfolio.AnnualInterestRate < 0 {
		return errors.New("параметры портфеля не могут быть отрицательными")
	}
	if c.Analysis.Trade.MaxLeverage < 1 || c.Analysis.Trade.MaxLeverage > 125 {
		return fmt.Errorf("analysis.trade.max_leverage вне диапазона: %d", c.Analysis.Trade.MaxLeverage)
	}
	if c.Analysis.Levels.MaxLevels < 1 {
		return errors.New("analysis.levels.max_levels должен быть больше нуля")
	}
	switch c.Storage.Type {
	case "memory", "influxdb":
	default:
		return fmt.Errorf("неизвестный тип хранилища: %q", c.Storage.Type)
	}
	switch c.Cache.Type {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("неизвестный тип кэша: %q", c.Cache.Type)
	}
	return nil
}
