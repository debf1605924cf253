// internal/analysis/oianalysis/analyzer.go
package oianalysis

import (
	"math"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

// Тренд открытого интереса
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendFlat    = "flat"
)

// Сигналы связки OI и цены
const (
	SignalBullish = "bullish"
	SignalBearish = "bearish"
	SignalBuildup = "buildup"
	SignalNeutral = "neutral"
)

// Result классификация изменения открытого интереса
type Result struct {
	Trend       string  `json:"trend"`
	Signal      string  `json:"signal"`
	Score       float64 `json:"score"`
	OIChange    float64 `json:"oi_change"`
	PriceChange float64 `json:"price_change"`
}

// Analyzer реализует анализатор открытого интереса
type Analyzer struct {
	config config.DerivativesConfig
}

// NewAnalyzer создает новый анализатор открытого интереса
func NewAnalyzer(cfg config.DerivativesConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Classify оценивает изменение OI за 24ч вместе с изменением цены (оба в процентах)
func (a *Analyzer) Classify(oiChange, priceChange float64) Result {
	res := Result{
		Trend:       TrendFlat,
		Signal:      SignalNeutral,
		OIChange:    oiChange,
		PriceChange: priceChange,
	}

	switch {
	case oiChange > a.config.OITrendThreshold:
		res.Trend = TrendRising
	case oiChange < -a.config.OITrendThreshold:
		res.Trend = TrendFalling
	}

	if res.Trend != TrendRising {
		return res
	}

	// Новые позиции открываются: направление дает цена
	strength := 60 * math.Min(1, math.Abs(oiChange)/5)
	switch {
	case priceChange > a.config.PriceFlatThreshold:
		res.Signal = SignalBullish
		res.Score = strength
	case priceChange < -a.config.PriceFlatThreshold:
		res.Signal = SignalBearish
		res.Score = -strength
	default:
		res.Signal = SignalBuildup
	}
	return res
}

// ChangePercent изменение OI в процентах по истории (по возрастанию времени)
func ChangePercent(history []*models.OpenInterest) float64 {
	if len(history) < 2 {
		return 0
	}
	first, last := oiValue(history[0]), oiValue(history[len(history)-1])
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}

// oiValue берет объем в USD, если он известен, иначе в контрактах
func oiValue(oi *models.OpenInterest) float64 {
	if oi.ValueUSD > 0 {
		return oi.ValueUSD
	}
	return oi.Value
}
