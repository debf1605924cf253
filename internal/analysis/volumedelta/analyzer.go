// internal/analysis/volumedelta/analyzer.go
package volumedelta

import (
	"fmt"
	"math"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
)

const minCandles = 10

// Result оценка дельты объемов в диапазоне -100..100
type Result struct {
	Cumulative  float64 `json:"cumulative"`
	Impulses    float64 `json:"impulses"`
	VolumePrice float64 `json:"volume_price"`
	Score       float64 `json:"score"`
}

// Analyzer реализует анализатор дельты объемов
type Analyzer struct {
	config config.VolumeDeltaConfig
}

// NewAnalyzer создает новый анализатор дельты объемов
func NewAnalyzer(cfg config.VolumeDeltaConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Analyze анализирует дельту объемов по свечам (по возрастанию времени)
func (a *Analyzer) Analyze(candles []*models.Candle) (*Result, error) {
	if len(candles) < minCandles {
		return nil, fmt.Errorf("недостаточно данных для анализа дельты объемов: %d свечей (требуется %d)",
			len(candles), minCandles)
	}

	// Свежие свечи первыми
	recent := make([]*models.Candle, len(candles))
	for i, c := range candles {
		recent[len(candles)-1-i] = c
	}

	res := &Result{
		Cumulative:  a.analyzeCumulativeDelta(recent),
		Impulses:    a.analyzeVolumeImpulses(recent),
		VolumePrice: a.analyzeVolumePriceRelation(recent),
	}

	// Комбинируем сигналы с весами
	res.Score = res.Cumulative*0.5 +
		res.Impulses*0.3 +
		res.VolumePrice*0.2

	return res, nil
}

// analyzeCumulativeDelta накопленная дельта: объем бычьей свечи со знаком плюс,
// медвежьей со знаком минус, свежие свечи весят больше
func (a *Analyzer) analyzeCumulativeDelta(recent []*models.Candle) float64 {
	lookback := a.lookback(len(recent))

	var cumulativeDelta, totalVolume float64
	for i := 0; i < lookback; i++ {
		c := recent[i]
		delta := c.Volume
		if c.Close < c.Open {
			delta = -delta
		}

		weight := 1.0 - float64(i)/float64(lookback)
		cumulativeDelta += delta * weight
		totalVolume += math.Abs(delta) * weight
	}

	if totalVolume == 0 {
		return 0
	}
	return cumulativeDelta / totalVolume * 100
}

// analyzeVolumeImpulses ищет свечи с объемом выше порога значимости
func (a *Analyzer) analyzeVolumeImpulses(recent []*models.Candle) float64 {
	window := 30
	if len(recent) < window {
		window = len(recent)
	}

	var totalVolume float64
	for _, c := range recent[:window] {
		totalVolume += c.Volume
	}
	avgVolume := totalVolume / float64(window)
	if avgVolume == 0 {
		return 0
	}

	maxStrength := a.config.SignificanceThreshold * 10

	var signal float64
	for _, c := range recent[:minCandles] {
		ratio := c.Volume / avgVolume
		if ratio < a.config.SignificanceThreshold {
			continue
		}

		// Сила пропорциональна превышению среднего
		strength := math.Min((ratio-1.0)*10, maxStrength)
		if c.Close > c.Open {
			signal += strength
		} else {
			signal -= strength
		}
	}

	return mathx.Clamp(signal, -100, 100)
}

// analyzeVolumePriceRelation ищет расхождения изменения объема и цены
func (a *Analyzer) analyzeVolumePriceRelation(recent []*models.Candle) float64 {
	lookback := a.lookback(len(recent))

	var signal float64
	for i := 1; i < lookback; i++ {
		current, previous := recent[i-1], recent[i]
		if previous.Volume == 0 || previous.Close == 0 {
			continue
		}

		volumeChange := (current.Volume - previous.Volume) / previous.Volume
		priceChange := (current.Close - previous.Close) / previous.Close

		switch {
		case math.Abs(volumeChange) <= 0.1:
		case priceChange > 0 && volumeChange < 0:
			// Рост на падающем объеме слабый
			signal -= 5
		case priceChange < 0 && volumeChange < 0:
			// Падение на затухающем объеме близко к развороту
			signal += 10
		case priceChange > 0 && volumeChange > 0:
			signal += 10
		case priceChange < 0 && volumeChange > 0:
			signal -= 20
		}
	}

	return mathx.Clamp(signal, -100, 100)
}

func (a *Analyzer) lookback(available int) int {
	if a.config.Lookback <= 0 || a.config.Lookback > available {
		return available
	}
	return a.config.Lookback
}
