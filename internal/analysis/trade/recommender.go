// Package trade ранжирует сигналы и строит по лучшим из них торговые сетапы.
package trade

import (
	"fmt"
	"math"
	"sort"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
)

// Доли выхода по целям
var exitPercents = []float64{40, 35, 25}

// Стоп в процентах, когда ATR неизвестен
var fallbackStops = map[string]float64{
	"1m":  0.5,
	"5m":  0.8,
	"15m": 1.2,
	"1h":  2,
	"4h":  3,
	"1d":  5,
	"1w":  5,
}

var durations = map[string]string{
	"1m":  "5-15 minutes",
	"5m":  "15-60 minutes",
	"15m": "1-4 hours",
	"1h":  "4-12 hours",
	"4h":  "1-3 days",
	"1d":  "3-10 days",
	"1w":  "2-6 weeks",
}

// RankSignals сортирует оценки по убыванию итогового балла и проставляет ранги.
// При равенстве выше уверенность, затем актив и таймфрейм по алфавиту.
// k <= 0 возвращает все оценки.
func RankSignals(scores []models.SignalScore, k int) []models.SignalScore {
	ranked := make([]models.SignalScore, len(scores))
	copy(ranked, scores)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		return a.Timeframe < b.Timeframe
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// Medal значок ранга для интерфейса
func Medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("#%d", rank)
	}
}

// EstimatedDuration ожидаемая длительность сделки на таймфрейме
func EstimatedDuration(timeframe string) string {
	if d, ok := durations[timeframe]; ok {
		return d
	}
	return "unknown"
}

// Recommender строит торговые сетапы
type Recommender struct {
	config config.TradeConfig
}

// NewRecommender создает новый генератор сетапов
func NewRecommender(cfg config.TradeConfig) *Recommender {
	return &Recommender{
		config: cfg,
	}
}

// GenerateTradeSetup строит сетап или возвращает nil, если сигнал не проходит фильтры
func (r *Recommender) GenerateTradeSetup(score models.SignalScore) *models.TradeSetup {
	if !score.Direction.Valid() || score.Price <= 0 {
		return nil
	}
	if score.Confidence < r.config.MinConfidence || score.ConfluenceScore < r.config.MinConfluence {
		return nil
	}

	stopPercent := r.stopPercent(score)
	if stopPercent <= 0 {
		return nil
	}

	entry := score.Price
	s := score.Direction.Sign()
	risk := entry * stopPercent / 100

	setup := &models.TradeSetup{
		Signal: score,
		Entry:  entry,
		StopLoss: models.StopLoss{
			Price:           mathx.RoundPrice(entry - s*risk),
			DistancePercent: mathx.RoundTo(stopPercent, 2),
		},
		Leverage:          r.SuggestLeverage(score.Confidence, stopPercent),
		RiskReward:        2,
		EstimatedDuration: EstimatedDuration(score.Timeframe),
	}

	for i, exit := range exitPercents {
		multiple := float64(i + 1)
		setup.TakeProfits = append(setup.TakeProfits, models.TakeProfit{
			Level:           i + 1,
			Price:           mathx.RoundPrice(entry + s*risk*multiple),
			DistancePercent: mathx.RoundTo(stopPercent*multiple, 2),
			ExitPercent:     exit,
		})
	}

	return setup
}

// stopPercent расстояние стопа по ATR либо по таблице таймфреймов
func (r *Recommender) stopPercent(score models.SignalScore) float64 {
	if score.ATR > 0 {
		pct := score.ATR * r.config.ATRStopMultiplier / score.Price * 100
		return mathx.Clamp(pct, r.config.MinStopPercent, r.config.MaxStopPercent)
	}
	if pct, ok := fallbackStops[score.Timeframe]; ok {
		return pct
	}
	return 2
}

// SuggestLeverage плечо, при котором потеря по стопу не превышает заданную долю маржи
func (r *Recommender) SuggestLeverage(confidence, stopPercent float64) models.LeverageSuggestion {
	maxLev := r.config.MaxLeverage

	suggested := 1
	if stopPercent > 0 {
		raw := math.Floor(confidence / 100 * r.config.MarginRiskPercent / stopPercent)
		suggested = int(mathx.Clamp(raw, 1, float64(maxLev)))
	}

	min := suggested / 2
	if min < 1 {
		min = 1
	}
	max := int(math.Floor(float64(suggested) * 1.5))
	if max > maxLev {
		max = maxLev
	}

	lev := models.LeverageSuggestion{
		Suggested: suggested,
		Min:       min,
		Max:       max,
		Reason:    fmt.Sprintf("%.0f%% confidence with a %.2f%% stop", confidence, stopPercent),
	}

	if suggested > r.config.ConservativeLeverage {
		lev.Warnings = append(lev.Warnings,
			fmt.Sprintf("Leverage above %dx: consider reducing size", r.config.ConservativeLeverage))
	}
	if liqDistance := 100 / float64(suggested); liqDistance < 2*stopPercent {
		lev.Warnings = append(lev.Warnings,
			fmt.Sprintf("Liquidation (~%.1f%%) is closer than twice the stop distance", liqDistance))
	}
	return lev
}
