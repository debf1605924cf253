// Package levels строит уровни поддержки и сопротивления из EMA, пивотов,
// расширений Фибоначчи и полос модели степенного закона.
package levels

import (
	"fmt"
	"math"
	"sort"

	"github.com/skalibog/btcscope/internal/analysis/powerlaw"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
)

// Input входные данные детектора
type Input struct {
	Price     float64
	Timeframe string
	EMAs      models.EMASet
	Candles   []*models.Candle
	Bands     *powerlaw.Bands
}

// Result уровни по обе стороны от цены
type Result struct {
	Supports    []models.SupportResistanceLevel `json:"supports"`
	Resistances []models.SupportResistanceLevel `json:"resistances"`
}

// Detector детектор уровней
type Detector struct {
	config config.LevelsConfig
}

// NewDetector создает новый детектор уровней
func NewDetector(cfg config.LevelsConfig) *Detector {
	return &Detector{
		config: cfg,
	}
}

// Detect строит ранжированные уровни. Чистая функция от входа.
func (d *Detector) Detect(in Input) Result {
	if in.Price <= 0 {
		return Result{}
	}

	var candidates []models.SupportResistanceLevel
	candidates = append(candidates, d.emaLevels(in)...)
	candidates = append(candidates, d.fibonacciLevels(in)...)
	candidates = append(candidates, d.pivotLevels(in)...)
	candidates = append(candidates, d.modelLevels(in)...)

	var kept []models.SupportResistanceLevel
	for _, lvl := range candidates {
		if lvl.Price <= 0 || lvl.Price == in.Price {
			continue
		}
		distance := math.Abs(mathx.PercentDistance(in.Price, lvl.Price))
		if lvl.Price < in.Price {
			if distance > d.config.MaxSupportDistance {
				continue
			}
			lvl.Score += scoreSupport(distance)
		} else {
			if distance > d.config.MaxResistanceDistance {
				continue
			}
			lvl.Score += scoreResistance(distance)
		}
		kept = append(kept, lvl)
	}

	kept = Dedupe(kept, d.config.DedupPercent)

	return finalize(in.Price, kept, d.config.MaxLevels)
}

// emaLevels уровни по EMA
func (d *Detector) emaLevels(in Input) []models.SupportResistanceLevel {
	var out []models.SupportResistanceLevel
	for _, p := range in.EMAs.Periods() {
		bonus := 0.0
		if p >= 99 {
			bonus = 5
		}
		out = append(out, models.SupportResistanceLevel{
			Price:        in.EMAs[p],
			Kind:         models.LevelEMA,
			Label:        fmt.Sprintf("EMA %d", p),
			TimeframeTag: in.Timeframe,
			Score:        bonus,
			Rationale:    fmt.Sprintf("Dynamic EMA%d on %s", p, in.Timeframe),
		})
	}
	return out
}

// fibonacciLevels расширения Фибоначчи от последнего диапазона
func (d *Detector) fibonacciLevels(in Input) []models.SupportResistanceLevel {
	if len(in.Candles) < 2 {
		return nil
	}

	high, low := in.Candles[0].High, in.Candles[0].Low
	for _, c := range in.Candles {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	rng := high - low
	if rng <= 0 {
		return nil
	}

	ext := d.config.FibExtension
	label := fmt.Sprintf("Fib %.3f", ext)
	out := []models.SupportResistanceLevel{{
		Price:        low + rng*ext,
		Kind:         models.LevelFibonacci,
		Label:        label,
		TimeframeTag: in.Timeframe,
		Rationale:    fmt.Sprintf("%.3f extension of the %.2f-%.2f swing", ext, low, high),
	}}
	if down := high - rng*ext; down > 0 {
		out = append(out, models.SupportResistanceLevel{
			Price:        down,
			Kind:         models.LevelFibonacci,
			Label:        label,
			TimeframeTag: in.Timeframe,
			Rationale:    fmt.Sprintf("%.3f downside extension of the %.2f-%.2f swing", ext, low, high),
		})
	}
	return out
}

// pivotLevels локальные максимумы и минимумы с количеством касаний
func (d *Detector) pivotLevels(in Input) []models.SupportResistanceLevel {
	w := d.config.PivotWindow
	if w < 1 {
		w = 1
	}
	candles := in.Candles
	var out []models.SupportResistanceLevel

	for i := w; i < len(candles)-w; i++ {
		isHigh, isLow := true, true
		for j := i - w; j <= i+w; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			out = append(out, d.pivot(in, candles[i].High, "Pivot high"))
		}
		if isLow {
			out = append(out, d.pivot(in, candles[i].Low, "Pivot low"))
		}
	}
	return out
}

func (d *Detector) pivot(in Input, price float64, label string) models.SupportResistanceLevel {
	touches := countTouches(in.Candles, price, d.config.TouchTolerance)
	return models.SupportResistanceLevel{
		Price:        price,
		Kind:         models.LevelPivot,
		Label:        label,
		TimeframeTag: in.Timeframe,
		Touches:      touches,
		Score:        math.Min(float64(touches), 3) * 3,
		Rationale:    fmt.Sprintf("%s tested %d times on %s", label, touches, in.Timeframe),
	}
}

// modelLevels полосы модели степенного закона
func (d *Detector) modelLevels(in Input) []models.SupportResistanceLevel {
	if in.Bands == nil || in.Bands.Fair <= 0 {
		return nil
	}
	bands := []struct {
		price float64
		label string
	}{
		{in.Bands.Floor, "Power Law floor"},
		{in.Bands.Fair, "Power Law fair value"},
		{in.Bands.Ceiling, "Power Law ceiling"},
	}
	out := make([]models.SupportResistanceLevel, 0, len(bands))
	for _, b := range bands {
		out = append(out, models.SupportResistanceLevel{
			Price:        b.price,
			Kind:         models.LevelModel,
			Label:        b.label,
			TimeframeTag: "model",
			Score:        3,
			Rationale:    "Long-horizon power law band",
		})
	}
	return out
}

// countTouches количество свечей, чей максимум или минимум в пределах допуска
func countTouches(candles []*models.Candle, price, tolerancePercent float64) int {
	touches := 0
	for _, c := range candles {
		if math.Abs(mathx.PercentDistance(price, c.High)) <= tolerancePercent ||
			math.Abs(mathx.PercentDistance(price, c.Low)) <= tolerancePercent {
			touches++
		}
	}
	return touches
}

// scoreSupport базовый балл поддержки по расстоянию
func scoreSupport(distance float64) float64 {
	switch {
	case distance < 2:
		return 75
	case distance <= 5:
		return 95
	case distance <= 10:
		return 85
	case distance <= 15:
		return 70
	default:
		return 50
	}
}

// scoreResistance базовый балл сопротивления по расстоянию
func scoreResistance(distance float64) float64 {
	switch {
	case distance <= 5:
		return 90
	case distance <= 10:
		return 80
	case distance <= 20:
		return 70
	default:
		return 60
	}
}

// strengthFor сила по баллу
func strengthFor(score float64) models.Strength {
	switch {
	case score >= 85:
		return models.StrengthHigh
	case score >= 70:
		return models.StrengthMedium
	default:
		return models.StrengthLow
	}
}

// Dedupe сортирует уровни по цене и сливает уровни ближе pct процентов
// к последнему сохраненному. Выживает уровень с большим баллом.
func Dedupe(levels []models.SupportResistanceLevel, pct float64) []models.SupportResistanceLevel {
	if len(levels) == 0 {
		return nil
	}
	sorted := make([]models.SupportResistanceLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	out := []models.SupportResistanceLevel{sorted[0]}
	for _, lvl := range sorted[1:] {
		last := &out[len(out)-1]
		if math.Abs(mathx.PercentDistance(last.Price, lvl.Price)) < pct {
			touches := last.Touches + lvl.Touches
			if lvl.Score > last.Score {
				*last = lvl
			}
			last.Touches = touches
			continue
		}
		out = append(out, lvl)
	}
	return out
}

// finalize разделяет уровни по сторонам, обрезает до max и заполняет производные поля
func finalize(price float64, levels []models.SupportResistanceLevel, max int) Result {
	var res Result
	for _, lvl := range levels {
		lvl.Score = mathx.Clamp(lvl.Score, 0, 100)
		lvl.Strength = strengthFor(lvl.Score)
		lvl.DistancePercent = mathx.RoundTo(mathx.PercentDistance(price, lvl.Price), 2)
		lvl.Price = mathx.RoundPrice(lvl.Price)
		switch {
		case lvl.Price < price:
			res.Supports = append(res.Supports, lvl)
		case lvl.Price > price:
			res.Resistances = append(res.Resistances, lvl)
		}
	}

	res.Supports = rankSupports(res.Supports, max)
	res.Resistances = rankResistances(res.Resistances, max)
	return res
}

// rankSupports лучшие по баллу, при равенстве ближе к цене
func rankSupports(levels []models.SupportResistanceLevel, max int) []models.SupportResistanceLevel {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Score != levels[j].Score {
			return levels[i].Score > levels[j].Score
		}
		return math.Abs(levels[i].DistancePercent) < math.Abs(levels[j].DistancePercent)
	})
	if len(levels) > max {
		levels = levels[:max]
	}
	return levels
}

// rankResistances лучшие по баллу, затем по близости к цене
func rankResistances(levels []models.SupportResistanceLevel, max int) []models.SupportResistanceLevel {
	levels = rankSupports(levels, max)
	sort.SliceStable(levels, func(i, j int) bool {
		return math.Abs(levels[i].DistancePercent) < math.Abs(levels[j].DistancePercent)
	})
	return levels
}
