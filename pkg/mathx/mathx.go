// Package mathx содержит общие числовые помощники аналитических движков.
package mathx

import (
	"math"

	"github.com/shopspring/decimal"
)

// Clamp ограничивает значение диапазоном [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// RoundTo округляет значение до places знаков после запятой
func RoundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundPrice округляет цену: дорогие активы до центов, дешевые точнее
func RoundPrice(price float64) float64 {
	switch {
	case price >= 1000:
		return RoundTo(price, 2)
	case price >= 1:
		return RoundTo(price, 4)
	default:
		return RoundTo(price, 8)
	}
}

// PercentDistance знаковое расстояние от from до to в процентах от from
func PercentDistance(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// Slope вычисляет наклон линейной регрессии
func Slope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	n := float64(len(values))
	sumX, sumY, sumXY, sumXX := 0.0, 0.0, 0.0, 0.0

	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	// Формула наклона линейной регрессии
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0
	}

	return slope
}

// Sign возвращает знак числа
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
