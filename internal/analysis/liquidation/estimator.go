// Package liquidation оценивает ближайшие пулы ликвидаций по обе стороны от цены.
// Качество оценки падает по цепочке: реальные кластеры ликвидаций,
// оценка по ATR и волатильности, фиксированное расстояние.
package liquidation

import (
	"math"
	"sort"
	"strings"

	"github.com/skalibog/btcscope/internal/analysis/funding"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
)

// Input входные данные оценки
type Input struct {
	Price             float64
	Asset             string
	Timeframe         string
	ATRPercent        float64
	VolatilityPercent float64
	Derivatives       *models.DerivativesSnapshot
	Events            []models.LiquidationEvent
	Direction         models.Direction
}

// Estimator оценщик пулов ликвидаций
type Estimator struct {
	config config.LiquidationConfig
}

// NewEstimator создает новый оценщик
func NewEstimator(cfg config.LiquidationConfig) *Estimator {
	return &Estimator{
		config: cfg,
	}
}

// Estimate возвращает пулы лучшим доступным методом
func (e *Estimator) Estimate(in Input) models.LiquidationPool {
	if in.Price <= 0 {
		return models.LiquidationPool{
			Method:    models.MethodFallbackFixed,
			HeatLevel: models.HeatCold,
			RiskLevel: "low",
		}
	}

	if pool, ok := e.fromClusters(in); ok {
		return e.finalize(in, pool)
	}

	if in.ATRPercent > 0 || in.VolatilityPercent > 0 {
		return e.finalize(in, e.fromVolatility(in))
	}

	return e.finalize(in, e.fixed(in))
}

type bucket struct {
	price    float64
	notional float64
}

// fromClusters ищет значимые кластеры реальных ликвидаций. Нужны обе стороны.
func (e *Estimator) fromClusters(in Input) (models.LiquidationPool, bool) {
	if len(in.Events) == 0 {
		return models.LiquidationPool{}, false
	}

	width := BucketWidth(in.Asset, in.Price)
	byKey := make(map[int64]float64)
	for _, ev := range in.Events {
		if ev.Price <= 0 || ev.Quantity <= 0 {
			continue
		}
		byKey[int64(math.Floor(ev.Price/width))] += ev.Price * ev.Quantity
	}
	if len(byKey) == 0 {
		return models.LiquidationPool{}, false
	}

	buckets := make([]bucket, 0, len(byKey))
	var total float64
	for key, notional := range byKey {
		buckets = append(buckets, bucket{price: (float64(key) + 0.5) * width, notional: notional})
		total += notional
	}
	mean := total / float64(len(buckets))
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].price < buckets[j].price })

	var below, above *bucket
	for i := range buckets {
		b := &buckets[i]
		if b.notional < mean {
			continue
		}
		dist := math.Abs(mathx.PercentDistance(in.Price, b.price))
		if dist > e.config.LookoutPercent {
			continue
		}
		switch {
		case b.price < in.Price:
			below = b // по возрастанию, последний ближайший
		case b.price > in.Price && above == nil:
			above = b
		}
	}
	if below == nil || above == nil {
		return models.LiquidationPool{}, false
	}

	return models.LiquidationPool{
		Method: models.MethodRealClusters,
		LongPool: models.PoolSide{
			Price:              below.price,
			DistancePercent:    math.Abs(mathx.PercentDistance(in.Price, below.price)),
			EstimatedLiquidity: below.notional,
		},
		ShortPool: models.PoolSide{
			Price:              above.price,
			DistancePercent:    math.Abs(mathx.PercentDistance(in.Price, above.price)),
			EstimatedLiquidity: above.notional,
		},
	}, true
}

// fromVolatility оценка расстояния по ATR и волатильности со сдвигом к перегруженной стороне
func (e *Estimator) fromVolatility(in Input) models.LiquidationPool {
	dist := mathx.Clamp(
		in.ATRPercent*e.config.ATRMultiplier+in.VolatilityPercent*e.config.VolMultiplier,
		e.config.MinDistance,
		e.config.MaxDistance,
	)
	longDist, shortDist := dist, dist

	if in.Derivatives != nil {
		switch in.Derivatives.FundingBand {
		case funding.BandExtremePositive, funding.BandHighPositive:
			longDist *= e.config.CrowdedFactor
		case funding.BandNegative, funding.BandExtremeNegative:
			shortDist *= e.config.CrowdedFactor
		}
	}

	return e.symmetric(in, models.MethodATRVolatility, longDist, shortDist)
}

// fixed фиксированное расстояние, когда данных нет
func (e *Estimator) fixed(in Input) models.LiquidationPool {
	d := e.config.FallbackPercent
	return e.symmetric(in, models.MethodFallbackFixed, d, d)
}

func (e *Estimator) symmetric(in Input, method models.LiquidationMethod, longDist, shortDist float64) models.LiquidationPool {
	var liquidity float64
	if in.Derivatives != nil {
		liquidity = in.Derivatives.OpenInterestUSD * e.config.OILiquidityShare
	}
	return models.LiquidationPool{
		Method: method,
		LongPool: models.PoolSide{
			Price:              in.Price * (1 - longDist/100),
			DistancePercent:    longDist,
			EstimatedLiquidity: liquidity,
		},
		ShortPool: models.PoolSide{
			Price:              in.Price * (1 + shortDist/100),
			DistancePercent:    shortDist,
			EstimatedLiquidity: liquidity,
		},
	}
}

// finalize заполняет нагрев, риск и рекомендуемый стоп
func (e *Estimator) finalize(in Input, pool models.LiquidationPool) models.LiquidationPool {
	nearest := math.Min(pool.LongPool.DistancePercent, pool.ShortPool.DistancePercent)
	switch {
	case nearest < e.config.HotPercent:
		pool.HeatLevel, pool.RiskLevel = models.HeatHot, "high"
	case nearest < e.config.WarmPercent:
		pool.HeatLevel, pool.RiskLevel = models.HeatWarm, "medium"
	default:
		pool.HeatLevel, pool.RiskLevel = models.HeatCold, "low"
	}

	useLong := in.Direction == models.Long ||
		(in.Direction != models.Short && pool.LongPool.DistancePercent <= pool.ShortPool.DistancePercent)
	if useLong {
		gap := in.Price - pool.LongPool.Price
		pool.SuggestedStopLoss = pool.LongPool.Price + gap*e.config.SafetyMargin
	} else {
		gap := pool.ShortPool.Price - in.Price
		pool.SuggestedStopLoss = pool.ShortPool.Price - gap*e.config.SafetyMargin
	}

	pool.LongPool.Price = mathx.RoundPrice(pool.LongPool.Price)
	pool.ShortPool.Price = mathx.RoundPrice(pool.ShortPool.Price)
	pool.LongPool.DistancePercent = mathx.RoundTo(pool.LongPool.DistancePercent, 2)
	pool.ShortPool.DistancePercent = mathx.RoundTo(pool.ShortPool.DistancePercent, 2)
	pool.SuggestedStopLoss = mathx.RoundPrice(pool.SuggestedStopLoss)
	return pool
}

// BucketWidth ширина ценового бакета для кластеризации ликвидаций
func BucketWidth(asset string, price float64) float64 {
	asset = strings.ToUpper(asset)
	switch {
	case strings.HasPrefix(asset, "BTC"):
		return 100
	case strings.HasPrefix(asset, "ETH"):
		return 10
	case strings.HasPrefix(asset, "BNB"):
		return 1
	default:
		if price <= 0 {
			return 1
		}
		return price * 0.001
	}
}
