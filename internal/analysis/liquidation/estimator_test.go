package liquidation

import (
	"math"
	"testing"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

func newEstimator() *Estimator {
	return NewEstimator(config.Default().Analysis.Liquidation)
}

func TestFallbackFixedDistance(t *testing.T) {
	pool := newEstimator().Estimate(Input{Price: 100000, Asset: "BTCUSDT", Direction: models.Long})

	if pool.Method != models.MethodFallbackFixed {
		t.Fatalf("ожидался метод fallback_fixed, получено %s", pool.Method)
	}
	if pool.LongPool.Price != 97000 || pool.ShortPool.Price != 103000 {
		t.Errorf("ожидались пулы 97000/103000, получено %f/%f", pool.LongPool.Price, pool.ShortPool.Price)
	}
	if pool.HeatLevel != models.HeatCold || pool.RiskLevel != "low" {
		t.Errorf("ожидался холодный пул, получено %s/%s", pool.HeatLevel, pool.RiskLevel)
	}
	if pool.SuggestedStopLoss != 97750 {
		t.Errorf("ожидался стоп 97750, получено %f", pool.SuggestedStopLoss)
	}
}

func TestVolatilityEstimateWithCrowdedLongs(t *testing.T) {
	deriv := &models.DerivativesSnapshot{FundingBand: "extreme_positive", OpenInterestUSD: 1e9}
	pool := newEstimator().Estimate(Input{
		Price:             50000,
		Asset:             "BTCUSDT",
		ATRPercent:        1,
		VolatilityPercent: 0.4,
		Derivatives:       deriv,
	})

	if pool.Method != models.MethodATRVolatility {
		t.Fatalf("ожидался метод atr_volatility, получено %s", pool.Method)
	}
	if pool.ShortPool.DistancePercent != 1.7 {
		t.Errorf("ожидалось 1.7%% до шортового пула, получено %f", pool.ShortPool.DistancePercent)
	}
	if pool.LongPool.DistancePercent != 1.36 {
		t.Errorf("перегруженные лонги ближе: ожидалось 1.36%%, получено %f", pool.LongPool.DistancePercent)
	}
	if pool.HeatLevel != models.HeatHot {
		t.Errorf("ожидался горячий пул, получено %s", pool.HeatLevel)
	}
	if math.Abs(pool.LongPool.EstimatedLiquidity-5e7) > 1e-3 {
		t.Errorf("ожидалась ликвидность 5%% от OI, получено %f", pool.LongPool.EstimatedLiquidity)
	}
}

func TestVolatilityDistanceClamped(t *testing.T) {
	pool := newEstimator().Estimate(Input{Price: 10, Asset: "XRPUSDT", ATRPercent: 20})
	if pool.LongPool.DistancePercent != 15 {
		t.Errorf("ожидалось ограничение 15%%, получено %f", pool.LongPool.DistancePercent)
	}

	pool = newEstimator().Estimate(Input{Price: 10, Asset: "XRPUSDT", ATRPercent: 0.1})
	if pool.LongPool.DistancePercent != 1 {
		t.Errorf("ожидался минимум 1%%, получено %f", pool.LongPool.DistancePercent)
	}
}

func TestRealClusters(t *testing.T) {
	events := []models.LiquidationEvent{
		{Symbol: "BTCUSDT", Side: "SELL", Price: 59210, Quantity: 10},
		{Symbol: "BTCUSDT", Side: "BUY", Price: 61020, Quantity: 10},
		{Symbol: "BTCUSDT", Side: "SELL", Price: 59910, Quantity: 0.1},
	}
	pool := newEstimator().Estimate(Input{
		Price:      60000,
		Asset:      "BTCUSDT",
		ATRPercent: 2,
		Events:     events,
		Direction:  models.Short,
	})

	if pool.Method != models.MethodRealClusters {
		t.Fatalf("ожидался метод coinglass_real, получено %s", pool.Method)
	}
	if pool.LongPool.Price != 59250 || pool.ShortPool.Price != 61050 {
		t.Errorf("ожидались кластеры 59250/61050, получено %f/%f", pool.LongPool.Price, pool.ShortPool.Price)
	}
	if math.Abs(pool.LongPool.EstimatedLiquidity-592100) > 1e-6 {
		t.Errorf("неверная ликвидность кластера: %f", pool.LongPool.EstimatedLiquidity)
	}
	if pool.SuggestedStopLoss != 60787.5 {
		t.Errorf("ожидался стоп 60787.5, получено %f", pool.SuggestedStopLoss)
	}
}

func TestClustersNeedBothSides(t *testing.T) {
	events := []models.LiquidationEvent{
		{Price: 59210, Quantity: 10},
		{Price: 59300, Quantity: 8},
	}
	pool := newEstimator().Estimate(Input{Price: 60000, Asset: "BTCUSDT", ATRPercent: 2, Events: events})
	if pool.Method != models.MethodATRVolatility {
		t.Errorf("без шортового кластера ожидался переход к atr_volatility, получено %s", pool.Method)
	}
}

func TestSuggestedStopBetweenPriceAndPool(t *testing.T) {
	e := newEstimator()
	for _, dir := range []models.Direction{models.Long, models.Short, models.Neutral} {
		pool := e.Estimate(Input{Price: 3000, Asset: "ETHUSDT", ATRPercent: 1.2, VolatilityPercent: 2, Direction: dir})
		stop := pool.SuggestedStopLoss
		inLong := stop > pool.LongPool.Price && stop < 3000
		inShort := stop < pool.ShortPool.Price && stop > 3000
		if !inLong && !inShort {
			t.Errorf("%s: стоп %f вне диапазона пулов %f..%f", dir, stop, pool.LongPool.Price, pool.ShortPool.Price)
		}
		if dir == models.Short && !inShort {
			t.Errorf("для шорта стоп должен быть выше цены: %f", stop)
		}
	}
}

func TestBucketWidth(t *testing.T) {
	tests := []struct {
		asset string
		price float64
		want  float64
	}{
		{"BTCUSDT", 60000, 100},
		{"ETHUSDT", 3000, 10},
		{"BNBUSDT", 500, 1},
		{"SOLUSDT", 150, 0.15},
	}
	for _, tt := range tests {
		if got := BucketWidth(tt.asset, tt.price); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: ожидалось %v, получено %v", tt.asset, tt.want, got)
		}
	}
}
