package position

import (
	"math"
	"testing"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

func newAnalyzer() *Analyzer {
	return NewAnalyzer(config.Default().Analysis.Position)
}

func longBTC(leverage float64) models.Position {
	return models.Position{
		ID:         "p1",
		Asset:      "BTC",
		Direction:  models.Long,
		EntryPrice: 50000,
		Size:       1,
		Leverage:   leverage,
	}
}

func TestBuildOpenPositionPnL(t *testing.T) {
	op := BuildOpenPosition(longBTC(10), 55000)

	if op.PnLUSDT != 5000 {
		t.Errorf("ожидался PnL 5000, получено %f", op.PnLUSDT)
	}
	if math.Abs(op.PnLPercent-100) > 1e-9 {
		t.Errorf("ожидался PnL +100%%, получено %f", op.PnLPercent)
	}
	if op.PositionValueUSDT != 55000 {
		t.Errorf("ожидалась стоимость 55000, получено %f", op.PositionValueUSDT)
	}

	short := longBTC(10)
	short.Direction = models.Short
	if op := BuildOpenPosition(short, 55000); op.PnLUSDT != -5000 {
		t.Errorf("шорт при росте цены должен терять: %f", op.PnLUSDT)
	}
}

func TestBuildOpenPositionAdjustments(t *testing.T) {
	p := longBTC(10)
	p.Adjustments = []models.SizeAdjustment{
		{Type: models.AdjustmentDCA, Amount: 1, Price: 40000},
		{Type: models.AdjustmentPartialClose, Amount: 0.5},
	}

	op := BuildOpenPosition(p, 50000)
	if op.AverageEntry != 45000 {
		t.Errorf("ожидалась средняя цена 45000, получено %f", op.AverageEntry)
	}
	if op.CurrentSize != 1.5 {
		t.Errorf("ожидался размер 1.5, получено %f", op.CurrentSize)
	}
	if op.Size != 1 || op.EntryPrice != 50000 {
		t.Error("исходные поля позиции не должны меняться")
	}

	p.Adjustments = append(p.Adjustments, models.SizeAdjustment{Type: models.AdjustmentPartialClose, Amount: 5})
	if op := BuildOpenPosition(p, 50000); op.CurrentSize != 0 {
		t.Errorf("размер не может быть отрицательным: %f", op.CurrentSize)
	}
}

func TestCalculatePersonalLiquidation(t *testing.T) {
	tests := []struct {
		name      string
		direction models.Direction
		asset     string
		want      float64
	}{
		{"btc long", models.Long, "BTC", 45200},
		{"btc short", models.Short, "BTCUSDT", 54800},
		{"eth long", models.Long, "ETH", 45250},
		{"unknown asset", models.Long, "DOGE", 45500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePersonalLiquidation(50000, 10, tt.direction, tt.asset)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ожидалось %f, получено %f", tt.want, got)
			}
		})
	}

	if got := CalculatePersonalLiquidation(50000, 10, models.Neutral, "BTC"); got != 0 {
		t.Errorf("для нейтрального направления цены ликвидации нет: %f", got)
	}
}

func TestCriticalDistanceExits(t *testing.T) {
	// ликвидация 45200, цена 47000: 3.8% до ликвидации
	res := newAnalyzer().AnalyzeOpenPosition(Input{
		Position:     longBTC(10),
		CurrentPrice: 47000,
		Signal:       &models.IntradaySignal{Direction: models.Long, Confidence: 90},
	})

	if res.Recommendation != models.RecommendExit {
		t.Fatalf("ожидался EXIT, получено %s", res.Recommendation)
	}
	if len(res.TacticalActions) == 0 || res.TacticalActions[0].Urgency != models.UrgencyCritical {
		t.Errorf("первое действие должно быть критическим: %+v", res.TacticalActions)
	}
	if res.RiskAssessment.LiquidationPrice != 45200 {
		t.Errorf("ожидалась ликвидация 45200, получено %f", res.RiskAssessment.LiquidationPrice)
	}
}

func TestPriceBeyondLiquidationExits(t *testing.T) {
	short := longBTC(10)
	short.Direction = models.Short

	tests := []struct {
		name     string
		position models.Position
		price    float64
		liq      float64
	}{
		// ликвидация лонга 45200
		{"лонг ниже ликвидации", longBTC(10), 40000, 45200},
		{"лонг далеко ниже ликвидации", longBTC(10), 35000, 45200},
		// ликвидация шорта 54800
		{"шорт выше ликвидации", short, 60000, 54800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newAnalyzer().AnalyzeOpenPosition(Input{
				Position:     tt.position,
				CurrentPrice: tt.price,
				Signal:       &models.IntradaySignal{Direction: tt.position.Direction, Confidence: 80},
			})

			if res.Recommendation != models.RecommendExit {
				t.Fatalf("ожидался EXIT, получено %s", res.Recommendation)
			}
			if res.TacticalActions[0].Urgency != models.UrgencyCritical {
				t.Errorf("ожидалось критическое действие: %+v", res.TacticalActions[0])
			}
			if res.RiskAssessment.DistanceToLiquidation != 0 {
				t.Errorf("за ликвидацией расстояние должно быть 0, получено %f", res.RiskAssessment.DistanceToLiquidation)
			}
			if res.RiskAssessment.LiquidationPrice != tt.liq {
				t.Errorf("ожидалась ликвидация %f, получено %f", tt.liq, res.RiskAssessment.LiquidationPrice)
			}
		})
	}
}

func TestCriticalDistanceInProfitReduces(t *testing.T) {
	// 9.8% до ликвидации в небольшом плюсе
	res := newAnalyzer().AnalyzeOpenPosition(Input{Position: longBTC(10), CurrentPrice: 50100})

	if res.Recommendation != models.RecommendReduce {
		t.Fatalf("ожидался REDUCE, получено %s", res.Recommendation)
	}
	act := res.TacticalActions[0]
	if act.Urgency != models.UrgencyCritical || act.AmountPercent != 50 {
		t.Errorf("ожидалось критическое закрытие 50%%: %+v", act)
	}
}

func TestFlipOnStrongOpposingSignal(t *testing.T) {
	res := newAnalyzer().AnalyzeOpenPosition(Input{
		Position:     longBTC(5),
		CurrentPrice: 48000,
		Signal:       &models.IntradaySignal{Direction: models.Short, Confidence: 75},
	})

	if res.Recommendation != models.RecommendFlip {
		t.Fatalf("ожидался FLIP, получено %s", res.Recommendation)
	}
	if res.TacticalActions[0].Type != models.ActionFullExit {
		t.Errorf("FLIP начинается с полного выхода: %+v", res.TacticalActions[0])
	}
}

func TestOpposingSignalInProfitReduces(t *testing.T) {
	res := newAnalyzer().AnalyzeOpenPosition(Input{
		Position:     longBTC(3),
		CurrentPrice: 52000,
		Signal:       &models.IntradaySignal{Direction: models.Short, Confidence: 80},
	})

	if res.Recommendation != models.RecommendReduce {
		t.Fatalf("ожидался REDUCE, получено %s", res.Recommendation)
	}
	if act := res.TacticalActions[0]; act.Urgency != models.UrgencyMedium || act.Amount != 0.5 {
		t.Errorf("ожидалось закрытие половины со средней срочностью: %+v", act)
	}
}

func TestDCAWhenSignalAgrees(t *testing.T) {
	res := newAnalyzer().AnalyzeOpenPosition(Input{
		Position:     longBTC(2),
		CurrentPrice: 48000,
		Signal:       &models.IntradaySignal{Direction: models.Long, Confidence: 65},
	})

	if res.Recommendation != models.RecommendDCA {
		t.Fatalf("ожидался DCA, получено %s", res.Recommendation)
	}
	act := res.TacticalActions[0]
	if act.Type != models.ActionDCABuy || act.ExpectedEffect.NewAvgEntry == nil {
		t.Fatalf("ожидалась докупка с новой средней ценой: %+v", act)
	}
	if *act.ExpectedEffect.NewAvgEntry != 49600 {
		t.Errorf("ожидалась средняя 49600, получено %f", *act.ExpectedEffect.NewAvgEntry)
	}
}

func TestScalpOnLargeProfit(t *testing.T) {
	res := newAnalyzer().AnalyzeOpenPosition(Input{
		Position:     longBTC(10),
		CurrentPrice: 55000,
		Signal:       &models.IntradaySignal{Direction: models.Long, Confidence: 70, TakeProfit1: 56000},
	})

	if res.Position.PnLPercent != 100 {
		t.Errorf("ожидался PnL +100%%, получено %f", res.Position.PnLPercent)
	}
	if res.Recommendation != models.RecommendHold {
		t.Fatalf("ожидался HOLD, получено %s", res.Recommendation)
	}
	if len(res.TacticalActions) != 1 || res.TacticalActions[0].Type != models.ActionScalpSell {
		t.Fatalf("ожидалась одна частичная фиксация: %+v", res.TacticalActions)
	}
	if res.TacticalActions[0].TriggerPrice != 56000 {
		t.Errorf("триггер должен совпадать с первой целью сигнала: %f", res.TacticalActions[0].TriggerPrice)
	}
}

func TestHotPoolAddsActionSortedByUrgency(t *testing.T) {
	pools := &models.LiquidationPool{
		LongPool:  models.PoolSide{Price: 47500, DistancePercent: 1},
		ShortPool: models.PoolSide{Price: 52000, DistancePercent: 8},
	}
	res := newAnalyzer().AnalyzeOpenPosition(Input{
		Position:     longBTC(2),
		CurrentPrice: 48000,
		Signal:       &models.IntradaySignal{Direction: models.Long, Confidence: 65},
		Pools:        pools,
	})

	if len(res.TacticalActions) != 2 {
		t.Fatalf("ожидалось 2 действия, получено %d", len(res.TacticalActions))
	}
	if res.TacticalActions[0].Urgency != models.UrgencyHigh || res.TacticalActions[1].Type != models.ActionDCABuy {
		t.Errorf("действия должны идти по срочности: %+v", res.TacticalActions)
	}
	if zone := res.RiskAssessment.NearbyLiquidationZone; zone == nil || zone.Price != 47500 {
		t.Errorf("ожидался пул лонгов как ближайшая зона: %+v", zone)
	}
}

func TestHoldWithoutSignal(t *testing.T) {
	res := newAnalyzer().AnalyzeOpenPosition(Input{Position: longBTC(10), CurrentPrice: 55000})

	if res.Recommendation != models.RecommendHold || len(res.TacticalActions) != 0 {
		t.Errorf("без сигнала ожидался HOLD без действий: %+v", res)
	}
}
