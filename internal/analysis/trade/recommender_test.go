package trade

import (
	"testing"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

func newRecommender() *Recommender {
	return NewRecommender(config.Default().Analysis.Trade)
}

func TestRankSignals(t *testing.T) {
	scores := []models.SignalScore{
		{Asset: "ETHUSDT", Timeframe: "1h", TotalScore: 70, Confidence: 80},
		{Asset: "BTCUSDT", Timeframe: "4h", TotalScore: 90, Confidence: 90},
		{Asset: "BNBUSDT", Timeframe: "1h", TotalScore: 70, Confidence: 85},
		{Asset: "BTCUSDT", Timeframe: "1h", TotalScore: 70, Confidence: 80},
	}

	ranked := RankSignals(scores, 0)
	want := []string{"BTCUSDT/4h", "BNBUSDT/1h", "BTCUSDT/1h", "ETHUSDT/1h"}
	for i, s := range ranked {
		if got := s.Asset + "/" + s.Timeframe; got != want[i] {
			t.Errorf("позиция %d: ожидалось %s, получено %s", i, want[i], got)
		}
		if s.Rank != i+1 {
			t.Errorf("позиция %d: ожидался ранг %d, получено %d", i, i+1, s.Rank)
		}
	}

	if top := RankSignals(scores, 2); len(top) != 2 || top[1].Rank != 2 {
		t.Errorf("ожидались 2 лучших, получено %v", top)
	}
	if scores[0].Rank != 0 {
		t.Error("входной срез не должен изменяться")
	}
}

func TestMedal(t *testing.T) {
	if Medal(1) != "🥇" || Medal(2) != "🥈" || Medal(3) != "🥉" || Medal(4) != "#4" {
		t.Error("неверные значки рангов")
	}
}

func TestGenerateTradeSetupRejects(t *testing.T) {
	r := newRecommender()
	base := models.SignalScore{Asset: "BTCUSDT", Timeframe: "1h", Direction: models.Long, Confidence: 70, ConfluenceScore: 66, Price: 60000, ATR: 600}

	tests := []struct {
		name string
		mod  func(s *models.SignalScore)
	}{
		{"нейтральный", func(s *models.SignalScore) { s.Direction = models.Neutral }},
		{"низкая уверенность", func(s *models.SignalScore) { s.Confidence = 54.9 }},
		{"слабое подтверждение", func(s *models.SignalScore) { s.ConfluenceScore = 39 }},
		{"нет цены", func(s *models.SignalScore) { s.Price = 0 }},
	}
	for _, tt := range tests {
		s := base
		tt.mod(&s)
		if setup := r.GenerateTradeSetup(s); setup != nil {
			t.Errorf("%s: ожидался nil, получено %+v", tt.name, setup)
		}
	}

	if r.GenerateTradeSetup(base) == nil {
		t.Error("базовый сигнал должен давать сетап")
	}
}

func TestGenerateTradeSetupLong(t *testing.T) {
	r := newRecommender()
	setup := r.GenerateTradeSetup(models.SignalScore{
		Asset: "BTCUSDT", Timeframe: "1h", Direction: models.Long,
		Confidence: 80, ConfluenceScore: 100, Price: 60000, ATR: 600,
	})
	if setup == nil {
		t.Fatal("ожидался сетап")
	}

	// стоп 1.5%: 600*1.5/60000
	if setup.StopLoss.Price != 59100 || setup.StopLoss.DistancePercent != 1.5 {
		t.Errorf("неверный стоп: %+v", setup.StopLoss)
	}
	wantTP := []float64{60900, 61800, 62700}
	wantExit := []float64{40, 35, 25}
	for i, tp := range setup.TakeProfits {
		if tp.Price != wantTP[i] || tp.ExitPercent != wantExit[i] || tp.Level != i+1 {
			t.Errorf("TP%d: %+v", i+1, tp)
		}
	}
	if setup.RiskReward != 2 || setup.EstimatedDuration != "4-12 hours" {
		t.Errorf("неверные RR/длительность: %v %s", setup.RiskReward, setup.EstimatedDuration)
	}
	// floor(0.8*20/1.5) = 10
	if setup.Leverage.Suggested != 10 || setup.Leverage.Min != 5 || setup.Leverage.Max != 15 {
		t.Errorf("неверное плечо: %+v", setup.Leverage)
	}
}

func TestGenerateTradeSetupShortAndClamps(t *testing.T) {
	r := newRecommender()
	setup := r.GenerateTradeSetup(models.SignalScore{
		Timeframe: "15m", Direction: models.Short, Confidence: 60, ConfluenceScore: 50, Price: 100, ATR: 0.01,
	})
	if setup == nil {
		t.Fatal("ожидался сетап")
	}
	if setup.StopLoss.DistancePercent != 0.5 || setup.StopLoss.Price != 100.5 {
		t.Errorf("стоп должен ограничиваться снизу 0.5%%: %+v", setup.StopLoss)
	}
	if setup.TakeProfits[2].Price != 98.5 {
		t.Errorf("TP3 шорта ниже цены: %+v", setup.TakeProfits[2])
	}

	// без ATR используется таблица таймфреймов
	setup = r.GenerateTradeSetup(models.SignalScore{
		Timeframe: "4h", Direction: models.Long, Confidence: 60, ConfluenceScore: 50, Price: 100,
	})
	if setup.StopLoss.DistancePercent != 3 {
		t.Errorf("ожидался табличный стоп 3%%, получено %f", setup.StopLoss.DistancePercent)
	}
}

func TestSuggestLeverageBounds(t *testing.T) {
	r := newRecommender()

	high := r.SuggestLeverage(100, 0.5)
	if high.Suggested != 20 || high.Max != 20 {
		t.Errorf("ожидался потолок 20x, получено %+v", high)
	}
	if len(high.Warnings) == 0 {
		t.Error("ожидались предупреждения о высоком плече")
	}

	low := r.SuggestLeverage(55, 5)
	if low.Suggested != 2 || low.Min != 1 || low.Max != 3 {
		t.Errorf("ожидалось 2x (1..3), получено %+v", low)
	}
	if len(low.Warnings) != 0 {
		t.Errorf("не ожидалось предупреждений: %v", low.Warnings)
	}

	for conf := 0.0; conf <= 100; conf += 5 {
		for stop := 0.5; stop <= 5; stop += 0.25 {
			lev := r.SuggestLeverage(conf, stop)
			if lev.Suggested < 1 || lev.Suggested > 20 || lev.Min > lev.Suggested || lev.Max < lev.Suggested {
				t.Fatalf("плечо вне границ при conf=%v stop=%v: %+v", conf, stop, lev)
			}
		}
	}
}
