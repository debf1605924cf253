package levels

import (
	"math"
	"testing"
	"time"

	"github.com/skalibog/btcscope/internal/analysis/powerlaw"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

func zigzagCandles(n int, base float64) []*models.Candle {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]*models.Candle, n)
	for i := 0; i < n; i++ {
		// пилообразное движение дает набор пивотов
		offset := float64(i%10) - 5
		if (i/10)%2 == 1 {
			offset = -offset
		}
		c := base + offset*base*0.004
		candles[i] = &models.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     c,
			High:     c * 1.002,
			Low:      c * 0.998,
			Close:    c,
			Volume:   10,
		}
	}
	return candles
}

func allLevels(res Result) []models.SupportResistanceLevel {
	return append(append([]models.SupportResistanceLevel{}, res.Supports...), res.Resistances...)
}

func TestDetectNoLevelsCloserThanDedupPercent(t *testing.T) {
	cfg := config.Default().Analysis.Levels
	d := NewDetector(cfg)

	price := 60000.0
	bands := powerlaw.Bands{Floor: 30000, Fair: 61000, Ceiling: 122000}
	res := d.Detect(Input{
		Price:     price,
		Timeframe: "1h",
		EMAs:      models.EMASet{9: 59900, 21: 59850, 50: 59000, 200: 57000},
		Candles:   zigzagCandles(120, price),
		Bands:     &bands,
	})

	levels := allLevels(res)
	if len(levels) == 0 {
		t.Fatal("ожидались уровни")
	}
	for i := range levels {
		for j := i + 1; j < len(levels); j++ {
			a, b := levels[i].Price, levels[j].Price
			if math.Abs(a-b)/math.Min(a, b)*100 < cfg.DedupPercent-1e-6 {
				t.Errorf("уровни %f и %f ближе %.1f%%", a, b, cfg.DedupPercent)
			}
		}
	}
}

func TestDetectSidesAndFilters(t *testing.T) {
	cfg := config.Default().Analysis.Levels
	d := NewDetector(cfg)

	price := 100.0
	res := d.Detect(Input{
		Price:     price,
		Timeframe: "1d",
		EMAs:      models.EMASet{25: 97, 55: 90, 99: 70, 200: 130},
	})

	if len(res.Supports) != 2 {
		t.Fatalf("ожидалось 2 поддержки (EMA99 дальше 15%%), получено %d", len(res.Supports))
	}
	for _, s := range res.Supports {
		if s.Price >= price {
			t.Errorf("поддержка %f не ниже цены", s.Price)
		}
		if s.DistancePercent >= 0 {
			t.Errorf("расстояние поддержки должно быть отрицательным: %f", s.DistancePercent)
		}
	}
	// EMA200 на +30% за пределом 20%
	if len(res.Resistances) != 0 {
		t.Errorf("не ожидалось сопротивлений, получено %v", res.Resistances)
	}

	// 3% -> 95, 10% -> 85: лучшая поддержка первая
	if res.Supports[0].Price != 97 || res.Supports[0].Score != 95 || res.Supports[0].Strength != models.StrengthHigh {
		t.Errorf("неожиданная первая поддержка: %+v", res.Supports[0])
	}
}

func TestDetectCapsAtMaxLevels(t *testing.T) {
	cfg := config.Default().Analysis.Levels
	d := NewDetector(cfg)

	emas := models.EMASet{}
	for i := 1; i <= 12; i++ {
		emas[i] = 100 - float64(i)
		emas[100+i] = 100 + float64(i)
	}
	res := d.Detect(Input{Price: 100, Timeframe: "4h", EMAs: emas})

	if len(res.Supports) > cfg.MaxLevels || len(res.Resistances) > cfg.MaxLevels {
		t.Errorf("превышен лимит уровней: %d / %d", len(res.Supports), len(res.Resistances))
	}
	for i := 1; i < len(res.Resistances); i++ {
		if res.Resistances[i].DistancePercent < res.Resistances[i-1].DistancePercent {
			t.Error("сопротивления должны идти по близости к цене")
		}
	}
}

func TestDedupeKeepsHigherScoreAndSumsTouches(t *testing.T) {
	in := []models.SupportResistanceLevel{
		{Price: 100, Score: 70, Touches: 1, Label: "a"},
		{Price: 100.2, Score: 90, Touches: 2, Label: "b"},
		{Price: 105, Score: 50, Label: "c"},
	}
	out := Dedupe(in, 0.5)

	if len(out) != 2 {
		t.Fatalf("ожидалось 2 уровня, получено %d", len(out))
	}
	if out[0].Label != "b" || out[0].Touches != 3 {
		t.Errorf("ожидался уровень b с 3 касаниями, получено %+v", out[0])
	}
}

func TestStrengthFor(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Strength
	}{
		{95, models.StrengthHigh},
		{85, models.StrengthHigh},
		{84, models.StrengthMedium},
		{70, models.StrengthMedium},
		{69, models.StrengthLow},
	}
	for _, tt := range tests {
		if got := strengthFor(tt.score); got != tt.want {
			t.Errorf("score %v: ожидалось %s, получено %s", tt.score, tt.want, got)
		}
	}
}
