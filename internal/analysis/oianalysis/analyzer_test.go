package oianalysis

import (
	"math"
	"testing"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

func TestClassify(t *testing.T) {
	a := NewAnalyzer(config.Default().Analysis.Derivatives)

	tests := []struct {
		name      string
		oi, price float64
		trend     string
		signal    string
		scoreSign float64
	}{
		{"рост OI и цены", 6, 3, TrendRising, SignalBullish, 1},
		{"рост OI при падении цены", 6, -3, TrendRising, SignalBearish, -1},
		{"набор позиций во флэте", 6, 0.1, TrendRising, SignalBuildup, 0},
		{"падение OI", -4, 3, TrendFalling, SignalNeutral, 0},
		{"OI без изменений", 1, 5, TrendFlat, SignalNeutral, 0},
	}
	for _, tt := range tests {
		got := a.Classify(tt.oi, tt.price)
		if got.Trend != tt.trend || got.Signal != tt.signal {
			t.Errorf("%s: ожидалось %s/%s, получено %s/%s", tt.name, tt.trend, tt.signal, got.Trend, got.Signal)
		}
		if math.Copysign(1, got.Score) != tt.scoreSign && tt.scoreSign != 0 {
			t.Errorf("%s: неверный знак счета %f", tt.name, got.Score)
		}
		if tt.scoreSign == 0 && got.Score != 0 {
			t.Errorf("%s: ожидался нулевой счет, получено %f", tt.name, got.Score)
		}
	}
}

func TestClassifyScoreSaturates(t *testing.T) {
	a := NewAnalyzer(config.Default().Analysis.Derivatives)

	if got := a.Classify(2.5, 2).Score; math.Abs(got-30) > 1e-9 {
		t.Errorf("ожидалось 30, получено %f", got)
	}
	if got := a.Classify(20, 2).Score; got != 60 {
		t.Errorf("ожидалось 60, получено %f", got)
	}
}

func TestChangePercent(t *testing.T) {
	history := []*models.OpenInterest{
		{ValueUSD: 100},
		{ValueUSD: 105},
		{ValueUSD: 110},
	}
	if got := ChangePercent(history); math.Abs(got-10) > 1e-9 {
		t.Errorf("ожидалось 10%%, получено %f", got)
	}
	if got := ChangePercent(history[:1]); got != 0 {
		t.Errorf("одной точки недостаточно, получено %f", got)
	}
}
