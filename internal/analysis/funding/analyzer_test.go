package funding

import (
	"testing"
	"time"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

func TestClassifyBands(t *testing.T) {
	a := NewAnalyzer(config.Default().Analysis.Derivatives)

	tests := []struct {
		rate    float64
		band    string
		squeeze string
		score   float64
	}{
		{0.08, BandExtremePositive, SqueezeLong, -40},
		{0.04, BandHighPositive, SqueezeLong, -20},
		{0.01, BandNeutral, SqueezeNone, 0},
		{-0.01, BandNeutral, SqueezeNone, 0},
		{-0.02, BandNegative, SqueezeShort, 20},
		{-0.05, BandExtremeNegative, SqueezeShort, 40},
	}
	for _, tt := range tests {
		got := a.Classify(tt.rate)
		if got.Band != tt.band || got.Squeeze != tt.squeeze || got.Score != tt.score {
			t.Errorf("ставка %.3f%%: ожидалось %s/%s/%v, получено %+v", tt.rate, tt.band, tt.squeeze, tt.score, got)
		}
	}
}

func rates(values ...float64) []*models.FundingRate {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*models.FundingRate, len(values))
	for i, v := range values {
		out[i] = &models.FundingRate{Symbol: "BTCUSDT", Rate: v, Timestamp: start.Add(time.Duration(i) * 8 * time.Hour)}
	}
	return out
}

func TestAnalyzeUsesLatestRate(t *testing.T) {
	a := NewAnalyzer(config.Default().Analysis.Derivatives)

	res, err := a.Analyze(rates(0.0001, 0.0003, 0.0008))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Band != BandExtremePositive {
		t.Errorf("ожидалась полоса extreme_positive, получено %s (%.4f%%)", res.Band, res.RatePercent)
	}
	if res.TrendScore >= 0 {
		t.Errorf("растущие ставки дают медвежий тренд, получено %f", res.TrendScore)
	}
	if res.ChangeScore >= 0 {
		t.Errorf("рост ставки дает медвежье изменение, получено %f", res.ChangeScore)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	a := NewAnalyzer(config.Default().Analysis.Derivatives)
	if _, err := a.Analyze(nil); err == nil {
		t.Error("ожидалась ошибка без данных")
	}
}
