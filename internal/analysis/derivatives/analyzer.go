// Package derivatives сводит фандинг и открытый интерес в один снимок
// и хранит последние удачные значения на случай сбоя источника.
package derivatives

import (
	"fmt"
	"time"

	"github.com/skalibog/btcscope/internal/analysis/funding"
	"github.com/skalibog/btcscope/internal/analysis/oianalysis"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
)

// Input сырые данные деривативов по символу
type Input struct {
	Symbol          string
	FundingRates    []*models.FundingRate
	NextFundingTime time.Time
	OpenInterest    *models.OpenInterest
	OIHistory       []*models.OpenInterest
	PriceChange24h  float64
}

// Analyzer анализатор деривативов
type Analyzer struct {
	config  config.DerivativesConfig
	funding *funding.Analyzer
	oi      *oianalysis.Analyzer
}

// NewAnalyzer создает новый анализатор деривативов
func NewAnalyzer(cfg config.DerivativesConfig) *Analyzer {
	return &Analyzer{
		config:  cfg,
		funding: funding.NewAnalyzer(cfg),
		oi:      oianalysis.NewAnalyzer(cfg),
	}
}

// Analyze строит снимок деривативов. Без ставок финансирования снимок не строится.
func (a *Analyzer) Analyze(in Input, now time.Time) (*models.DerivativesSnapshot, error) {
	fr, err := a.funding.Analyze(in.FundingRates)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Symbol, err)
	}

	oiChange := oianalysis.ChangePercent(in.OIHistory)
	oi := a.oi.Classify(oiChange, in.PriceChange24h)

	snap := &models.DerivativesSnapshot{
		Symbol:                in.Symbol,
		OpenInterestChange24h: mathx.RoundTo(oiChange, 2),
		PriceChange24h:        mathx.RoundTo(in.PriceChange24h, 2),
		FundingRatePercent:    fr.RatePercent,
		NextFundingTime:       in.NextFundingTime,
		FundingBand:           fr.Band,
		SqueezeSignal:         fr.Squeeze,
		FundingTrendScore:     mathx.RoundTo(fr.TrendScore, 1),
		OITrend:               oi.Trend,
		OISignal:              oi.Signal,
		CombinedScore:         a.Combine(oi.Score, fr.Score),
		UpdatedAt:             now,
	}
	if in.OpenInterest != nil {
		snap.OpenInterestUSD = in.OpenInterest.ValueUSD
	}
	return snap, nil
}

// Combine взвешенная сумма вкладов OI и фандинга в диапазоне [-100, 100]
func (a *Analyzer) Combine(oiScore, fundingScore float64) float64 {
	return mathx.Clamp(a.config.OpenInterestWeight*oiScore+a.config.FundingWeight*fundingScore, -100, 100)
}

// Neutral нейтральный снимок для холодного старта без данных
func Neutral(symbol string, now time.Time) models.DerivativesSnapshot {
	return models.DerivativesSnapshot{
		Symbol:        symbol,
		FundingBand:   funding.BandNeutral,
		SqueezeSignal: funding.SqueezeNone,
		OITrend:       oianalysis.TrendFlat,
		OISignal:      oianalysis.SignalNeutral,
		UpdatedAt:     now,
	}
}
