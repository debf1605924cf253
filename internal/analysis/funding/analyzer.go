// internal/analysis/funding/analyzer.go
package funding

import (
	"fmt"
	"math"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
)

// Полосы ставки финансирования
const (
	BandExtremePositive = "extreme_positive"
	BandHighPositive    = "high_positive"
	BandNeutral         = "neutral"
	BandNegative        = "negative"
	BandExtremeNegative = "extreme_negative"
)

// Риски сквиза
const (
	SqueezeLong  = "long_squeeze_risk"
	SqueezeShort = "short_squeeze_risk"
	SqueezeNone  = "none"
)

// Classification классификация текущей ставки
type Classification struct {
	Band    string  `json:"band"`
	Squeeze string  `json:"squeeze"`
	Score   float64 `json:"score"`
}

// Result результат анализа истории ставок
type Result struct {
	Classification
	RatePercent float64 `json:"rate_percent"`
	TrendScore  float64 `json:"trend_score"`
	ChangeScore float64 `json:"change_score"`
}

// Analyzer реализует анализатор ставок финансирования
type Analyzer struct {
	config config.DerivativesConfig
}

// NewAnalyzer создает новый анализатор ставок финансирования
func NewAnalyzer(cfg config.DerivativesConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Classify относит ставку (в процентах) к полосе. Вклад в счет контрарный:
// высокая положительная ставка означает перегруженные лонги.
func (a *Analyzer) Classify(ratePercent float64) Classification {
	switch {
	case ratePercent > a.config.ExtremePositive:
		return Classification{Band: BandExtremePositive, Squeeze: SqueezeLong, Score: -40}
	case ratePercent > a.config.HighPositive:
		return Classification{Band: BandHighPositive, Squeeze: SqueezeLong, Score: -20}
	case ratePercent < a.config.ExtremeNegative:
		return Classification{Band: BandExtremeNegative, Squeeze: SqueezeShort, Score: 40}
	case ratePercent < a.config.Negative:
		return Classification{Band: BandNegative, Squeeze: SqueezeShort, Score: 20}
	default:
		return Classification{Band: BandNeutral, Squeeze: SqueezeNone, Score: 0}
	}
}

// Analyze анализирует историю ставок (по возрастанию времени)
func (a *Analyzer) Analyze(rates []*models.FundingRate) (*Result, error) {
	if len(rates) == 0 {
		return nil, fmt.Errorf("нет данных о ставках финансирования")
	}

	// Ставки в процентах
	values := make([]float64, len(rates))
	for i, r := range rates {
		values[i] = r.Rate * 100
	}
	current := values[len(values)-1]

	return &Result{
		Classification: a.Classify(current),
		RatePercent:    current,
		TrendScore:     analyzeTrend(values),
		ChangeScore:    analyzeChange(values),
	}, nil
}

// analyzeTrend анализирует тренд ставок финансирования
func analyzeTrend(values []float64) float64 {
	// Нужно минимум 3 значения для анализа тренда
	if len(values) < 3 {
		return 0
	}

	// Растущие ставки - медвежий сигнал, падающие - бычий
	slope := mathx.Slope(values)
	return -100 * mathx.Clamp(slope/0.01, -1, 1)
}

// analyzeChange анализирует последнее изменение ставки
func analyzeChange(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	change := values[len(values)-1] - values[len(values)-2]
	return -100 * math.Copysign(math.Min(math.Abs(change)/0.1, 1.0), change)
}
