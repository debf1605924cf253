// Package powerlaw реализует оценку справедливой цены BTC по модели степенного закона
// и расчет кредита под залог BTC.
package powerlaw

import (
	"math"
	"time"

	"github.com/skalibog/btcscope/pkg/models"
)

// Параметры модели
const (
	Intercept  = -1.847796462
	Exponent   = 5.616314045
	DaysInYear = 365.25

	baseLTV            = 0.60
	overvaluedLTVScale = 0.85
	liquidationLTV     = 0.91
	marginCallLTV      = 0.85
)

// Genesis дата генезис-блока Bitcoin
var Genesis = time.Date(2009, time.January, 3, 0, 0, 0, 0, time.UTC)

// Zone зона оценки
type Zone struct {
	Code        string
	Label       string
	MaxRatio    float64
	Inclusive   bool
	Opportunity float64
	Allocation  float64
}

// Zones отсортированы по возрастанию верхней границы отношения
var Zones = []Zone{
	{Code: "extreme_under", Label: "INFRAVALORACIÓN EXTREMA", MaxRatio: 0.3, Opportunity: 100, Allocation: 80},
	{Code: "floor", Label: "SUELO (FLOOR)", MaxRatio: 0.5, Opportunity: 90, Allocation: 60},
	{Code: "undervalued", Label: "INFRAVALORADO (UNDERVALUED)", MaxRatio: 0.85, Inclusive: true, Opportunity: 75, Allocation: 40},
	{Code: "fair", Label: "JUSTO (FAIR VALUE)", MaxRatio: 1.2, Opportunity: 50, Allocation: 20},
	{Code: "overvalued", Label: "SOBREVALORADO (OVERVALUED)", MaxRatio: 2.0, Opportunity: 30, Allocation: 0},
	{Code: "ceiling", Label: "TECHO (CEILING)", MaxRatio: 3.0, Opportunity: 10, Allocation: 0},
	{Code: "extreme_over", Label: "SOBREVALORACIÓN EXTREMA", MaxRatio: math.Inf(1), Opportunity: 0, Allocation: 0},
}

// Решения по итоговому баллу
const (
	DecisionExecute = "execute"
	DecisionCaution = "caution"
	DecisionReject  = "reject"
)

// Input входные данные модели
type Input struct {
	CurrentPrice       float64
	DaysSinceGenesis   int
	PortfolioValue     float64
	AnnualInterestRate float64
}

// Bands ценовые полосы модели для детектора уровней
type Bands struct {
	Floor   float64
	Fair    float64
	Ceiling float64
}

// DaysSinceGenesis количество полных дней с генезис-блока
func DaysSinceGenesis(t time.Time) int {
	days := int(t.UTC().Sub(Genesis).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// FairValueAt справедливая цена для заданного количества дней
func FairValueAt(days int) float64 {
	years := float64(days) / DaysInYear
	if years <= 0 {
		return 0
	}
	return math.Pow(10, Intercept) * math.Pow(years, Exponent)
}

// BandsAt возвращает полосы пола, справедливой цены и потолка
func BandsAt(days int) Bands {
	fair := FairValueAt(days)
	return Bands{
		Floor:   fair * 0.5,
		Fair:    fair,
		Ceiling: fair * 2.0,
	}
}

// ZoneFor определяет зону по отношению цены к справедливой
func ZoneFor(ratio float64) Zone {
	for _, z := range Zones {
		if ratio < z.MaxRatio || (z.Inclusive && ratio == z.MaxRatio) {
			return z
		}
	}
	return Zones[len(Zones)-1]
}

// SecurityScore балл безопасности кредита по LTV
func SecurityScore(ltv float64) float64 {
	switch {
	case ltv < 0.50:
		return 100
	case ltv < 0.60:
		return 80
	case ltv < 0.70:
		return 60
	default:
		return 40
	}
}

// Analyze рассчитывает полную оценку. Чистая функция от входа.
func Analyze(in Input) models.PowerLawAnalysis {
	fair := FairValueAt(in.DaysSinceGenesis)

	ratio := 0.0
	if fair > 0 {
		ratio = in.CurrentPrice / fair
	}

	zone := ZoneFor(ratio)

	out := models.PowerLawAnalysis{
		CurrentPrice:      in.CurrentPrice,
		DaysSinceGenesis:  in.DaysSinceGenesis,
		FairValue:         fair,
		Ratio:             ratio,
		Zone:              zone.Code,
		ZoneLabel:         zone.Label,
		OpportunityScore:  zone.Opportunity,
		AllocationPercent: zone.Allocation,
	}

	// Параметры кредита
	ltv := baseLTV
	if ratio > 1.0 {
		ltv *= overvaluedLTVScale
	}
	out.LTV = ltv
	out.CollateralUSD = in.PortfolioValue * zone.Allocation / 100
	if in.CurrentPrice > 0 {
		out.CollateralBTC = out.CollateralUSD / in.CurrentPrice
	}
	out.LoanUSD = out.CollateralUSD * ltv
	out.AnnualInterestUSD = out.LoanUSD * in.AnnualInterestRate / 100

	if out.CollateralBTC > 0 {
		out.LiquidationPrice = out.LoanUSD / (out.CollateralBTC * liquidationLTV)
		out.MarginCallPrice = out.LoanUSD / (out.CollateralBTC * marginCallLTV)
		out.LeverageRatio = (out.CollateralUSD + out.LoanUSD) / out.CollateralUSD
	}

	out.SecurityScore = SecurityScore(ltv)
	out.TotalScore = out.OpportunityScore*0.6 + out.SecurityScore*0.4

	switch {
	case out.TotalScore >= 70:
		out.Decision = DecisionExecute
	case out.TotalScore >= 50:
		out.Decision = DecisionCaution
	default:
		out.Decision = DecisionReject
	}

	return out
}
