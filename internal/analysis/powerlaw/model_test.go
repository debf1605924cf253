package powerlaw

import (
	"math"
	"testing"
	"time"
)

func TestFairValueRatioOne(t *testing.T) {
	days := 6000
	fair := FairValueAt(days)

	for _, portfolio := range []float64{0, 1000, 250000} {
		res := Analyze(Input{CurrentPrice: fair, DaysSinceGenesis: days, PortfolioValue: portfolio, AnnualInterestRate: 10})

		if math.Abs(res.Ratio-1.0) > 1e-9 {
			t.Errorf("ожидалось отношение 1.00, получено %f", res.Ratio)
		}
		if res.Zone != "fair" || res.ZoneLabel != "JUSTO (FAIR VALUE)" {
			t.Errorf("ожидалась зона JUSTO (FAIR VALUE), получено %s", res.ZoneLabel)
		}
		if res.OpportunityScore != 50 {
			t.Errorf("ожидался балл возможности 50, получено %f", res.OpportunityScore)
		}
	}
}

func TestFairValueFormula(t *testing.T) {
	days := 5844 // ~16 лет
	years := float64(days) / 365.25
	want := math.Pow(10, -1.847796462) * math.Pow(years, 5.616314045)
	if got := FairValueAt(days); math.Abs(got-want) > 1e-6 {
		t.Errorf("ожидалось %f, получено %f", want, got)
	}
	if FairValueAt(0) != 0 {
		t.Error("для нулевого возраста справедливая цена должна быть 0")
	}
}

func TestZoneThresholds(t *testing.T) {
	tests := []struct {
		ratio       float64
		zone        string
		opportunity float64
		allocation  float64
	}{
		{0.1, "extreme_under", 100, 80},
		{0.3, "floor", 90, 60},
		{0.49, "floor", 90, 60},
		{0.5, "undervalued", 75, 40},
		{0.85, "undervalued", 75, 40},
		{0.86, "fair", 50, 20},
		{1.19, "fair", 50, 20},
		{1.2, "overvalued", 30, 0},
		{2.0, "ceiling", 10, 0},
		{3.0, "extreme_over", 0, 0},
		{10, "extreme_over", 0, 0},
	}

	for _, tt := range tests {
		z := ZoneFor(tt.ratio)
		if z.Code != tt.zone || z.Opportunity != tt.opportunity || z.Allocation != tt.allocation {
			t.Errorf("ratio %.2f: ожидалось %s/%v/%v, получено %s/%v/%v",
				tt.ratio, tt.zone, tt.opportunity, tt.allocation, z.Code, z.Opportunity, z.Allocation)
		}
	}
}

func TestLoanPricesOrdering(t *testing.T) {
	days := 6000
	fair := FairValueAt(days)

	for _, ratio := range []float64{0.2, 0.4, 0.7, 0.9, 1.1} {
		price := fair * ratio
		res := Analyze(Input{CurrentPrice: price, DaysSinceGenesis: days, PortfolioValue: 100000, AnnualInterestRate: 5})

		if res.LTV <= 0 || res.LTV >= 1 {
			t.Fatalf("LTV вне (0,1): %f", res.LTV)
		}
		if !(res.LiquidationPrice < res.MarginCallPrice && res.MarginCallPrice < price) {
			t.Errorf("ratio %.2f: нарушен порядок liq %f < mc %f < price %f",
				ratio, res.LiquidationPrice, res.MarginCallPrice, price)
		}
	}
}

func TestLTVReducedWhenOvervalued(t *testing.T) {
	days := 6000
	fair := FairValueAt(days)

	under := Analyze(Input{CurrentPrice: fair * 0.9, DaysSinceGenesis: days, PortfolioValue: 10000})
	over := Analyze(Input{CurrentPrice: fair * 1.1, DaysSinceGenesis: days, PortfolioValue: 10000})

	if under.LTV != 0.60 {
		t.Errorf("ожидался LTV 0.60, получено %f", under.LTV)
	}
	if math.Abs(over.LTV-0.51) > 1e-9 {
		t.Errorf("ожидался LTV 0.51, получено %f", over.LTV)
	}
	if over.SecurityScore != 80 || under.SecurityScore != 60 {
		t.Errorf("неверные баллы безопасности: %f / %f", over.SecurityScore, under.SecurityScore)
	}
}

func TestZeroCollateralIsGuarded(t *testing.T) {
	days := 6000
	res := Analyze(Input{CurrentPrice: FairValueAt(days) * 2.5, DaysSinceGenesis: days, PortfolioValue: 10000})

	if res.CollateralBTC != 0 {
		t.Fatalf("ожидался нулевой залог, получено %f", res.CollateralBTC)
	}
	if res.LiquidationPrice != 0 || res.MarginCallPrice != 0 || res.LeverageRatio != 0 {
		t.Errorf("при нулевом залоге цены и плечо должны быть 0: %+v", res)
	}
	if math.IsNaN(res.TotalScore) {
		t.Error("итоговый балл не должен быть NaN")
	}
}

func TestDecisionThresholds(t *testing.T) {
	days := 6000
	fair := FairValueAt(days)

	deep := Analyze(Input{CurrentPrice: fair * 0.2, DaysSinceGenesis: days, PortfolioValue: 1000})
	if deep.Decision != DecisionExecute {
		t.Errorf("ожидалось execute, получено %s (балл %f)", deep.Decision, deep.TotalScore)
	}

	atFair := Analyze(Input{CurrentPrice: fair, DaysSinceGenesis: days, PortfolioValue: 1000})
	if atFair.TotalScore != 54 || atFair.Decision != DecisionCaution {
		t.Errorf("ожидалось caution с баллом 54, получено %s/%f", atFair.Decision, atFair.TotalScore)
	}

	high := Analyze(Input{CurrentPrice: fair * 5, DaysSinceGenesis: days, PortfolioValue: 1000})
	if high.Decision != DecisionReject {
		t.Errorf("ожидалось reject, получено %s", high.Decision)
	}
}

func TestDaysSinceGenesis(t *testing.T) {
	if got := DaysSinceGenesis(Genesis.Add(48 * time.Hour)); got != 2 {
		t.Errorf("ожидалось 2 дня, получено %d", got)
	}
	if got := DaysSinceGenesis(Genesis.Add(-time.Hour)); got != 0 {
		t.Errorf("до генезиса ожидалось 0, получено %d", got)
	}
}
