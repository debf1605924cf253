// Package position оценивает открытую позицию пользователя: PnL, расстояние
// до ликвидации и тактические действия.
package position

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
)

// hotPoolDistance пул ликвидаций ближе этого расстояния считается горячим
const hotPoolDistance = 1.5

var maintenanceMarginRates = map[string]float64{
	"BTC": 0.004,
	"ETH": 0.005,
	"BNB": 0.01,
	"SOL": 0.01,
}

// GetMaintenanceMarginRate ставка поддерживающей маржи по активу
func GetMaintenanceMarginRate(asset string) float64 {
	asset = strings.ToUpper(asset)
	for base, rate := range maintenanceMarginRates {
		if strings.HasPrefix(asset, base) {
			return rate
		}
	}
	return 0.01
}

// CalculatePersonalLiquidation цена ликвидации изолированной позиции
func CalculatePersonalLiquidation(entry, leverage float64, direction models.Direction, asset string) float64 {
	if entry <= 0 || leverage <= 0 || !direction.Valid() {
		return 0
	}
	buffer := 1/leverage - GetMaintenanceMarginRate(asset)
	return math.Max(0, entry*(1-direction.Sign()*buffer))
}

// BuildOpenPosition дополняет позицию производными от текущей цены полями.
// Исходные поля не изменяются.
func BuildOpenPosition(p models.Position, price float64) models.OpenPosition {
	size := p.Size
	cost := p.EntryPrice * p.Size
	var added, closed float64

	for _, adj := range p.Adjustments {
		switch adj.Type {
		case models.AdjustmentDCA:
			added += adj.Amount
			cost += adj.Price * adj.Amount
		case models.AdjustmentPartialClose:
			closed += adj.Amount
		}
	}

	avgEntry := p.EntryPrice
	if size+added > 0 {
		avgEntry = cost / (size + added)
	}
	currentSize := math.Max(0, size+added-closed)

	op := models.OpenPosition{
		Position:          p,
		AverageEntry:      avgEntry,
		CurrentPrice:      price,
		CurrentSize:       currentSize,
		PositionValueUSDT: currentSize * price,
		PnLUSDT:           (price - avgEntry) * currentSize * p.Direction.Sign(),
	}

	if margin := avgEntry * currentSize / p.Leverage; p.Leverage > 0 && margin > 0 {
		op.PnLPercent = op.PnLUSDT / margin * 100
	}
	return op
}

// Input входные данные анализа позиции
type Input struct {
	Position          models.Position
	CurrentPrice      float64
	Signal            *models.IntradaySignal
	Pools             *models.LiquidationPool
	VolatilityPercent float64
}

// Analyzer анализатор открытых позиций
type Analyzer struct {
	config config.PositionConfig
}

// NewAnalyzer создает новый анализатор позиций
func NewAnalyzer(cfg config.PositionConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// AnalyzeOpenPosition выбирает рекомендацию по таблице решений. Близость
// ликвидации имеет приоритет над всеми остальными правилами.
func (a *Analyzer) AnalyzeOpenPosition(in Input) models.PositionAnalysis {
	op := BuildOpenPosition(in.Position, in.CurrentPrice)
	res := models.PositionAnalysis{
		Position:       op,
		Recommendation: models.RecommendHold,
	}

	if in.CurrentPrice <= 0 || op.CurrentSize == 0 {
		res.Reasoning = append(res.Reasoning, "No open size or no live price: nothing to manage")
		return res
	}

	liq := CalculatePersonalLiquidation(op.AverageEntry, in.Position.Leverage, in.Position.Direction, in.Position.Asset)
	dist := 100.0
	if liq > 0 {
		dist = liquidationDistance(in.Position.Direction, in.CurrentPrice, liq)
	}
	res.RiskAssessment = models.RiskAssessment{
		LiquidationPrice:      mathx.RoundPrice(liq),
		DistanceToLiquidation: mathx.RoundTo(dist, 2),
		NearbyLiquidationZone: adversePool(in.Position.Direction, in.Pools),
	}

	res.Reasoning = append(res.Reasoning, fmt.Sprintf("PnL %+.2f%% (%.2f USDT), liquidation at %.2f is %.1f%% away",
		op.PnLPercent, op.PnLUSDT, liq, dist))

	signalDir, confidence := models.Neutral, 0.0
	if in.Signal != nil {
		signalDir, confidence = in.Signal.Direction, in.Signal.Confidence
	}
	agrees := signalDir == in.Position.Direction
	opposes := signalDir == in.Position.Direction.Opposite()
	losing := op.PnLUSDT < 0
	winning := op.PnLUSDT > 0

	switch {
	case dist < a.config.CriticalLiquidationDistance:
		if losing || dist <= 0 || dist < a.config.ExitLiquidationDistance {
			res.Recommendation = models.RecommendExit
			res.Reasoning = append(res.Reasoning, "Liquidation is critically close: exit the position")
			res.TacticalActions = append(res.TacticalActions, a.closeAction(op, models.ActionFullExit, models.UrgencyCritical, 100,
				"Liquidation distance below safety threshold"))
		} else {
			res.Recommendation = models.RecommendReduce
			res.Reasoning = append(res.Reasoning, "Liquidation is critically close: cut exposure while in profit")
			res.TacticalActions = append(res.TacticalActions, a.closeAction(op, models.ActionPartialClose, models.UrgencyCritical, 50,
				"Liquidation distance below safety threshold"))
		}

	case opposes && confidence >= a.config.FlipConfidence && losing:
		res.Recommendation = models.RecommendFlip
		res.Reasoning = append(res.Reasoning, fmt.Sprintf("Signal points %s with %.0f%% confidence against a losing position", signalDir, confidence))
		res.TacticalActions = append(res.TacticalActions, a.closeAction(op, models.ActionFullExit, models.UrgencyHigh, 100,
			fmt.Sprintf("Close and consider reversing to %s", signalDir)))

	case opposes && winning:
		res.Recommendation = models.RecommendReduce
		res.Reasoning = append(res.Reasoning, "Signal turned against the position: lock in part of the profit")
		res.TacticalActions = append(res.TacticalActions, a.closeAction(op, models.ActionPartialClose, models.UrgencyMedium, 50,
			"Opposing signal while in profit"))

	case dist < a.config.WarningLiquidationDistance && losing:
		res.Recommendation = models.RecommendReduce
		res.Reasoning = append(res.Reasoning, "Losing position with liquidation within the warning range")
		res.TacticalActions = append(res.TacticalActions, a.closeAction(op, models.ActionPartialClose, models.UrgencyHigh, 30,
			"Reduce size to move liquidation further away"))

	case losing && agrees:
		res.Recommendation = models.RecommendDCA
		res.Reasoning = append(res.Reasoning, "Signal still agrees and liquidation is far: averaging is possible")
		res.TacticalActions = append(res.TacticalActions, a.dcaAction(op))

	case op.PnLPercent >= a.config.ScalpProfitPercent && agrees:
		res.Recommendation = models.RecommendHold
		res.Reasoning = append(res.Reasoning, "Strong profit with an agreeing signal: hold and scalp part")
		res.TacticalActions = append(res.TacticalActions, a.scalpAction(op, in.Signal))

	default:
		res.Reasoning = append(res.Reasoning, "No rule triggered: hold")
	}

	if zone := res.RiskAssessment.NearbyLiquidationZone; zone != nil && zone.DistancePercent < hotPoolDistance &&
		res.Recommendation != models.RecommendExit && res.Recommendation != models.RecommendFlip {
		res.Reasoning = append(res.Reasoning, fmt.Sprintf("Hot liquidation pool %.1f%% away at %.2f", zone.DistancePercent, zone.Price))
		res.TacticalActions = append(res.TacticalActions, a.closeAction(op, models.ActionPartialClose, models.UrgencyHigh, 25,
			"Liquidation pool likely to be swept"))
	}

	if in.VolatilityPercent > 0 && dist < in.VolatilityPercent*3 {
		res.Reasoning = append(res.Reasoning, fmt.Sprintf("Volatility %.2f%% is large relative to liquidation distance", in.VolatilityPercent))
	}

	sort.SliceStable(res.TacticalActions, func(i, j int) bool {
		return res.TacticalActions[i].Urgency.Rank() > res.TacticalActions[j].Urgency.Rank()
	})
	return res
}

// liquidationDistance запас до ликвидации в процентах от цены в сторону
// убытка. Цена за ликвидацией дает 0.
func liquidationDistance(dir models.Direction, price, liq float64) float64 {
	var d float64
	switch dir {
	case models.Long:
		d = (price - liq) / price * 100
	case models.Short:
		d = (liq - price) / price * 100
	default:
		return 100
	}
	return math.Max(d, 0)
}

// adversePool пул с той стороны, куда движение цены вредит позиции
func adversePool(dir models.Direction, pools *models.LiquidationPool) *models.PoolSide {
	if pools == nil {
		return nil
	}
	var side models.PoolSide
	switch dir {
	case models.Long:
		side = pools.LongPool
	case models.Short:
		side = pools.ShortPool
	default:
		return nil
	}
	if side.Price <= 0 {
		return nil
	}
	return &side
}

func (a *Analyzer) closeAction(op models.OpenPosition, t models.ActionType, u models.Urgency, percent float64, reason string) models.TacticalAction {
	reduction := percent
	return models.TacticalAction{
		Type:          t,
		Urgency:       u,
		TriggerPrice:  mathx.RoundPrice(op.CurrentPrice),
		Amount:        op.CurrentSize * percent / 100,
		AmountPercent: percent,
		Reason:        reason,
		ExpectedEffect: models.ExpectedEffect{
			RiskReduction: &reduction,
		},
	}
}

func (a *Analyzer) dcaAction(op models.OpenPosition) models.TacticalAction {
	amount := op.CurrentSize * a.config.DCAFraction
	newAvg := mathx.RoundPrice((op.AverageEntry*op.CurrentSize + op.CurrentPrice*amount) / (op.CurrentSize + amount))
	return models.TacticalAction{
		Type:          models.ActionDCABuy,
		Urgency:       models.UrgencyMedium,
		TriggerPrice:  mathx.RoundPrice(op.CurrentPrice),
		Amount:        amount,
		AmountPercent: a.config.DCAFraction * 100,
		Reason:        "Average entry while the signal agrees",
		ExpectedEffect: models.ExpectedEffect{
			NewAvgEntry: &newAvg,
		},
	}
}

func (a *Analyzer) scalpAction(op models.OpenPosition, sig *models.IntradaySignal) models.TacticalAction {
	trigger := op.CurrentPrice
	if sig != nil && sig.TakeProfit1 > 0 {
		trigger = sig.TakeProfit1
	}
	act := a.closeAction(op, models.ActionScalpSell, models.UrgencyLow, 25, "Take partial profit into strength")
	act.TriggerPrice = mathx.RoundPrice(trigger)
	return act
}
