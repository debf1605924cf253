package models

import "time"

// LevelKind источник уровня поддержки/сопротивления
type LevelKind string

const (
	LevelEMA       LevelKind = "ema"
	LevelPivot     LevelKind = "pivot"
	LevelFibonacci LevelKind = "fibonacci"
	LevelModel     LevelKind = "model"
)

// Strength сила уровня
type Strength string

const (
	StrengthLow    Strength = "low"
	StrengthMedium Strength = "medium"
	StrengthHigh   Strength = "high"
)

// SupportResistanceLevel уровень поддержки или сопротивления
type SupportResistanceLevel struct {
	Price           float64   `json:"price"`
	Kind            LevelKind `json:"kind"`
	Label           string    `json:"label"`
	TimeframeTag    string    `json:"timeframe_tag"`
	Strength        Strength  `json:"strength"`
	Score           float64   `json:"score"`
	DistancePercent float64   `json:"distance_percent"`
	Touches         int       `json:"touches,omitempty"`
	Rationale       string    `json:"rationale"`
}

// DerivativesSnapshot сводка по деривативам
type DerivativesSnapshot struct {
	Symbol                string    `json:"symbol"`
	OpenInterestUSD       float64   `json:"open_interest_usd"`
	OpenInterestChange24h float64   `json:"open_interest_change_24h"`
	PriceChange24h        float64   `json:"price_change_24h"`
	FundingRatePercent    float64   `json:"funding_rate_percent"`
	NextFundingTime       time.Time `json:"next_funding_time"`
	FundingBand           string    `json:"funding_band"`
	SqueezeSignal         string    `json:"squeeze_signal"`
	FundingTrendScore     float64   `json:"funding_trend_score"`
	OITrend               string    `json:"oi_trend"`
	OISignal              string    `json:"oi_signal"`
	CombinedScore         float64   `json:"combined_score"`
	UpdatedAt             time.Time `json:"updated_at"`
	Stale                 bool      `json:"stale"`
	Error                 string    `json:"error,omitempty"`
}

// LiquidationMethod уровень качества данных оценки ликвидаций
type LiquidationMethod string

const (
	MethodATRVolatility LiquidationMethod = "atr_volatility"
	MethodRealClusters  LiquidationMethod = "coinglass_real"
	MethodFallbackFixed LiquidationMethod = "fallback_fixed"
)

// HeatLevel близость пула ликвидаций
type HeatLevel string

const (
	HeatCold HeatLevel = "cold"
	HeatWarm HeatLevel = "warm"
	HeatHot  HeatLevel = "hot"
)

// PoolSide пул ликвидаций с одной стороны от цены
type PoolSide struct {
	Price              float64 `json:"price"`
	DistancePercent    float64 `json:"distance_percent"`
	EstimatedLiquidity float64 `json:"estimated_liquidity"`
}

// LiquidationPool оценка ближайших пулов ликвидаций
type LiquidationPool struct {
	LongPool          PoolSide          `json:"long_pool"`
	ShortPool         PoolSide          `json:"short_pool"`
	SuggestedStopLoss float64           `json:"suggested_stop_loss"`
	RiskLevel         string            `json:"risk_level"`
	Method            LiquidationMethod `json:"method"`
	HeatLevel         HeatLevel         `json:"heat_level"`
}

// AdjustmentType тип ручной корректировки размера позиции
type AdjustmentType string

const (
	AdjustmentDCA          AdjustmentType = "DCA"
	AdjustmentPartialClose AdjustmentType = "PARTIAL_CLOSE"
)

// SizeAdjustment докупка или частичное закрытие
type SizeAdjustment struct {
	Type   AdjustmentType `json:"type"`
	Amount float64        `json:"amount"`
	Price  float64        `json:"price"`
	Time   time.Time      `json:"time"`
}

// Position позиция, объявленная пользователем
type Position struct {
	ID          string           `json:"id"`
	Asset       string           `json:"asset"`
	Direction   Direction        `json:"direction"`
	EntryPrice  float64          `json:"entry_price"`
	Size        float64          `json:"size"`
	Leverage    float64          `json:"leverage"`
	Adjustments []SizeAdjustment `json:"adjustments,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// OpenPosition позиция с производными от текущей цены полями
type OpenPosition struct {
	Position
	AverageEntry      float64 `json:"average_entry"`
	CurrentPrice      float64 `json:"current_price"`
	CurrentSize       float64 `json:"current_size"`
	PositionValueUSDT float64 `json:"position_value_usdt"`
	PnLUSDT           float64 `json:"pnl_usdt"`
	PnLPercent        float64 `json:"pnl_percent"`
}

// Recommendation рекомендация по открытой позиции
type Recommendation string

const (
	RecommendHold   Recommendation = "HOLD"
	RecommendReduce Recommendation = "REDUCE"
	RecommendDCA    Recommendation = "DCA"
	RecommendExit   Recommendation = "EXIT"
	RecommendFlip   Recommendation = "FLIP"
)

// ActionType тип тактического действия
type ActionType string

const (
	ActionPartialClose ActionType = "PARTIAL_CLOSE"
	ActionDCABuy       ActionType = "DCA_BUY"
	ActionScalpSell    ActionType = "SCALP_SELL"
	ActionFullExit     ActionType = "FULL_EXIT"
)

// Urgency срочность действия
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Rank порядок срочности для сортировки
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 3
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	default:
		return 0
	}
}

// ExpectedEffect ожидаемый эффект действия
type ExpectedEffect struct {
	NewAvgEntry   *float64 `json:"new_avg_entry,omitempty"`
	RiskReduction *float64 `json:"risk_reduction,omitempty"`
}

// TacticalAction тактическое действие по позиции
type TacticalAction struct {
	Type           ActionType     `json:"type"`
	Urgency        Urgency        `json:"urgency"`
	TriggerPrice   float64        `json:"trigger_price"`
	Amount         float64        `json:"amount"`
	AmountPercent  float64        `json:"amount_percent"`
	Reason         string         `json:"reason"`
	ExpectedEffect ExpectedEffect `json:"expected_effect"`
}

// RiskAssessment оценка риска позиции
type RiskAssessment struct {
	LiquidationPrice      float64   `json:"liquidation_price"`
	NearbyLiquidationZone *PoolSide `json:"nearby_liquidation_zone,omitempty"`
	DistanceToLiquidation float64   `json:"distance_to_liquidation"`
}

// PositionAnalysis результат анализа открытой позиции
type PositionAnalysis struct {
	Position        OpenPosition     `json:"position"`
	RiskAssessment  RiskAssessment   `json:"risk_assessment"`
	Recommendation  Recommendation   `json:"recommendation"`
	Reasoning       []string         `json:"reasoning"`
	TacticalActions []TacticalAction `json:"tactical_actions"`
}

// PowerLawAnalysis оценка по модели степенного закона
type PowerLawAnalysis struct {
	CurrentPrice      float64 `json:"current_price"`
	DaysSinceGenesis  int     `json:"days_since_genesis"`
	FairValue         float64 `json:"fair_value"`
	Ratio             float64 `json:"ratio"`
	Zone              string  `json:"zone"`
	ZoneLabel         string  `json:"zone_label"`
	OpportunityScore  float64 `json:"opportunity_score"`
	AllocationPercent float64 `json:"allocation_percent"`
	CollateralUSD     float64 `json:"collateral_usd"`
	CollateralBTC     float64 `json:"collateral_btc"`
	LTV               float64 `json:"ltv"`
	LoanUSD           float64 `json:"loan_usd"`
	AnnualInterestUSD float64 `json:"annual_interest_usd"`
	LiquidationPrice  float64 `json:"liquidation_price"`
	MarginCallPrice   float64 `json:"margin_call_price"`
	LeverageRatio     float64 `json:"leverage_ratio"`
	SecurityScore     float64 `json:"security_score"`
	TotalScore        float64 `json:"total_score"`
	Decision          string  `json:"decision"`
}
