package models

import (
	"sort"
	"time"
)

// Direction направление сигнала или позиции
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

// Sign возвращает +1 для LONG, -1 для SHORT и 0 для NEUTRAL
func (d Direction) Sign() float64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// Opposite возвращает противоположное направление
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Neutral
	}
}

// Valid проверяет, что направление допустимо для позиции
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// EMASet отображение период -> значение EMA
type EMASet map[int]float64

// Periods возвращает периоды по возрастанию
func (s EMASet) Periods() []int {
	periods := make([]int, 0, len(s))
	for p := range s {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	return periods
}

// FastMidSlow возвращает три самых коротких периода (быстрая, средняя, медленная)
func (s EMASet) FastMidSlow() (fast, mid, slow float64, ok bool) {
	periods := s.Periods()
	if len(periods) < 3 {
		return 0, 0, 0, false
	}
	return s[periods[0]], s[periods[1]], s[periods[2]], true
}

// SignalFactor отдельный объяснимый фактор сигнала
type SignalFactor struct {
	Label    string  `json:"label"`
	Positive bool    `json:"positive"`
	Weight   float64 `json:"weight"`
}

// TimeframeDirection направление на соседнем таймфрейме
type TimeframeDirection struct {
	Timeframe string    `json:"timeframe"`
	Direction Direction `json:"direction"`
}

// IntradaySignal результат SignalEngine
type IntradaySignal struct {
	Asset           string               `json:"asset"`
	Timeframe       string               `json:"timeframe"`
	Direction       Direction            `json:"direction"`
	Confidence      float64              `json:"confidence"`
	EntryPrice      float64              `json:"entry_price"`
	StopLoss        float64              `json:"stop_loss"`
	TakeProfit1     float64              `json:"take_profit_1"`
	TakeProfit2     float64              `json:"take_profit_2"`
	TakeProfit3     float64              `json:"take_profit_3"`
	RiskRewardRatio float64              `json:"risk_reward_ratio"`
	Factors         []SignalFactor       `json:"factors"`
	ConfluenceScore *float64             `json:"confluence_score,omitempty"`
	AdjacentSignals []TimeframeDirection `json:"adjacent_signals,omitempty"`
	Warnings        []string             `json:"warnings,omitempty"`
	ATR             float64              `json:"atr"`
}

// SignalScore ранжируемый сигнал по паре актив x таймфрейм
type SignalScore struct {
	Asset           string    `json:"asset"`
	Timeframe       string    `json:"timeframe"`
	Direction       Direction `json:"direction"`
	TotalScore      float64   `json:"total_score"`
	Confidence      float64   `json:"confidence"`
	ConfluenceScore float64   `json:"confluence_score"`
	Rank            int       `json:"rank"`
	Price           float64   `json:"price"`
	ATR             float64   `json:"atr"`
}

// StopLoss уровень стоп-лосса сделки
type StopLoss struct {
	Price           float64 `json:"price"`
	DistancePercent float64 `json:"distance_percent"`
}

// TakeProfit уровень тейк-профита
type TakeProfit struct {
	Level           int     `json:"level"`
	Price           float64 `json:"price"`
	DistancePercent float64 `json:"distance_percent"`
	ExitPercent     float64 `json:"exit_percent"`
}

// LeverageSuggestion рекомендация по плечу
type LeverageSuggestion struct {
	Suggested int      `json:"suggested"`
	Min       int      `json:"min"`
	Max       int      `json:"max"`
	Reason    string   `json:"reason"`
	Warnings  []string `json:"warnings,omitempty"`
}

// TradeSetup конкретный торговый сетап
type TradeSetup struct {
	Signal            SignalScore        `json:"signal"`
	Entry             float64            `json:"entry"`
	StopLoss          StopLoss           `json:"stop_loss"`
	TakeProfits       []TakeProfit       `json:"take_profits"`
	Leverage          LeverageSuggestion `json:"leverage"`
	RiskReward        float64            `json:"risk_reward"`
	EstimatedDuration string             `json:"estimated_duration"`
}

// Dashboard агрегированный результат пересчета для символа и таймфрейма
type Dashboard struct {
	Symbol            string                   `json:"symbol"`
	Timeframe         string                   `json:"timeframe"`
	Price             float64                  `json:"price"`
	Signal            IntradaySignal           `json:"signal"`
	Score             SignalScore              `json:"score"`
	Setup             *TradeSetup              `json:"setup,omitempty"`
	Supports          []SupportResistanceLevel `json:"supports"`
	Resistances       []SupportResistanceLevel `json:"resistances"`
	Derivatives       DerivativesSnapshot      `json:"derivatives"`
	Liquidation       LiquidationPool          `json:"liquidation"`
	Confluence        string                   `json:"confluence"`
	// ConfluenceSummary, например "Strong confluence: 3/3 timeframes agree"
	ConfluenceSummary string                   `json:"confluence_summary"`
	Valuation         *PowerLawAnalysis        `json:"valuation,omitempty"`
	Volatility        float64                  `json:"volatility_percent"`
	Stale             bool                     `json:"stale"`
	UpdatedAt         time.Time                `json:"updated_at"`
}
