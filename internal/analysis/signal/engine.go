// Package signal сводит индикаторы, деривативы и подтверждение таймфреймов
// в направленный сигнал с объяснимыми факторами.
package signal

import (
	"fmt"
	"sort"

	"github.com/skalibog/btcscope/internal/analysis/confluence"
	"github.com/skalibog/btcscope/internal/analysis/orderbook"
	"github.com/skalibog/btcscope/internal/analysis/technical"
	"github.com/skalibog/btcscope/internal/analysis/volumedelta"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
)

// Пороги вспомогательных голосов
const (
	volumeDeltaThreshold = 20
	orderBookThreshold   = 10
)

// Input входные данные движка
type Input struct {
	Asset       string
	Timeframe   string
	Technical   *technical.Snapshot
	Derivatives *models.DerivativesSnapshot
	Confluence  *confluence.Result
	Adjacent    []models.TimeframeDirection
	OrderBook   *orderbook.Result
	VolumeDelta *volumedelta.Result
}

// vote голос одного фактора: знак задает направление, вес силу
type vote struct {
	label  string
	sign   float64
	weight float64
}

// Engine движок генерации сигналов
type Engine struct {
	config config.SignalConfig
}

// NewEngine создает новый движок сигналов
func NewEngine(cfg config.SignalConfig) *Engine {
	return &Engine{
		config: cfg,
	}
}

// Generate строит сигнал. Чистая функция от входа.
func (e *Engine) Generate(in Input) models.IntradaySignal {
	sig := models.IntradaySignal{
		Asset:           in.Asset,
		Timeframe:       in.Timeframe,
		Direction:       models.Neutral,
		AdjacentSignals: in.Adjacent,
	}
	if in.Technical == nil || in.Technical.Price <= 0 {
		sig.Warnings = append(sig.Warnings, "No price data")
		return sig
	}

	snap := in.Technical
	sig.EntryPrice = snap.Price
	sig.ATR = snap.ATR
	sig.Warnings = append(sig.Warnings, snap.Warnings...)

	votes := e.collectVotes(in)

	var net, total float64
	for _, v := range votes {
		net += v.sign * v.weight
		total += v.weight
	}

	switch {
	case net > e.config.MinNetScore:
		sig.Direction = models.Long
	case net < -e.config.MinNetScore:
		sig.Direction = models.Short
	}

	if in.Confluence != nil {
		score := in.Confluence.Score
		sig.ConfluenceScore = &score
		sig.Warnings = append(sig.Warnings, in.Confluence.Warnings...)
	}
	if in.Derivatives != nil && in.Derivatives.Stale {
		sig.Warnings = append(sig.Warnings, "Derivatives data is stale")
	}

	sig.Factors = e.factors(votes, sig.Direction, confluenceFactor(in.Confluence))

	if sig.Direction == models.Neutral || total == 0 {
		return sig
	}

	var agreeing float64
	for _, v := range votes {
		if v.sign == sig.Direction.Sign() {
			agreeing += v.weight
		}
	}
	confidence := agreeing / total * 100
	if sig.ConfluenceScore != nil {
		confidence *= 0.5 + 0.5*(*sig.ConfluenceScore)/100
	}
	sig.Confidence = mathx.RoundTo(mathx.Clamp(confidence, 0, 100), 1)

	e.applyTargets(&sig)
	return sig
}

// collectVotes собирает голоса всех доступных факторов
func (e *Engine) collectVotes(in Input) []vote {
	snap := in.Technical
	var votes []vote

	if fast, mid, slow, ok := snap.EMAs.FastMidSlow(); ok {
		switch {
		case fast > mid && mid > slow:
			votes = append(votes, vote{"EMA bullish alignment", 1, 2})
		case fast < mid && mid < slow:
			votes = append(votes, vote{"EMA bearish alignment", -1, 2})
		}

		switch {
		case snap.Price > fast:
			votes = append(votes, vote{"Price above fast EMA", 1, 1})
		case snap.Price < fast:
			votes = append(votes, vote{"Price below fast EMA", -1, 1})
		}
	}

	switch rsi := snap.RSI; {
	case rsi < 30:
		votes = append(votes, vote{fmt.Sprintf("RSI oversold (%.0f)", rsi), 1, 1})
	case rsi > 70:
		votes = append(votes, vote{fmt.Sprintf("RSI overbought (%.0f)", rsi), -1, 1})
	case rsi > 50:
		votes = append(votes, vote{fmt.Sprintf("RSI bullish momentum (%.0f)", rsi), 1, 0.5})
	case rsi < 50:
		votes = append(votes, vote{fmt.Sprintf("RSI bearish momentum (%.0f)", rsi), -1, 0.5})
	}

	switch {
	case snap.MACDHist > 0:
		votes = append(votes, vote{"MACD histogram positive", 1, 1})
	case snap.MACDHist < 0:
		votes = append(votes, vote{"MACD histogram negative", -1, 1})
	}

	switch {
	case snap.OBVSlope > 0:
		votes = append(votes, vote{"OBV rising", 1, 1})
	case snap.OBVSlope < 0:
		votes = append(votes, vote{"OBV falling", -1, 1})
	}

	if d := in.Derivatives; d != nil {
		switch {
		case d.CombinedScore > e.config.DerivativesThreshold:
			votes = append(votes, vote{fmt.Sprintf("Derivatives supportive (OI %s, funding %s)", d.OISignal, d.FundingBand), 1, 1})
		case d.CombinedScore < -e.config.DerivativesThreshold:
			votes = append(votes, vote{fmt.Sprintf("Derivatives adverse (OI %s, funding %s)", d.OISignal, d.FundingBand), -1, 1})
		}
	}

	if vd := in.VolumeDelta; vd != nil {
		switch {
		case vd.Score > volumeDeltaThreshold:
			votes = append(votes, vote{"Buying volume dominates", 1, 0.5})
		case vd.Score < -volumeDeltaThreshold:
			votes = append(votes, vote{"Selling volume dominates", -1, 0.5})
		}
	}

	if ob := in.OrderBook; ob != nil {
		switch {
		case ob.Score > orderBookThreshold:
			votes = append(votes, vote{"Order book bid pressure", 1, 0.5})
		case ob.Score < -orderBookThreshold:
			votes = append(votes, vote{"Order book ask pressure", -1, 0.5})
		}
	}

	return votes
}

// confluenceFactor фактор согласия соседних таймфреймов. В голосовании не
// участвует: подтверждение уже масштабирует уверенность.
func confluenceFactor(c *confluence.Result) *models.SignalFactor {
	if c == nil || c.Agreeing+c.Conflicting == 0 {
		return nil
	}
	return &models.SignalFactor{
		Label:    c.Summary,
		Positive: c.Agreeing > c.Conflicting,
		Weight:   1,
	}
}

// factors переводит голоса в факторы относительно итогового направления
func (e *Engine) factors(votes []vote, dir models.Direction, extra *models.SignalFactor) []models.SignalFactor {
	ref := dir.Sign()
	if ref == 0 {
		ref = 1
	}

	out := make([]models.SignalFactor, 0, len(votes))
	for _, v := range votes {
		out = append(out, models.SignalFactor{
			Label:    v.label,
			Positive: v.sign == ref,
			Weight:   v.weight,
		})
	}
	if extra != nil {
		out = append(out, *extra)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})
	if e.config.MaxFactors > 0 && len(out) > e.config.MaxFactors {
		out = out[:e.config.MaxFactors]
	}
	return out
}

// applyTargets стоп на 1R, цели на 1R, 1.5R и 2R
func (e *Engine) applyTargets(sig *models.IntradaySignal) {
	price := sig.EntryPrice
	r := sig.ATR * e.config.ATRStopMultiplier
	if r <= 0 {
		r = price * e.config.FallbackStopPercent / 100
	}
	s := sig.Direction.Sign()

	sig.StopLoss = mathx.RoundPrice(price - s*r)
	sig.TakeProfit1 = mathx.RoundPrice(price + s*r)
	sig.TakeProfit2 = mathx.RoundPrice(price + s*r*1.5)
	sig.TakeProfit3 = mathx.RoundPrice(price + s*r*2)
	sig.RiskRewardRatio = 1.5
}

// ToScore переводит сигнал в ранжируемую оценку
func (e *Engine) ToScore(sig models.IntradaySignal) models.SignalScore {
	var conf float64
	if sig.ConfluenceScore != nil {
		conf = *sig.ConfluenceScore
	}
	return models.SignalScore{
		Asset:           sig.Asset,
		Timeframe:       sig.Timeframe,
		Direction:       sig.Direction,
		TotalScore:      mathx.RoundTo(sig.Confidence*e.config.ConfidenceWeight+conf*e.config.ConfluenceWeight, 1),
		Confidence:      sig.Confidence,
		ConfluenceScore: conf,
		Price:           sig.EntryPrice,
		ATR:             sig.ATR,
	}
}
