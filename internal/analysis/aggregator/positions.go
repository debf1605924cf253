package aggregator

import (
	"context"
	"fmt"
	"strings"

	"github.com/skalibog/btcscope/internal/analysis/position"
	"github.com/skalibog/btcscope/pkg/models"
)

// AnalyzePosition анализирует сохраненную позицию по текущей цене и
// последнему сигналу ее рынка
func (a *Analyzer) AnalyzePosition(ctx context.Context, id string) (models.PositionAnalysis, error) {
	p, err := a.positions.Get(ctx, id)
	if err != nil {
		return models.PositionAnalysis{}, err
	}

	symbol := a.symbolFor(p.Asset)
	price, err := a.currentPrice(ctx, symbol)
	if err != nil {
		return models.PositionAnalysis{}, err
	}

	in := position.Input{
		Position:     p,
		CurrentPrice: price,
	}
	if d := a.primaryDashboard(symbol); d != nil {
		sig := d.Signal
		pool := d.Liquidation
		in.Signal = &sig
		in.Pools = &pool
		in.VolatilityPercent = d.Volatility
	}
	return a.positionAnal.AnalyzeOpenPosition(in), nil
}

// symbolFor переводит актив позиции (BTC) в символ рынка (BTCUSDT)
func (a *Analyzer) symbolFor(asset string) string {
	asset = strings.ToUpper(asset)
	for _, s := range a.config.Trading.Symbols {
		if s == asset || s == asset+"USDT" {
			return s
		}
	}
	if strings.HasSuffix(asset, "USDT") {
		return asset
	}
	return asset + "USDT"
}

// primaryDashboard результат по первому настроенному таймфрейму, для которого он есть
func (a *Analyzer) primaryDashboard(symbol string) *models.Dashboard {
	byTimeframe := make(map[string]*models.Dashboard)
	for _, d := range a.DashboardsFor(symbol) {
		byTimeframe[d.Timeframe] = d
	}
	for _, tf := range a.config.Trading.Timeframes {
		if d, ok := byTimeframe[tf]; ok {
			return d
		}
	}
	return nil
}

// currentPrice живая цена, затем REST, затем последняя свеча
func (a *Analyzer) currentPrice(ctx context.Context, symbol string) (float64, error) {
	if a.prices != nil {
		if p, ok := a.prices.Price(symbol); ok {
			return p, nil
		}
	}
	if a.client != nil {
		if p, err := a.client.GetPrice(ctx, symbol); err == nil && p > 0 {
			return p, nil
		}
	}
	for _, tf := range a.config.Trading.Timeframes {
		candles, err := a.storage.GetCandles(ctx, symbol, tf, 1)
		if err == nil && len(candles) > 0 {
			return candles[len(candles)-1].Close, nil
		}
	}
	return 0, fmt.Errorf("нет цены для %s", symbol)
}
