package aggregator

import (
	"context"
	"fmt"

	"github.com/skalibog/btcscope/internal/analysis/derivatives"
	"github.com/skalibog/btcscope/pkg/logger"
	"github.com/skalibog/btcscope/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// oiHistoryLength почасовые точки открытого интереса за сутки
const oiHistoryLength = 25

// refreshDerivatives обновляет снимки деривативов, срок которых истек
func (a *Analyzer) refreshDerivatives(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for _, symbol := range a.config.Trading.Symbols {
		if _, stale, ok := a.derivs.Get(symbol); ok && !stale {
			continue
		}
		g.Go(func() error {
			fresh, err := a.fetchDerivatives(gctx, symbol)
			a.derivs.Put(symbol, a.tracker.Resolve(gctx, symbol, fresh, err))
			return nil
		})
	}
	_ = g.Wait()
}

// fetchDerivatives собирает сырые данные из хранилища, недостающее берет с биржи
func (a *Analyzer) fetchDerivatives(ctx context.Context, symbol string) (*models.DerivativesSnapshot, error) {
	in := derivatives.Input{Symbol: symbol}
	periods := a.config.Analysis.Derivatives.FundingHistoryPeriods

	rates, err := a.storage.GetFundingRates(ctx, symbol, periods)
	if (err != nil || len(rates) == 0) && a.client != nil {
		rates, err = a.client.GetFundingHistory(ctx, symbol, periods)
	}
	if err != nil {
		return nil, fmt.Errorf("ставки финансирования: %w", err)
	}
	in.FundingRates = rates

	history, err := a.storage.GetOpenInterest(ctx, symbol, oiHistoryLength)
	if (err != nil || len(history) == 0) && a.client != nil {
		history, err = a.client.GetOpenInterestHistory(ctx, symbol, "1h", oiHistoryLength)
	}
	if err != nil {
		logger.Debug("История открытого интереса недоступна", zap.String("symbol", symbol), zap.Error(err))
	}
	in.OIHistory = history
	if n := len(history); n > 0 {
		in.OpenInterest = history[n-1]
	}

	if n := len(rates); n > 0 {
		in.NextFundingTime = rates[n-1].NextFundingTime
	}
	if a.client != nil {
		if premium, err := a.client.GetFundingRate(ctx, symbol); err == nil {
			in.NextFundingTime = premium.NextFundingTime
		}
		if ticker, err := a.client.GetTicker(ctx, symbol); err == nil {
			in.PriceChange24h = ticker.PriceChangePercent
		} else {
			logger.Debug("Суточная статистика недоступна", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	return a.derivativesAnal.Analyze(in, a.now())
}

// derivativesFor последний снимок по символу, нейтральный при холодном старте
func (a *Analyzer) derivativesFor(symbol string) models.DerivativesSnapshot {
	if snap, _, ok := a.derivs.Get(symbol); ok {
		return snap
	}
	snap := derivatives.Neutral(symbol, a.now())
	snap.Stale = true
	return snap
}
