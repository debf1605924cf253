// Package aggregator объединяет аналитические модули в цикл пересчета
// по всем рынкам и таймфреймам.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skalibog/btcscope/internal/analysis/confluence"
	"github.com/skalibog/btcscope/internal/analysis/derivatives"
	"github.com/skalibog/btcscope/internal/analysis/levels"
	"github.com/skalibog/btcscope/internal/analysis/liquidation"
	"github.com/skalibog/btcscope/internal/analysis/orderbook"
	"github.com/skalibog/btcscope/internal/analysis/position"
	"github.com/skalibog/btcscope/internal/analysis/powerlaw"
	"github.com/skalibog/btcscope/internal/analysis/signal"
	"github.com/skalibog/btcscope/internal/analysis/stable"
	"github.com/skalibog/btcscope/internal/analysis/technical"
	"github.com/skalibog/btcscope/internal/analysis/trade"
	"github.com/skalibog/btcscope/internal/analysis/volumedelta"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/internal/exchange"
	"github.com/skalibog/btcscope/internal/kvstore"
	"github.com/skalibog/btcscope/internal/storage"
	"github.com/skalibog/btcscope/pkg/logger"
	"github.com/skalibog/btcscope/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxParallel ограничение одновременных пересчетов
const maxParallel = 8

var (
	// ErrNoResults ни один рынок не удалось пересчитать
	ErrNoResults = errors.New("нет результатов анализа")
	// ErrNoValuation оценка еще не рассчитана или BTC не отслеживается
	ErrNoValuation = errors.New("оценка степенного закона недоступна")
)

// PriceSource живая цена, например из websocket
type PriceSource interface {
	Price(symbol string) (float64, bool)
}

// EventSource принудительные ликвидации по символу
type EventSource interface {
	Events(symbol string) []models.LiquidationEvent
}

// Analyzer объединяет все аналитические компоненты
type Analyzer struct {
	config    *config.Config
	storage   storage.Storage
	client    exchange.MarketData
	positions *position.Store
	prices    PriceSource
	events    EventSource

	technicalAnal   *technical.Analyzer
	detector        *levels.Detector
	derivativesAnal *derivatives.Analyzer
	tracker         *derivatives.Tracker
	estimator       *liquidation.Estimator
	confluenceAnal  *confluence.Analyzer
	engine          *signal.Engine
	recommender     *trade.Recommender
	positionAnal    *position.Analyzer
	orderbookAnal   *orderbook.Analyzer
	volumeDeltaAnal *volumedelta.Analyzer

	gate       *stable.Gate
	dashboards *stable.Cache[*models.Dashboard]
	derivs     *stable.Cache[models.DerivativesSnapshot]

	mu        sync.RWMutex
	smoothers map[string]*levels.Smoother
	latest    []*models.Dashboard
	ranking   []models.SignalScore
	valuation *models.PowerLawAnalysis

	now func() time.Time
}

// NewAnalyzer создает новый анализатор. client может быть nil, тогда
// используются только данные из хранилища.
func NewAnalyzer(cfg *config.Config, store storage.Storage, client exchange.MarketData, kv kvstore.Store) *Analyzer {
	a := cfg.Analysis

	derivTTL := time.Duration(cfg.Binance.DerivativesPollSeconds) * time.Second
	if derivTTL <= 0 {
		derivTTL = 5 * time.Minute
	}
	snapshotTTL := time.Duration(cfg.Cache.TTLMinutes) * time.Minute

	return &Analyzer{
		config:          cfg,
		storage:         store,
		client:          client,
		positions:       position.NewStore(kv),
		technicalAnal:   technical.NewAnalyzer(a.Technical),
		detector:        levels.NewDetector(a.Levels),
		derivativesAnal: derivatives.NewAnalyzer(a.Derivatives),
		tracker:         derivatives.NewTracker(kv, snapshotTTL),
		estimator:       liquidation.NewEstimator(a.Liquidation),
		confluenceAnal:  confluence.NewAnalyzer(a.Confluence),
		engine:          signal.NewEngine(a.Signal),
		recommender:     trade.NewRecommender(a.Trade),
		positionAnal:    position.NewAnalyzer(a.Position),
		orderbookAnal:   orderbook.NewAnalyzer(a.OrderBook),
		volumeDeltaAnal: volumedelta.NewAnalyzer(a.VolumeDelta),
		gate:            stable.NewGate(a.Recalc),
		dashboards:      stable.NewCache[*models.Dashboard](time.Duration(a.Recalc.TTLMinutes) * time.Minute),
		derivs:          stable.NewCache[models.DerivativesSnapshot](derivTTL),
		smoothers:       make(map[string]*levels.Smoother),
		now:             time.Now,
	}
}

// SetPriceSource подключает источник живых цен
func (a *Analyzer) SetPriceSource(src PriceSource) {
	a.prices = src
}

// SetEventSource подключает источник ликвидаций
func (a *Analyzer) SetEventSource(src EventSource) {
	a.events = src
}

// Positions хранилище позиций пользователя
func (a *Analyzer) Positions() *position.Store {
	return a.positions
}

// RequiredTimeframes настроенные таймфреймы вместе с соседними для подтверждения
func (a *Analyzer) RequiredTimeframes() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tf string) {
		if !seen[tf] {
			seen[tf] = true
			out = append(out, tf)
		}
	}
	for _, tf := range a.config.Trading.Timeframes {
		add(tf)
		for _, adj := range a.confluenceAnal.Adjacent(tf) {
			add(adj)
		}
	}
	return out
}

// GenerateSignals пересчитывает все пары символ x таймфрейм, ранжирует их
// и строит сетапы для лучших. Пары без заметного движения цены берутся из кэша.
func (a *Analyzer) GenerateSignals(ctx context.Context) ([]*models.Dashboard, error) {
	now := a.now()
	symbols := a.config.Trading.Symbols
	timeframes := a.config.Trading.Timeframes

	a.refreshDerivatives(ctx)

	type job struct {
		symbol, timeframe string
	}
	var jobs []job
	for _, s := range symbols {
		for _, tf := range timeframes {
			jobs = append(jobs, job{s, tf})
		}
	}

	results := make([]*models.Dashboard, len(jobs))
	recomputed := make([]bool, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, j := range jobs {
		g.Go(func() error {
			d, fresh, err := a.analyzeKey(gctx, j.symbol, j.timeframe)
			if err != nil {
				// Ошибка по одному рынку не останавливает остальные
				logger.Warn("Ошибка анализа",
					zap.String("symbol", j.symbol),
					zap.String("timeframe", j.timeframe),
					zap.Error(err))
				return nil
			}
			results[i] = d
			recomputed[i] = fresh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*models.Dashboard
	for i, d := range results {
		if d == nil {
			continue
		}
		cp := *d
		out = append(out, &cp)

		if recomputed[i] {
			if err := a.storage.SaveSignal(ctx, &cp.Signal, now); err != nil {
				logger.Warn("Не удалось сохранить сигнал", zap.String("symbol", cp.Symbol), zap.Error(err))
			}
		}
	}
	if len(out) == 0 {
		return nil, ErrNoResults
	}

	ranking := a.rank(out)
	valuation := a.valuate(out, now)

	a.mu.Lock()
	a.latest = out
	a.ranking = ranking
	if valuation != nil {
		a.valuation = valuation
	}
	a.mu.Unlock()

	logger.Info("Пересчет завершен",
		zap.Int("markets", len(out)),
		zap.Int("recomputed", countTrue(recomputed)))
	return out, nil
}

// rank проставляет ранги и строит сетапы для первых TopK. Сортирует dashboards по рангу.
func (a *Analyzer) rank(dashboards []*models.Dashboard) []models.SignalScore {
	scores := make([]models.SignalScore, len(dashboards))
	for i, d := range dashboards {
		scores[i] = d.Score
	}
	ranked := trade.RankSignals(scores, 0)

	ranks := make(map[string]int, len(ranked))
	for _, s := range ranked {
		ranks[marketKey(s.Asset, s.Timeframe)] = s.Rank
	}

	topK := a.config.Trading.TopK
	for _, d := range dashboards {
		d.Score.Rank = ranks[marketKey(d.Symbol, d.Timeframe)]
		d.Setup = nil
		if topK <= 0 || d.Score.Rank <= topK {
			d.Setup = a.recommender.GenerateTradeSetup(d.Score)
		}
	}
	sort.SliceStable(dashboards, func(i, j int) bool {
		return dashboards[i].Score.Rank < dashboards[j].Score.Rank
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// valuate считает оценку степенного закона по цене BTC
func (a *Analyzer) valuate(dashboards []*models.Dashboard, now time.Time) *models.PowerLawAnalysis {
	var price float64
	for _, d := range dashboards {
		if isBTC(d.Symbol) && d.Price > 0 {
			price = d.Price
			break
		}
	}
	if price <= 0 {
		return nil
	}

	portfolio := a.config.Trading.Portfolio
	res := powerlaw.Analyze(powerlaw.Input{
		CurrentPrice:       price,
		DaysSinceGenesis:   powerlaw.DaysSinceGenesis(now),
		PortfolioValue:     portfolio.Value,
		AnnualInterestRate: portfolio.AnnualInterestRate,
	})

	for _, d := range dashboards {
		if isBTC(d.Symbol) {
			d.Valuation = &res
		}
	}
	return &res
}

// analyzeKey строит дашборд для пары. Второе значение false, если взят кэш.
func (a *Analyzer) analyzeKey(ctx context.Context, symbol, timeframe string) (*models.Dashboard, bool, error) {
	key := marketKey(symbol, timeframe)

	candles, err := a.loadCandles(ctx, symbol, timeframe)
	if err != nil {
		return nil, false, err
	}

	price := candles[len(candles)-1].Close
	if a.prices != nil {
		if live, ok := a.prices.Price(symbol); ok {
			price = live
		}
	}

	recalc := a.gate.ShouldRecalculate(key, price)
	if cached, stale, ok := a.dashboards.Get(key); ok && !stale && !recalc {
		return cached, false, nil
	}

	snap, err := a.technicalAnal.Analyze(candles, timeframe)
	if err != nil {
		return nil, false, fmt.Errorf("технический анализ: %w", err)
	}
	snap.Price = price

	adjacent := a.adjacentDirections(ctx, symbol, timeframe)
	deriv := a.derivativesFor(symbol)

	in := signal.Input{
		Asset:       symbol,
		Timeframe:   timeframe,
		Technical:   snap,
		Derivatives: &deriv,
		Adjacent:    adjacent,
		OrderBook:   a.orderBookFor(ctx, symbol),
	}
	if vd, err := a.volumeDeltaAnal.Analyze(candles); err == nil {
		in.VolumeDelta = vd
	}

	// Направление без подтверждения, затем полный сигнал с подтверждением
	draft := a.engine.Generate(in)
	conf := a.confluenceAnal.Analyze(draft.Direction, adjacent)
	in.Confluence = &conf
	sig := a.engine.Generate(in)

	var bands *powerlaw.Bands
	if isBTC(symbol) && (timeframe == "1d" || timeframe == "1w") {
		b := powerlaw.BandsAt(powerlaw.DaysSinceGenesis(a.now()))
		bands = &b
	}
	raw := a.detector.Detect(levels.Input{
		Price:     price,
		Timeframe: timeframe,
		EMAs:      snap.EMAs,
		Candles:   candles,
		Bands:     bands,
	})
	lv := a.smoother(key).Apply(price, raw)

	pool := a.estimator.Estimate(liquidation.Input{
		Price:             price,
		Asset:             symbol,
		Timeframe:         timeframe,
		ATRPercent:        snap.ATRPercent,
		VolatilityPercent: snap.Volatility,
		Derivatives:       &deriv,
		Events:            a.liquidationEvents(symbol),
		Direction:         sig.Direction,
	})

	d := &models.Dashboard{
		Symbol:            symbol,
		Timeframe:         timeframe,
		Price:             price,
		Signal:            sig,
		Score:             a.engine.ToScore(sig),
		Supports:          lv.Supports,
		Resistances:       lv.Resistances,
		Derivatives:       deriv,
		Liquidation:       pool,
		Confluence:        conf.Recommendation,
		ConfluenceSummary: conf.Summary,
		Volatility:        snap.Volatility,
		Stale:             deriv.Stale,
		UpdatedAt:         a.now(),
	}
	a.dashboards.Put(key, d)

	logger.Debug("Рынок пересчитан",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.String("direction", string(sig.Direction)),
		zap.Float64("confidence", sig.Confidence))
	return d, true, nil
}

// loadCandles берет свечи из хранилища, при нехватке догружает с биржи
func (a *Analyzer) loadCandles(ctx context.Context, symbol, timeframe string) ([]*models.Candle, error) {
	limit := a.config.Analysis.Technical.CandleLimit

	candles, err := a.storage.GetCandles(ctx, symbol, timeframe, limit)
	if err == nil && len(candles) >= limit/2 && len(candles) > 0 {
		return candles, nil
	}
	if a.client == nil {
		if err == nil && len(candles) > 0 {
			return candles, nil
		}
		return nil, fmt.Errorf("нет свечей %s %s", symbol, timeframe)
	}

	fetched, ferr := a.client.GetKlines(ctx, symbol, timeframe, limit)
	if ferr != nil || len(fetched) == 0 {
		if len(candles) > 0 {
			return candles, nil
		}
		return nil, fmt.Errorf("нет свечей %s %s: %w", symbol, timeframe, errors.Join(err, ferr))
	}
	if err := a.storage.SaveCandles(ctx, fetched); err != nil {
		logger.Warn("Не удалось сохранить свечи", zap.String("symbol", symbol), zap.Error(err))
	}
	return fetched, nil
}

// adjacentDirections направления соседних таймфреймов по EMA
func (a *Analyzer) adjacentDirections(ctx context.Context, symbol, timeframe string) []models.TimeframeDirection {
	adj := a.confluenceAnal.Adjacent(timeframe)
	dirs := make([]models.Direction, len(adj))

	g, gctx := errgroup.WithContext(ctx)
	for i, tf := range adj {
		g.Go(func() error {
			dirs[i] = models.Neutral
			candles, err := a.loadCandles(gctx, symbol, tf)
			if err != nil {
				return nil
			}
			snap, err := a.technicalAnal.Analyze(candles, tf)
			if err != nil {
				return nil
			}
			if fast, mid, slow, ok := snap.EMAs.FastMidSlow(); ok {
				dirs[i] = confluence.DirectionFromEMAs(snap.Price, fast, mid, slow)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.TimeframeDirection, len(adj))
	for i, tf := range adj {
		out[i] = models.TimeframeDirection{Timeframe: tf, Direction: dirs[i]}
	}
	return out
}

func (a *Analyzer) orderBookFor(ctx context.Context, symbol string) *orderbook.Result {
	book, err := a.storage.GetLatestOrderBook(ctx, symbol)
	if err != nil {
		return nil
	}
	res, err := a.orderbookAnal.Analyze(book)
	if err != nil {
		return nil
	}
	return res
}

func (a *Analyzer) liquidationEvents(symbol string) []models.LiquidationEvent {
	if a.events == nil {
		return nil
	}
	return a.events.Events(symbol)
}

// smoother сглаживатель уровней, свой для каждой пары
func (a *Analyzer) smoother(key string) *levels.Smoother {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.smoothers[key]
	if !ok {
		s = levels.NewSmoother(a.config.Analysis.Levels, nil)
		a.smoothers[key] = s
	}
	return s
}

// Dashboards последний результат пересчета, по рангу
func (a *Analyzer) Dashboards() []*models.Dashboard {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*models.Dashboard(nil), a.latest...)
}

// DashboardsFor результаты по одному символу
func (a *Analyzer) DashboardsFor(symbol string) []*models.Dashboard {
	symbol = strings.ToUpper(symbol)

	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*models.Dashboard
	for _, d := range a.latest {
		if d.Symbol == symbol {
			out = append(out, d)
		}
	}
	return out
}

// Ranking лучшие сигналы последнего пересчета
func (a *Analyzer) Ranking() []models.SignalScore {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.SignalScore(nil), a.ranking...)
}

// Valuation последняя оценка по модели степенного закона
func (a *Analyzer) Valuation() (*models.PowerLawAnalysis, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.valuation == nil {
		return nil, ErrNoValuation
	}
	v := *a.valuation
	return &v, nil
}

// GetSignalHistory возвращает историю сигналов для символа
func (a *Analyzer) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.IntradaySignal, error) {
	return a.storage.GetSignalHistory(ctx, strings.ToUpper(symbol), limit)
}

func marketKey(symbol, timeframe string) string {
	return symbol + ":" + timeframe
}

func isBTC(symbol string) bool {
	return strings.HasPrefix(strings.ToUpper(symbol), "BTC")
}

func countTrue(values []bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}
