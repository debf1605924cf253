package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/skalibog/btcscope/internal/analysis/aggregator"
	"github.com/skalibog/btcscope/internal/api"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/internal/exchange"
	"github.com/skalibog/btcscope/internal/kvstore"
	"github.com/skalibog/btcscope/internal/storage"
	"github.com/skalibog/btcscope/internal/ui"
	"github.com/skalibog/btcscope/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Файл конфигурации не найден: %s\n", *configPath)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Log.Dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка создания каталога логов: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Dir, cfg.Log.Level)
	defer logger.GetLogger().Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv, err := kvstore.New(ctx, cfg.Cache)
	if err != nil {
		logger.Fatal("Ошибка инициализации кэша", zap.Error(err))
	}
	defer kv.Close()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	analyzer := aggregator.NewAnalyzer(cfg, store, client, kv)
	symbols := cfg.Trading.Symbols

	collectors := []exchange.DataCollector{
		exchange.NewCandleCollector(client, store, symbols, analyzer.RequiredTimeframes(),
			cfg.Analysis.Technical.CandleLimit, seconds(cfg.Binance.CandlePollSeconds)),
		exchange.NewOrderBookCollector(client, store, symbols, cfg.Analysis.OrderBook.Depth,
			seconds(cfg.Binance.OrderBookPollSeconds)),
		exchange.NewFundingRateCollector(client, store, symbols, cfg.Analysis.Derivatives.FundingHistoryPeriods,
			seconds(cfg.Binance.DerivativesPollSeconds)),
		exchange.NewOpenInterestCollector(client, store, symbols, seconds(cfg.Binance.DerivativesPollSeconds)),
	}
	if cfg.Binance.UseWebsocket {
		prices := exchange.NewPriceStream(symbols)
		liquidations := exchange.NewLiquidationCollector(symbols,
			time.Duration(cfg.Analysis.Liquidation.EventWindowHours)*time.Hour)
		analyzer.SetPriceSource(prices)
		analyzer.SetEventSource(liquidations)
		collectors = append(collectors, prices, liquidations)
	}

	var wg sync.WaitGroup
	for _, collector := range collectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer collector.Stop()
			if err := collector.Start(ctx); err != nil {
				logger.Warn("Ошибка сборщика данных", zap.Error(err))
			}
		}()
	}

	var server *api.Server
	if cfg.HTTP.Enabled {
		server = api.NewServer(cfg.HTTP, cfg.Trading.Portfolio, analyzer)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Ошибка HTTP сервера", zap.Error(err))
				cancel()
			}
		}()
	}

	var termUI *ui.TermUI
	if cfg.UI.Enabled {
		termUI = ui.NewTermUI(ctx, cfg.UI, logger.JSONLogPath(cfg.Log.Dir))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runAnalysis(ctx, analyzer, termUI, seconds(cfg.Analysis.IntervalSeconds))
	}()

	if termUI != nil {
		if err := termUI.Start(); err != nil {
			logger.Error("Ошибка интерфейса", zap.Error(err))
		}
		cancel()
	} else {
		<-ctx.Done()
	}

	logger.Info("Завершение работы")

	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Ошибка остановки HTTP сервера", zap.Error(err))
		}
		stop()
	}
	wg.Wait()
}

// runAnalysis пересчитывает рынки по таймеру до отмены контекста
func runAnalysis(ctx context.Context, analyzer *aggregator.Analyzer, termUI *ui.TermUI, every time.Duration) {
	// Отложенный старт для накопления данных сборщиками
	select {
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		dashboards, err := analyzer.GenerateSignals(ctx)
		if err != nil {
			logger.Warn("Ошибка при генерации сигналов", zap.Error(err))
		} else if termUI != nil {
			termUI.UpdateDashboards(dashboards)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
