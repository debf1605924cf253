package config

// Default возвращает конфигурацию со всеми продуктовыми константами
func Default() *Config {
	return &Config{
		Binance: BinanceConfig{
			UseWebsocket:           true,
			CandlePollSeconds:      300,
			DerivativesPollSeconds: 600,
			OrderBookPollSeconds:   60,
			RetryAttempts:          2,
			RetryBaseMillis:        500,
		},
		Trading: TradingConfig{
			Symbols:    []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"},
			Timeframes: []string{"15m", "1h", "4h"},
			TopK:       3,
			Portfolio: PortfolioConfig{
				Value:              10000,
				AnnualInterestRate: 8,
			},
		},
		Analysis: AnalysisConfig{
			IntervalSeconds: 60,
			Recalc: RecalcConfig{
				PriceChangePercent: 0.5,
				TTLMinutes:         15,
			},
			Technical: TechnicalConfig{
				CandleLimit: 300,
				RSIPeriod:   14,
				MACDFast:    12,
				MACDSlow:    26,
				MACDSignal:  9,
				ATRPeriod:   14,
				OBVLookback: 20,
			},
			Levels: LevelsConfig{
				MaxLevels:             6,
				MaxSupportDistance:    15,
				MaxResistanceDistance: 20,
				DedupPercent:          0.5,
				PivotWindow:           2,
				TouchTolerance:        0.5,
				FibExtension:          1.618,
				HistoryCycles:         5,
				MatchPercent:          3,
				SmoothingWeight:       0.7,
				SmoothingMaxChange:    2,
				PostDedupPercent:      1,
			},
			Derivatives: DerivativesConfig{
				FundingWeight:         1,
				OpenInterestWeight:    1,
				ExtremePositive:       0.05,
				HighPositive:          0.03,
				Negative:              -0.01,
				ExtremeNegative:       -0.03,
				OITrendThreshold:      2,
				PriceFlatThreshold:    0.5,
				FundingHistoryPeriods: 9,
			},
			Liquidation: LiquidationConfig{
				LookoutPercent:   5,
				HotPercent:       1.5,
				WarmPercent:      2.5,
				FallbackPercent:  3,
				ATRMultiplier:    1.5,
				VolMultiplier:    0.5,
				MinDistance:      1,
				MaxDistance:      15,
				CrowdedFactor:    0.8,
				OILiquidityShare: 0.05,
				SafetyMargin:     0.25,
				EventWindowHours: 24,
			},
			Confluence: ConfluenceConfig{
				StrongThreshold:   80,
				ModerateThreshold: 60,
				MaxAdjacent:       3,
			},
			Signal: SignalConfig{
				MinNetScore:          1,
				ATRStopMultiplier:    1.5,
				FallbackStopPercent:  1.5,
				DerivativesThreshold: 20,
				MaxFactors:           6,
				ConfidenceWeight:     0.7,
				ConfluenceWeight:     0.3,
			},
			Trade: TradeConfig{
				MinConfidence:        55,
				MinConfluence:        40,
				ATRStopMultiplier:    1.5,
				MinStopPercent:       0.5,
				MaxStopPercent:       5,
				MarginRiskPercent:    20,
				MaxLeverage:          20,
				ConservativeLeverage: 10,
			},
			Position: PositionConfig{
				CriticalLiquidationDistance: 10,
				ExitLiquidationDistance:     5,
				WarningLiquidationDistance:  20,
				FlipConfidence:              70,
				ScalpProfitPercent:          50,
				DCAFraction:                 0.25,
			},
			OrderBook: OrderBookConfig{
				Depth:              100,
				ImbalanceThreshold: 10,
			},
			VolumeDelta: VolumeDeltaConfig{
				Lookback:              20,
				SignificanceThreshold: 2,
			},
		},
		Storage: StorageConfig{
			Type: "memory",
		},
		Cache: CacheConfig{
			Type:       "memory",
			TTLMinutes: 24 * 60,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Address: ":8080",
		},
		UI: UIConfig{
			Enabled:     true,
			RefreshRate: 1000,
		},
		Log: LogConfig{
			Dir:   ".",
			Level: "debug",
		},
	}
}
