package technical

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/logger"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
	"go.uber.org/zap"
)

// Наборы периодов EMA
var (
	DailyPeriods    = []int{25, 55, 99, 200}
	IntradayPeriods = []int{9, 21, 50}
)

// PresetFor возвращает периоды EMA для таймфрейма
func PresetFor(timeframe string) []int {
	switch timeframe {
	case "1d", "3d", "1w":
		return DailyPeriods
	default:
		return IntradayPeriods
	}
}

// Snapshot состояние индикаторов на последней свече
type Snapshot struct {
	Price      float64       `json:"price"`
	EMAs       models.EMASet `json:"emas"`
	RSI        float64       `json:"rsi"`
	MACD       float64       `json:"macd"`
	MACDSignal float64       `json:"macd_signal"`
	MACDHist   float64       `json:"macd_hist"`
	OBVSlope   float64       `json:"obv_slope"`
	ATR        float64       `json:"atr"`
	ATRPercent float64       `json:"atr_percent"`
	Volatility float64       `json:"volatility"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// Analyzer реализует движок технических индикаторов
type Analyzer struct {
	config config.TechnicalConfig
}

// NewAnalyzer создает новый анализатор технических индикаторов
func NewAnalyzer(cfg config.TechnicalConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// EMA возвращает последнее значение EMA. При нехватке данных возвращает
// последнюю цену и false.
func EMA(closes []float64, period int) (float64, bool) {
	if len(closes) == 0 || period <= 0 {
		return 0, false
	}
	last := closes[len(closes)-1]
	if len(closes) < period {
		logger.Warn("Недостаточно данных для EMA, используется последняя цена",
			zap.Int("period", period),
			zap.Int("available", len(closes)))
		return last, false
	}
	series := talib.Ema(closes, period)
	return lastValue(series, last), true
}

// EMASet рассчитывает EMA по набору периодов
func EMASet(closes []float64, periods ...int) models.EMASet {
	set := make(models.EMASet, len(periods))
	for _, p := range periods {
		v, _ := EMA(closes, p)
		set[p] = v
	}
	return set
}

// Analyze рассчитывает все индикаторы по свечам (по возрастанию времени)
func (a *Analyzer) Analyze(candles []*models.Candle, timeframe string) (*Snapshot, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("нет свечей для анализа")
	}

	// Подготавливаем данные для анализа
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))

	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	snap := &Snapshot{
		Price: closes[len(closes)-1],
		EMAs:  make(models.EMASet),
		RSI:   50,
	}

	for _, p := range PresetFor(timeframe) {
		v, ok := EMA(closes, p)
		if !ok {
			snap.Warnings = append(snap.Warnings, fmt.Sprintf("EMA%d: недостаточно данных (%d свечей)", p, len(closes)))
		}
		snap.EMAs[p] = v
	}

	a.calculateRSI(closes, snap)
	a.calculateMACD(closes, snap)
	a.calculateOBV(closes, volumes, snap)
	a.calculateATR(highs, lows, closes, snap)
	snap.Volatility = RealizedVolatility(closes)

	return snap, nil
}

// calculateRSI рассчитывает RSI, при нехватке данных оставляет нейтральные 50
func (a *Analyzer) calculateRSI(closes []float64, snap *Snapshot) {
	if len(closes) <= a.config.RSIPeriod {
		snap.Warnings = append(snap.Warnings, "RSI: недостаточно данных")
		return
	}
	rsi := talib.Rsi(closes, a.config.RSIPeriod)
	snap.RSI = lastValue(rsi, 50)
}

// calculateMACD рассчитывает MACD и гистограмму
func (a *Analyzer) calculateMACD(closes []float64, snap *Snapshot) {
	if len(closes) < a.config.MACDSlow+a.config.MACDSignal {
		snap.Warnings = append(snap.Warnings, "MACD: недостаточно данных")
		return
	}
	macd, signal, hist := talib.Macd(
		closes,
		a.config.MACDFast,
		a.config.MACDSlow,
		a.config.MACDSignal,
	)
	snap.MACD = lastValue(macd, 0)
	snap.MACDSignal = lastValue(signal, 0)
	snap.MACDHist = lastValue(hist, 0)
}

// calculateOBV рассчитывает наклон OBV за последние свечи, нормированный на средний объем
func (a *Analyzer) calculateOBV(closes, volumes []float64, snap *Snapshot) {
	if len(closes) < 3 {
		snap.Warnings = append(snap.Warnings, "OBV: недостаточно данных")
		return
	}
	obv := talib.Obv(closes, volumes)

	lookback := a.config.OBVLookback
	if lookback <= 1 || lookback > len(obv) {
		lookback = len(obv)
	}
	window := obv[len(obv)-lookback:]

	var avgVolume float64
	for _, v := range volumes[len(volumes)-lookback:] {
		avgVolume += v
	}
	avgVolume /= float64(lookback)
	if avgVolume == 0 {
		return
	}

	snap.OBVSlope = mathx.Slope(window) / avgVolume
}

// calculateATR рассчитывает ATR (Average True Range)
func (a *Analyzer) calculateATR(highs, lows, closes []float64, snap *Snapshot) {
	if len(closes) <= a.config.ATRPeriod {
		snap.Warnings = append(snap.Warnings, "ATR: недостаточно данных")
		return
	}
	atr := talib.Atr(highs, lows, closes, a.config.ATRPeriod)
	snap.ATR = lastValue(atr, 0)

	// ATR как процент от цены
	if snap.Price > 0 {
		snap.ATRPercent = snap.ATR / snap.Price * 100
	}
}

// RealizedVolatility стандартное отклонение логарифмических доходностей в процентах.
// Отклонение по генеральной совокупности (делитель N), как в talib.StdDev.
func RealizedVolatility(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) < 2 {
		return 0
	}

	std := talib.StdDev(returns, len(returns), 1)
	return lastValue(std, 0) * 100
}

// lastValue возвращает последнее конечное значение ряда или fallback
func lastValue(series []float64, fallback float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return fallback
}
