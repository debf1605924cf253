package orderbook

import (
	"fmt"
	"math"
	"sort"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

// Result давление стакана, все составляющие в диапазоне -100..100.
// Положительные значения указывают на преобладание покупателей.
type Result struct {
	Imbalance float64 `json:"imbalance"`
	Depth     float64 `json:"depth"`
	Walls     float64 `json:"walls"`
	Spread    float64 `json:"spread"`
	Score     float64 `json:"score"`
}

// Analyzer реализует анализатор стакана заявок
type Analyzer struct {
	config config.OrderBookConfig
}

// NewAnalyzer создает новый анализатор стакана заявок
func NewAnalyzer(cfg config.OrderBookConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Analyze анализирует снимок стакана
func (a *Analyzer) Analyze(book *models.OrderBook) (*Result, error) {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, fmt.Errorf("пустой стакан")
	}

	bids, asks := sortedLevels(book)
	mid := (bids[0].Price + asks[0].Price) / 2
	if mid <= 0 {
		return nil, fmt.Errorf("некорректная цена стакана %s", book.Symbol)
	}

	res := &Result{
		Imbalance: a.calculateImbalance(bids, asks),
		Depth:     calculateDepth(bids, asks, mid),
		Walls:     calculateWalls(bids, asks, mid),
		Spread:    calculateSpreads(bids, asks, mid),
	}

	// Комбинируем сигналы с весами
	res.Score = res.Imbalance*0.4 +
		res.Depth*0.2 +
		res.Walls*0.25 +
		res.Spread*0.15

	return res, nil
}

// sortedLevels копирует уровни: биды по убыванию цены, аски по возрастанию
func sortedLevels(book *models.OrderBook) ([]models.OrderBookLevel, []models.OrderBookLevel) {
	bids := append([]models.OrderBookLevel(nil), book.Bids...)
	asks := append([]models.OrderBookLevel(nil), book.Asks...)

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return bids, asks
}

// calculateImbalance рассчитывает дисбаланс между спросом и предложением
func (a *Analyzer) calculateImbalance(bids, asks []models.OrderBookLevel) float64 {
	bidVolume, askVolume := totalAmount(bids), totalAmount(asks)
	if bidVolume+askVolume == 0 {
		return 0
	}

	imbalance := (bidVolume - askVolume) / (bidVolume + askVolume) * 100

	// Применяем порог дисбаланса
	if math.Abs(imbalance) < a.config.ImbalanceThreshold {
		return 0
	}
	return imbalance
}

// calculateDepth сравнивает объемы на 0.5%, 1%, 2% и 5% от средней цены.
// Близкие уровни имеют больший вес.
func calculateDepth(bids, asks []models.OrderBookLevel, mid float64) float64 {
	depthLevels := []float64{0.005, 0.01, 0.02, 0.05}
	weights := []float64{0.4, 0.3, 0.2, 0.1}

	var signal float64
	for i, level := range depthLevels {
		var bidVolume, askVolume float64
		for _, b := range bids {
			if 1-b.Price/mid <= level {
				bidVolume += b.Amount
			}
		}
		for _, ask := range asks {
			if ask.Price/mid-1 <= level {
				askVolume += ask.Amount
			}
		}
		if total := bidVolume + askVolume; total > 0 {
			signal += (bidVolume - askVolume) / total * weights[i]
		}
	}
	return signal * 100
}

// calculateWalls оценивает ближайшие крупные заявки: близкая стена снизу
// поддерживает цену, близкая стена сверху давит
func calculateWalls(bids, asks []models.OrderBookLevel, mid float64) float64 {
	if len(bids) < 3 || len(asks) < 3 {
		return 0
	}

	support, supportStrength := nearestWall(bids)
	resistance, resistanceStrength := nearestWall(asks)
	if support == nil || resistance == nil {
		return 0
	}

	supportDist := math.Min((mid-support.Price)/mid, 0.1) / 0.1
	resistanceDist := math.Min((resistance.Price-mid)/mid, 0.1) / 0.1

	supportFactor := (1 - supportDist) * supportStrength
	resistanceFactor := (1 - resistanceDist) * resistanceStrength

	return (supportFactor - resistanceFactor) * 100
}

// nearestWall первый по порядку уровень с объемом выше 1.5 среднего и его сила 0..1
func nearestWall(levels []models.OrderBookLevel) (*models.OrderBookLevel, float64) {
	avg := totalAmount(levels) / float64(len(levels))
	if avg == 0 {
		return nil, 0
	}
	for i := range levels {
		if levels[i].Amount > avg*1.5 {
			return &levels[i], math.Min(1, levels[i].Amount/(avg*3))
		}
	}
	return nil, 0
}

// calculateSpreads сравнивает плотность заявок: разреженные аски означают
// меньшее сопротивление сверху
func calculateSpreads(bids, asks []models.OrderBookLevel, mid float64) float64 {
	currentSpread := (asks[0].Price - bids[0].Price) / mid

	bidGaps := averageGap(bids, 5)
	askGaps := averageGap(asks, 5)

	ratio := 0.0
	if bidGaps > 0 && askGaps > 0 {
		ratio = (askGaps - bidGaps) / math.Max(bidGaps, askGaps)
	}

	// Узкий спред означает высокую ликвидность
	spreadFactor := math.Min(currentSpread*100, 1.0)

	return ratio * (1 - spreadFactor) * 50
}

// averageGap средний относительный шаг между соседними уровнями
func averageGap(levels []models.OrderBookLevel, count int) float64 {
	if len(levels) < count+1 {
		count = len(levels) - 1
	}
	if count <= 0 {
		return 0
	}

	var total float64
	for i := 0; i < count; i++ {
		lower := math.Min(levels[i].Price, levels[i+1].Price)
		if lower <= 0 {
			continue
		}
		total += math.Abs(levels[i+1].Price-levels[i].Price) / lower
	}
	return total / float64(count)
}

func totalAmount(levels []models.OrderBookLevel) float64 {
	var total float64
	for _, l := range levels {
		total += l.Amount
	}
	return total
}
