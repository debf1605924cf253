package levels

import (
	"math"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/mathx"
	"github.com/skalibog/btcscope/pkg/models"
)

// Категории уровней в истории сглаживания
const (
	CategorySupport    = "support"
	CategoryResistance = "resistance"
)

// History скользящая история циклов пересчета. Принадлежит одному
// сглаживателю и не используется конкурентно.
type History struct {
	cycles   map[string][][]float64
	smoothed map[string][]float64
}

// NewHistory создает пустую историю
func NewHistory() *History {
	h := &History{}
	h.Reset()
	return h
}

// Reset очищает историю
func (h *History) Reset() {
	h.cycles = make(map[string][][]float64)
	h.smoothed = make(map[string][]float64)
}

// Len количество сохраненных циклов категории
func (h *History) Len(category string) int {
	return len(h.cycles[category])
}

// Smoother сглаживает уровни между циклами, чтобы они не дергались в UI
type Smoother struct {
	config  config.LevelsConfig
	history *History
}

// NewSmoother создает сглаживатель поверх переданной истории
func NewSmoother(cfg config.LevelsConfig, history *History) *Smoother {
	if history == nil {
		history = NewHistory()
	}
	return &Smoother{
		config:  cfg,
		history: history,
	}
}

// History возвращает историю сглаживателя
func (s *Smoother) History() *History {
	return s.history
}

// Apply сглаживает обе категории и убирает оставшиеся дубликаты
func (s *Smoother) Apply(price float64, res Result) Result {
	supports := s.Smooth(CategorySupport, price, res.Supports)
	resistances := s.Smooth(CategoryResistance, price, res.Resistances)

	all := append(append([]models.SupportResistanceLevel{}, supports...), resistances...)
	all = Dedupe(all, s.config.PostDedupPercent)

	return finalize(price, all, s.config.MaxLevels)
}

// Smooth сглаживает уровни одной категории и записывает цикл в историю
func (s *Smoother) Smooth(category string, price float64, levels []models.SupportResistanceLevel) []models.SupportResistanceLevel {
	raw := make([]float64, len(levels))
	for i, lvl := range levels {
		raw[i] = lvl.Price
	}

	prevSmoothed := s.history.smoothed[category]
	nextSmoothed := make([]float64, len(levels))
	out := make([]models.SupportResistanceLevel, len(levels))

	for i, lvl := range levels {
		avg := s.historicalAverage(category, lvl.Price)

		smoothed := avg
		if i < len(prevSmoothed) {
			prev := prevSmoothed[i]
			if prev > 0 && math.Abs(avg-prev)/prev*100 <= s.config.SmoothingMaxChange {
				w := s.config.SmoothingWeight
				smoothed = w*prev + (1-w)*avg
			}
		}

		nextSmoothed[i] = smoothed
		lvl.Price = mathx.RoundPrice(smoothed)
		lvl.DistancePercent = mathx.RoundTo(mathx.PercentDistance(price, lvl.Price), 2)
		out[i] = lvl
	}

	s.push(category, raw)
	s.history.smoothed[category] = nextSmoothed

	return out
}

// historicalAverage усредняет цену с ближайшими совпадениями в каждом цикле истории
func (s *Smoother) historicalAverage(category string, price float64) float64 {
	sum, n := price, 1.0
	for _, cycle := range s.history.cycles[category] {
		best, bestDist := 0.0, math.MaxFloat64
		for _, p := range cycle {
			dist := math.Abs(mathx.PercentDistance(price, p))
			if dist <= s.config.MatchPercent && dist < bestDist {
				best, bestDist = p, dist
			}
		}
		if bestDist != math.MaxFloat64 {
			sum += best
			n++
		}
	}
	return sum / n
}

// push добавляет цикл, удерживая не более HistoryCycles последних
func (s *Smoother) push(category string, raw []float64) {
	cycles := append(s.history.cycles[category], raw)
	limit := s.config.HistoryCycles
	if limit > 0 && len(cycles) > limit {
		cycles = cycles[len(cycles)-limit:]
	}
	s.history.cycles[category] = cycles
}
