// Package confluence проверяет, подтверждают ли соседние таймфреймы направление основного.
package confluence

import (
	"fmt"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

// Рекомендации по силе подтверждения
const (
	Strong      = "strong"
	Moderate    = "moderate"
	Weak        = "weak"
	Conflicting = "conflicting"
)

var adjacency = map[string][]string{
	"1m":  {"5m", "15m"},
	"5m":  {"1m", "15m", "1h"},
	"15m": {"5m", "1h", "4h"},
	"1h":  {"15m", "4h", "1d"},
	"4h":  {"1h", "1d", "1w"},
	"1d":  {"4h", "1w"},
	"1w":  {"1d"},
}

// Result результат анализа подтверждения
type Result struct {
	Score          float64  `json:"score"`
	Agreeing       int      `json:"agreeing"`
	Conflicting    int      `json:"conflicting"`
	Neutral        int      `json:"neutral"`
	Recommendation string   `json:"recommendation"`
	Summary        string   `json:"summary"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Analyzer анализатор мультитаймфреймового подтверждения
type Analyzer struct {
	config config.ConfluenceConfig
}

// NewAnalyzer создает новый анализатор подтверждения
func NewAnalyzer(cfg config.ConfluenceConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Adjacent соседние таймфреймы для проверки
func (a *Analyzer) Adjacent(timeframe string) []string {
	adj := adjacency[timeframe]
	limit := a.config.MaxAdjacent
	if limit > 0 && len(adj) > limit {
		adj = adj[:limit]
	}
	out := make([]string, len(adj))
	copy(out, adj)
	return out
}

// DirectionFromEMAs направление по выстроенным EMA и положению цены
func DirectionFromEMAs(price, fast, mid, slow float64) models.Direction {
	switch {
	case fast > mid && mid > slow && price > fast:
		return models.Long
	case fast < mid && mid < slow && price < fast:
		return models.Short
	default:
		return models.Neutral
	}
}

// Analyze считает долю соседних таймфреймов, согласных с основным направлением.
// Нейтральные соседи в знаменателе, но не добавляют согласия.
func (a *Analyzer) Analyze(primary models.Direction, adjacent []models.TimeframeDirection) Result {
	var res Result

	if primary == models.Neutral || primary == "" {
		res.Recommendation = Weak
		res.Summary = "No confluence: primary timeframe has no direction"
		res.Warnings = append(res.Warnings, "Primary timeframe has no direction")
		return res
	}
	if len(adjacent) == 0 {
		res.Recommendation = Weak
		res.Summary = "No confluence: no adjacent timeframes to confirm"
		res.Warnings = append(res.Warnings, "No adjacent timeframes to confirm")
		return res
	}

	for _, adj := range adjacent {
		switch adj.Direction {
		case primary:
			res.Agreeing++
		case primary.Opposite():
			res.Conflicting++
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s points %s", adj.Timeframe, adj.Direction))
		default:
			res.Neutral++
		}
	}

	res.Score = float64(res.Agreeing) / float64(len(adjacent)) * 100

	switch {
	case res.Score >= a.config.StrongThreshold:
		res.Recommendation = Strong
	case res.Score >= a.config.ModerateThreshold:
		res.Recommendation = Moderate
	case res.Conflicting > res.Agreeing:
		res.Recommendation = Conflicting
	default:
		res.Recommendation = Weak
	}
	res.Summary = summary(res, len(adjacent))
	return res
}

func summary(res Result, total int) string {
	switch res.Recommendation {
	case Strong:
		return fmt.Sprintf("Strong confluence: %d/%d timeframes agree", res.Agreeing, total)
	case Moderate:
		return fmt.Sprintf("Moderate confluence: %d/%d timeframes agree", res.Agreeing, total)
	case Conflicting:
		return fmt.Sprintf("Conflicting timeframes: %d/%d point the other way", res.Conflicting, total)
	default:
		return fmt.Sprintf("Weak confluence: only %d/%d timeframes agree", res.Agreeing, total)
	}
}
