package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

func TestFormatLogLine(t *testing.T) {
	line := `{"level":"WARN","ts":"01.05.2024 - 12:30:45.123456789+00:00","caller":"x.go:1","msg":"Повтор запроса","symbol":"BTCUSDT","attempt":1}`
	got := formatLogLine(line)

	want := "[12:30:45] [WARN] Повтор запроса (attempt: 1) (symbol: BTCUSDT)"
	if got != want {
		t.Errorf("ожидалось %q, получено %q", want, got)
	}

	if got := formatLogLine("plain text"); got != "plain text" {
		t.Errorf("строка не в JSON должна остаться как есть, получено %q", got)
	}
}

func TestLoadLogsKeepsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json.log")
	var b strings.Builder
	for i := 0; i < maxLogLines+10; i++ {
		b.WriteString(`{"level":"INFO","msg":"line"}` + "\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ui := NewTermUI(ctx, config.UIConfig{RefreshRate: 1000}, path)

	ui.mu.RLock()
	defer ui.mu.RUnlock()
	if len(ui.logs) != maxLogLines {
		t.Errorf("ожидалось %d строк, получено %d", maxLogLines, len(ui.logs))
	}
}

func TestRenderRanking(t *testing.T) {
	dashboards := []*models.Dashboard{
		{Symbol: "BTCUSDT", Timeframe: "1h", Price: 65000, Score: models.SignalScore{Rank: 1}, Signal: models.IntradaySignal{Direction: models.Long}},
		{Symbol: "ETHUSDT", Timeframe: "4h", Price: 3000, Score: models.SignalScore{Rank: 4}, Stale: true},
	}
	out := renderRankingSection(dashboards, 1)

	for _, want := range []string{"🥇", "BTCUSDT", "#4", "ETHUSDT", "stale", "> "} {
		if !strings.Contains(out, want) {
			t.Errorf("в рейтинге нет %q", want)
		}
	}
	if !strings.Contains(renderRankingSection(nil, 0), "Ожидание данных") {
		t.Error("пустой рейтинг должен показывать ожидание")
	}
}

func TestRenderDetail(t *testing.T) {
	d := &models.Dashboard{
		Symbol:    "BTCUSDT",
		Timeframe: "1d",
		Signal: models.IntradaySignal{
			Direction:  models.Long,
			EntryPrice: 65000,
			StopLoss:   63000,
			Factors:    []models.SignalFactor{{Label: "EMA aligned bullish", Positive: true, Weight: 2}},
		},
		Supports:  []models.SupportResistanceLevel{{Price: 62000, Strength: models.StrengthHigh}},
		Valuation: &models.PowerLawAnalysis{FairValue: 70000, Ratio: 0.93, ZoneLabel: "Valor justo", Decision: "execute"},
	}
	out := renderDetailSection(d)

	for _, want := range []string{"EMA aligned bullish", "Поддержки: 62000 (high)", "Power Law", "63000"} {
		if !strings.Contains(out, want) {
			t.Errorf("в деталях нет %q", want)
		}
	}
	if !strings.Contains(renderDetailSection(nil), "Нет выбранного рынка") {
		t.Error("без выбора должна быть заглушка")
	}
}

func TestLogLinesFor(t *testing.T) {
	if logLinesFor(20) != 6 || logLinesFor(50) != 20 || logLinesFor(500) != maxLogLines {
		t.Error("неожиданное число строк лога")
	}
}
