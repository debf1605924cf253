package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/skalibog/btcscope/internal/analysis/trade"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/logger"
	"github.com/skalibog/btcscope/pkg/models"
	"go.uber.org/zap"
)

// maxLogLines сколько последних строк лога держит интерфейс
const maxLogLines = 50

// Стили UI
var (
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	mutedColor     = lipgloss.Color("#999999")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("#222222"))
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// TermUI терминальный дашборд: рейтинг рынков, детали выбранного и лог
type TermUI struct {
	ctx           context.Context
	mu            sync.RWMutex
	dashboards    []*models.Dashboard
	logs          []string
	config        config.UIConfig
	program       *tea.Program
	selectedIndex int
	width         int
	height        int
	logFile       string
}

type refreshMsg struct{}

type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает интерфейс. Лог перечитывается из logFile до отмены ctx.
func NewTermUI(ctx context.Context, cfg config.UIConfig, logFile string) *TermUI {
	ui := &TermUI{
		ctx:     ctx,
		logs:    []string{"btcscope запущен. Ожидание данных..."},
		config:  cfg,
		width:   120,
		height:  40,
		logFile: logFile,
	}

	if err := ui.loadLogsFromFile(); err != nil {
		ui.logs = append(ui.logs, fmt.Sprintf("Ошибка загрузки логов: %v", err))
	}

	interval := time.Duration(cfg.RefreshRate) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	go ui.watchLogs(interval)

	return ui
}

func (ui *TermUI) watchLogs(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
				continue
			}
			ui.refresh()
		case <-ui.ctx.Done():
			return
		}
	}
}

// Start запускает интерфейс и блокируется до выхода пользователя или отмены контекста
func (ui *TermUI) Start() error {
	ui.mu.Lock()
	ui.program = tea.NewProgram(bubbleModel{ui: ui}, tea.WithAltScreen(), tea.WithContext(ui.ctx))
	program := ui.program
	ui.mu.Unlock()

	if _, err := program.Run(); err != nil && ui.ctx.Err() == nil {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// UpdateDashboards показывает новый результат пересчета
func (ui *TermUI) UpdateDashboards(dashboards []*models.Dashboard) {
	ui.mu.Lock()
	ui.dashboards = dashboards
	if ui.selectedIndex >= len(dashboards) {
		ui.selectedIndex = max(0, len(dashboards)-1)
	}
	ui.mu.Unlock()

	ui.refresh()
}

func (ui *TermUI) refresh() {
	ui.mu.RLock()
	program := ui.program
	ui.mu.RUnlock()

	if program != nil {
		program.Send(refreshMsg{})
	}
}

// loadLogsFromFile читает хвост JSON-лога
func (ui *TermUI) loadLogsFromFile() error {
	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var logs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > maxLogLines {
			logs = logs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(logs) > 0 {
		ui.mu.Lock()
		ui.logs = logs
		ui.mu.Unlock()
	}
	return nil
}

// formatLogLine превращает строку JSON-лога в одну читаемую строку
func formatLogLine(line string) string {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line
	}

	level, _ := entry["level"].(string)
	ts, _ := entry["ts"].(string)
	msg, _ := entry["msg"].(string)
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	keys := make([]string, 0, len(entry))
	for k := range entry {
		if k != "level" && k != "ts" && k != "msg" && k != "caller" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", timestamp, level, msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " (%s: %v)", k, entry[k])
	}
	return b.String()
}

func (m bubbleModel) Init() tea.Cmd {
	return nil
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.ui.mu.Lock()
			m.ui.selectedIndex = max(0, m.ui.selectedIndex-1)
			m.ui.mu.Unlock()
		case "down", "j":
			m.ui.mu.Lock()
			m.ui.selectedIndex = max(0, min(len(m.ui.dashboards)-1, m.ui.selectedIndex+1))
			m.ui.mu.Unlock()
		case "r":
			if err := m.ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
			}
		}

	case tea.WindowSizeMsg:
		m.ui.mu.Lock()
		m.ui.width = msg.Width
		m.ui.height = msg.Height
		m.ui.mu.Unlock()

	case refreshMsg:
	}

	return m, nil
}

func (m bubbleModel) View() string {
	m.ui.mu.RLock()
	defer m.ui.mu.RUnlock()

	var selected *models.Dashboard
	if m.ui.selectedIndex < len(m.ui.dashboards) {
		selected = m.ui.dashboards[m.ui.selectedIndex]
	}

	title := titleStyle.Render("btcscope - BTC & crypto trading analysis")
	ranking := renderRankingSection(m.ui.dashboards, m.ui.selectedIndex)
	detail := renderDetailSection(selected)
	logs := renderLogsSection(m.ui.logs, logLinesFor(m.ui.height))
	footer := footerStyle.Render("Клавиши: ↑/↓ - выбор рынка, R - перезагрузить логи, Q - выход")

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			lipgloss.JoinHorizontal(lipgloss.Top, ranking, " ", detail),
			"",
			logs,
			"",
			footer,
		),
	)
}

// logLinesFor сколько строк лога помещается на экране
func logLinesFor(height int) int {
	n := height - 30
	if n < 6 {
		return 6
	}
	if n > maxLogLines {
		return maxLogLines
	}
	return n
}

func renderRankingSection(dashboards []*models.Dashboard, selectedIndex int) string {
	header := headerStyle.Render("РЕЙТИНГ")
	var content strings.Builder

	if len(dashboards) == 0 {
		content.WriteString("  Ожидание данных...\n")
	}
	for i, d := range dashboards {
		line := fmt.Sprintf("%-4s %-9s %-4s %s %5.1f%% score %5.1f  %s",
			trade.Medal(d.Score.Rank),
			d.Symbol,
			d.Timeframe,
			directionText(d.Signal.Direction),
			d.Signal.Confidence,
			d.Score.TotalScore,
			formatPrice(d.Price))
		if d.Stale {
			line += lipgloss.NewStyle().Foreground(warningColor).Render(" stale")
		}

		if i == selectedIndex {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		content.WriteString(line + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

func renderDetailSection(d *models.Dashboard) string {
	header := headerStyle.Render("ДЕТАЛИ")
	if d == nil {
		return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "  Нет выбранного рынка\n"))
	}

	var b strings.Builder
	sig := d.Signal
	fmt.Fprintf(&b, "%s %s  %s  %s\n", d.Symbol, d.Timeframe, directionText(sig.Direction), d.ConfluenceSummary)

	if sig.Direction.Valid() {
		fmt.Fprintf(&b, "Entry %s  SL %s  TP %s / %s / %s  RR %.1f\n",
			formatPrice(sig.EntryPrice), formatPrice(sig.StopLoss),
			formatPrice(sig.TakeProfit1), formatPrice(sig.TakeProfit2), formatPrice(sig.TakeProfit3),
			sig.RiskRewardRatio)
	}
	if s := d.Setup; s != nil {
		fmt.Fprintf(&b, "Setup: leverage %dx (%d-%d), stop %.2f%%, %s\n",
			s.Leverage.Suggested, s.Leverage.Min, s.Leverage.Max, s.StopLoss.DistancePercent, s.EstimatedDuration)
	}

	for _, f := range sig.Factors {
		mark := lipgloss.NewStyle().Foreground(errorColor).Render("-")
		if f.Positive {
			mark = lipgloss.NewStyle().Foreground(successColor).Render("+")
		}
		fmt.Fprintf(&b, " %s %s\n", mark, f.Label)
	}

	b.WriteString(renderLevels("Сопротивления", d.Resistances))
	b.WriteString(renderLevels("Поддержки", d.Supports))

	dv := d.Derivatives
	fmt.Fprintf(&b, "Funding %.4f%% (%s)  OI 24h %+.2f%% (%s)\n",
		dv.FundingRatePercent, dv.FundingBand, dv.OpenInterestChange24h, dv.OISignal)

	lq := d.Liquidation
	fmt.Fprintf(&b, "Ликвидации [%s, %s]: long %s (-%.2f%%)  short %s (+%.2f%%)\n",
		lq.Method, lq.HeatLevel,
		formatPrice(lq.LongPool.Price), lq.LongPool.DistancePercent,
		formatPrice(lq.ShortPool.Price), lq.ShortPool.DistancePercent)

	if v := d.Valuation; v != nil {
		fmt.Fprintf(&b, "Power Law: fair %s, ratio %.2f, %s, decision %s\n",
			formatPrice(v.FairValue), v.Ratio, v.ZoneLabel, v.Decision)
	}
	for _, w := range sig.Warnings {
		b.WriteString(lipgloss.NewStyle().Foreground(warningColor).Render("! "+w) + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, b.String()))
}

func renderLevels(title string, levels []models.SupportResistanceLevel) string {
	if len(levels) == 0 {
		return ""
	}
	parts := make([]string, 0, 3)
	for i, l := range levels {
		if i == 3 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", formatPrice(l.Price), l.Strength))
	}
	return fmt.Sprintf("%s: %s\n", title, strings.Join(parts, ", "))
}

func renderLogsSection(logs []string, limit int) string {
	header := headerStyle.Render("ЛОГИ")
	var content strings.Builder

	start := 0
	if len(logs) > limit {
		start = len(logs) - limit
	}
	for _, line := range logs[start:] {
		switch {
		case strings.Contains(line, "[ERROR]"):
			line = lipgloss.NewStyle().Foreground(errorColor).Render(line)
		case strings.Contains(line, "[WARN]"):
			line = lipgloss.NewStyle().Foreground(warningColor).Render(line)
		case strings.Contains(line, "[INFO]"):
			line = lipgloss.NewStyle().Foreground(successColor).Render(line)
		case strings.Contains(line, "[DEBUG]"):
			line = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(line)
		}
		content.WriteString("  " + line + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

func directionText(d models.Direction) string {
	switch d {
	case models.Long:
		return lipgloss.NewStyle().Foreground(successColor).Bold(true).Render("LONG   ")
	case models.Short:
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render("SHORT  ")
	default:
		return lipgloss.NewStyle().Foreground(warningColor).Render("NEUTRAL")
	}
}

func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.0f", p)
	case p >= 1:
		return fmt.Sprintf("%.2f", p)
	default:
		return fmt.Sprintf("%.4f", p)
	}
}
