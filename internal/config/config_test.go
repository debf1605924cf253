package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
trading:
  symbols: ["BTCUSDT"]
  timeframes: ["1h"]
analysis:
  trade:
    max_leverage: 15
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("не удалось записать конфиг: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load вернул ошибку: %v", err)
	}

	if len(cfg.Trading.Symbols) != 1 || cfg.Trading.Symbols[0] != "BTCUSDT" {
		t.Errorf("ожидался BTCUSDT, получено %v", cfg.Trading.Symbols)
	}
	if cfg.Analysis.Trade.MaxLeverage != 15 {
		t.Errorf("ожидалось плечо 15, получено %d", cfg.Analysis.Trade.MaxLeverage)
	}
	// значения по умолчанию сохраняются
	if cfg.Analysis.Levels.SmoothingWeight != 0.7 {
		t.Errorf("ожидался вес сглаживания 0.7, получено %f", cfg.Analysis.Levels.SmoothingWeight)
	}
	if cfg.Analysis.Liquidation.HotPercent != 1.5 {
		t.Errorf("ожидался порог hot 1.5, получено %f", cfg.Analysis.Liquidation.HotPercent)
	}
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("binance:\n  api_key: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BINANCE_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load вернул ошибку: %v", err)
	}
	if cfg.Binance.APIKey != "from-env" {
		t.Errorf("ожидался ключ из окружения, получено %q", cfg.Binance.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no symbols", func(c *Config) { c.Trading.Symbols = nil }},
		{"no timeframes", func(c *Config) { c.Trading.Timeframes = nil }},
		{"negative portfolio", func(c *Config) { c.Trading.Portfolio.Value = -1 }},
		{"leverage too high", func(c *Config) { c.Analysis.Trade.MaxLeverage = 500 }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("ожидалась ошибка валидации")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("конфигурация по умолчанию должна быть валидной: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("ожидалась ошибка для отсутствующего файла")
	}
}
