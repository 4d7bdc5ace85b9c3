package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Engine.Instruments) == 0 {
		t.Error("instruments default missing")
	}
	if cfg.Engine.Interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", cfg.Engine.Interval)
	}
	if cfg.Risk.MaxRiskPerTrade != 0.02 {
		t.Errorf("max risk per trade = %v, want 0.02", cfg.Risk.MaxRiskPerTrade)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.SSLMode != "disable" {
		t.Errorf("sslmode = %s, want disable", cfg.Database.SSLMode)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"engine": {"instruments": ["ETHUSDT", "BTCUSDT"], "base_currency": "USDT"},
		"risk": {"max_open_trades": 3},
		"server": {"port": 9090}
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Engine.Instruments) != 2 || cfg.Engine.Instruments[0] != "ETHUSDT" {
		t.Errorf("instruments = %v, want [ETHUSDT BTCUSDT]", cfg.Engine.Instruments)
	}
	if cfg.Risk.MaxOpenTrades != 3 {
		t.Errorf("max open trades = %d, want 3", cfg.Risk.MaxOpenTrades)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	// Unset fields still get defaults.
	if cfg.Risk.Leverage != 10 {
		t.Errorf("leverage = %v, want default 10", cfg.Risk.Leverage)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"port": 9090}}`), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	t.Setenv("WEB_PORT", "7070")
	t.Setenv("ENGINE_INSTRUMENTS", "SOLUSDT, ADAUSDT")
	t.Setenv("ENGINE_INTERVAL", "1m")
	t.Setenv("RISK_MAX_PER_TRADE", "0.05")
	t.Setenv("MOCK_MODE", "true")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
	if len(cfg.Engine.Instruments) != 2 || cfg.Engine.Instruments[1] != "ADAUSDT" {
		t.Errorf("instruments = %v, want [SOLUSDT ADAUSDT]", cfg.Engine.Instruments)
	}
	if cfg.Engine.Interval != time.Minute {
		t.Errorf("interval = %v, want 1m", cfg.Engine.Interval)
	}
	if cfg.Risk.MaxRiskPerTrade != 0.05 {
		t.Errorf("max risk = %v, want 0.05", cfg.Risk.MaxRiskPerTrade)
	}
	if !cfg.Binance.MockMode {
		t.Error("mock mode not enabled by env")
	}
}
