package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("nonexistent.env")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickInterval != 5*time.Second || cfg.BuyPct != 0.25 || cfg.Port != 19700 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "aapl, msft ,")
	t.Setenv("TICK_INTERVAL_SEC", "30")
	t.Setenv("BUY_PCT_OF_CASH", "0.1")
	t.Setenv("MAX_OPEN_POSITIONS", "3")
	t.Setenv("EOD_CUTOFF_HHMM", "15:30")

	cfg, err := Load("nonexistent.env")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "AAPL" || cfg.Symbols[1] != "MSFT" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.TickInterval != 30*time.Second {
		t.Errorf("tick = %v", cfg.TickInterval)
	}
	if cfg.BuyPct != 0.1 || cfg.MaxOpenPositions != 3 || cfg.EODCutoff != "15:30" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("BUY_PCT_OF_CASH", "1.5")
	if _, err := Load("nonexistent.env"); err == nil {
		t.Error("want error for pct > 1")
	}
	t.Setenv("BUY_PCT_OF_CASH", "0.25")

	t.Setenv("TICK_INTERVAL_SEC", "zero")
	if _, err := Load("nonexistent.env"); err == nil {
		t.Error("want error for non-numeric interval")
	}
	t.Setenv("TICK_INTERVAL_SEC", "5")

	t.Setenv("EOD_CUTOFF_HHMM", "25:00")
	if _, err := Load("nonexistent.env"); err == nil {
		t.Error("want error for impossible cutoff")
	}
}

func TestParseCutoff(t *testing.T) {
	h, m, err := ParseCutoff("15:45")
	if err != nil || h != 15 || m != 45 {
		t.Errorf("ParseCutoff = %d:%d, %v", h, m, err)
	}
	for _, bad := range []string{"", "15", "15:60", "aa:bb", "-1:00"} {
		if _, _, err := ParseCutoff(bad); err == nil {
			t.Errorf("ParseCutoff(%q) accepted", bad)
		}
	}
}
