package backtest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"algotrade/contract"
	"algotrade/signal"
	"algotrade/sizing"
)

// ExitPolicy controls what the reversal rule does to an open stock
// position.
type ExitPolicy string

const (
	// ExitHalve sells half the position, the engine's historical default.
	ExitHalve ExitPolicy = "halve"
	// ExitFull liquidates the position.
	ExitFull ExitPolicy = "full"
)

// RunConfig parameterizes one run over one or more symbols.
type RunConfig struct {
	Symbols      []string
	SectorSymbol string // optional sector ETF for confirmation
	Start        time.Time
	End          time.Time
	InitialCash  float64

	Signal   signal.Params
	Selector contract.SelectorParams
	Limits   sizing.Limits

	// Cash fractions per entry.
	StockPct  float64
	OptionPct float64
	// StrikeTargetPct offsets the strike target from spot (0 = ATM).
	StrikeTargetPct float64

	ExitPolicy ExitPolicy

	// WarmupDays of extra history loaded before Start so the SMA window
	// is primed on the first in-range bar.
	WarmupDays int
}

// DefaultRunConfig mirrors the knobs the strategy has always shipped with.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		InitialCash: 100_000,
		Signal:      signal.Params{Lookback: 21, Consec: 2, DecelPct: 0.20},
		Selector:    contract.SelectorParams{MinVolume: 50, SearchRadius: 10},
		Limits:      sizing.Limits{}.WithDefaults(),
		StockPct:    0.25,
		OptionPct:   0.25,
		ExitPolicy:  ExitHalve,
		WarmupDays:  200,
	}
}

type yamlConfig struct {
	Backtest struct {
		Start           string   `yaml:"start"`
		End             string   `yaml:"end"`
		InitialCash     float64  `yaml:"initial_cash"`
		Symbols         []string `yaml:"symbols"`
		SectorSymbol    string   `yaml:"sector_symbol"`
		StockPct        float64  `yaml:"stock_pct"`
		OptionPct       float64  `yaml:"option_pct"`
		StrikeTargetPct float64  `yaml:"strike_target_pct"`
		ExitPolicy      string   `yaml:"exit_policy"`
		WarmupDays      int      `yaml:"warmup_days"`
	} `yaml:"backtest"`

	Signal   signal.Params           `yaml:"signal"`
	Selector contract.SelectorParams `yaml:"selector"`
	Limits   sizing.Limits           `yaml:"limits"`
}

// LoadRunConfig reads a YAML file over the defaults.
func LoadRunConfig(path string) (RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return RunConfig{}, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := DefaultRunConfig()
	b := yc.Backtest
	if b.InitialCash > 0 {
		cfg.InitialCash = b.InitialCash
	}
	if len(b.Symbols) > 0 {
		cfg.Symbols = b.Symbols
	}
	cfg.SectorSymbol = b.SectorSymbol
	if b.StockPct > 0 && b.StockPct <= 1 {
		cfg.StockPct = b.StockPct
	}
	if b.OptionPct > 0 && b.OptionPct <= 1 {
		cfg.OptionPct = b.OptionPct
	}
	if b.StrikeTargetPct != 0 {
		cfg.StrikeTargetPct = b.StrikeTargetPct
	}
	switch ExitPolicy(b.ExitPolicy) {
	case "", ExitHalve:
		cfg.ExitPolicy = ExitHalve
	case ExitFull:
		cfg.ExitPolicy = ExitFull
	default:
		return RunConfig{}, fmt.Errorf("unknown exit_policy: %q", b.ExitPolicy)
	}
	if b.WarmupDays > 0 {
		cfg.WarmupDays = b.WarmupDays
	}

	if yc.Signal.Lookback > 0 || yc.Signal.Consec > 0 || yc.Signal.BandFloorPct > 0 || yc.Signal.DecelPct > 0 {
		cfg.Signal = yc.Signal
	}
	if yc.Selector.MinVolume > 0 || yc.Selector.SearchRadius > 0 {
		cfg.Selector = yc.Selector
	}
	if yc.Limits.MinCashUSD > 0 || yc.Limits.MinPriceUSD > 0 || yc.Limits.MaxOpenPositions > 0 {
		cfg.Limits = yc.Limits.WithDefaults()
	}

	if b.Start != "" {
		t, err := time.Parse("2006-01-02", b.Start)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid backtest.start: %w", err)
		}
		cfg.Start = t
	}
	if b.End != "" {
		t, err := time.Parse("2006-01-02", b.End)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid backtest.end: %w", err)
		}
		cfg.End = t
	}
	return cfg, nil
}
