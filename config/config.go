// Package config loads the live engine's settings from the environment,
// optionally seeded by a .env file. The backtester has its own YAML config;
// this one exists for daemons, where env vars are how deployments set knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every knob the live engine and its API server read.
type Config struct {
	// HTTP API port.
	Port int

	// Symbols to trade.
	Symbols []string
	// SectorSymbol is the optional confirmation series.
	SectorSymbol string

	// TickInterval between market data polls while the market is open.
	TickInterval time.Duration
	// EODCutoff is the wall-clock minute (exchange time) after which the
	// engine liquidates and stops opening positions, formatted HH:MM.
	EODCutoff string

	// BuyPct of available cash committed per stock entry.
	BuyPct float64
	// OptionPct of available cash committed per option leg.
	OptionPct float64

	// Entry floors.
	MinCashUSD       float64
	MinPriceUSD      float64
	MaxOpenPositions int

	// StopLossPct / TakeProfitPct close a stock position when its move
	// from cost crosses the threshold. Zero disables the check.
	StopLossPct   float64
	TakeProfitPct float64

	// Market data credentials.
	AlpacaKey    string
	AlpacaSecret string

	// RedisAddr enables the shared option-quote cache when set.
	RedisAddr string
	// DatabaseURL enables Postgres trade persistence when set.
	DatabaseURL string
}

// DefaultConfig is the paper-trading baseline.
var DefaultConfig = Config{
	Port:             19700,
	Symbols:          []string{"AAPL"},
	TickInterval:     5 * time.Second,
	EODCutoff:        "15:45",
	BuyPct:           0.25,
	OptionPct:        0.25,
	MinCashUSD:       100,
	MinPriceUSD:      2,
	MaxOpenPositions: 10,
}

// Load reads .env (when present) and applies environment overrides on top
// of the defaults. A missing .env is not an error; a malformed value is.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig

	var err error
	if err = intVar(&cfg.Port, "PORT"); err != nil {
		return nil, err
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = splitSymbols(v)
	}
	cfg.SectorSymbol = strings.ToUpper(strings.TrimSpace(os.Getenv("SECTOR_SYMBOL")))

	if err = durationSecVar(&cfg.TickInterval, "TICK_INTERVAL_SEC"); err != nil {
		return nil, err
	}
	if v := os.Getenv("EOD_CUTOFF_HHMM"); v != "" {
		if _, _, err := ParseCutoff(v); err != nil {
			return nil, err
		}
		cfg.EODCutoff = v
	}

	if err = floatVar(&cfg.BuyPct, "BUY_PCT_OF_CASH"); err != nil {
		return nil, err
	}
	if err = floatVar(&cfg.OptionPct, "OPTION_PCT_OF_CASH"); err != nil {
		return nil, err
	}
	if err = floatVar(&cfg.MinCashUSD, "MIN_CASH_USD"); err != nil {
		return nil, err
	}
	if err = floatVar(&cfg.MinPriceUSD, "MIN_PRICE_USD"); err != nil {
		return nil, err
	}
	if err = intVar(&cfg.MaxOpenPositions, "MAX_OPEN_POSITIONS"); err != nil {
		return nil, err
	}
	if err = floatVar(&cfg.StopLossPct, "STOP_LOSS_PCT"); err != nil {
		return nil, err
	}
	if err = floatVar(&cfg.TakeProfitPct, "TAKE_PROFIT_PCT"); err != nil {
		return nil, err
	}

	cfg.AlpacaKey = os.Getenv("ALPACA_KEY_ID")
	cfg.AlpacaSecret = os.Getenv("ALPACA_SECRET_KEY")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if cfg.BuyPct <= 0 || cfg.BuyPct > 1 {
		return nil, fmt.Errorf("BUY_PCT_OF_CASH out of range: %v", cfg.BuyPct)
	}
	if cfg.OptionPct <= 0 || cfg.OptionPct > 1 {
		return nil, fmt.Errorf("OPTION_PCT_OF_CASH out of range: %v", cfg.OptionPct)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("SYMBOLS is empty")
	}
	return &cfg, nil
}

// ParseCutoff splits an HH:MM string into hour and minute.
func ParseCutoff(v string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("EOD_CUTOFF_HHMM must be HH:MM, got %q", v)
	}
	hour, err = strconv.Atoi(parts[0])
	if err == nil {
		minute, err = strconv.Atoi(parts[1])
	}
	if err != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("EOD_CUTOFF_HHMM must be HH:MM, got %q", v)
	}
	return hour, minute, nil
}

func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intVar(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func floatVar(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func durationSecVar(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("%s must be a positive integer of seconds, got %q", key, v)
	}
	*dst = time.Duration(n) * time.Second
	return nil
}
