// Package btctl is the backtest command. It assembles a market data
// provider, runs the strategy over the requested window, prints the
// summary, and optionally exports CSVs and persists the run.
package btctl

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"algotrade/backtest"
	"algotrade/marketdata"
	"algotrade/store"
)

// Run executes the backtest subcommand. Returns the process exit code:
// 0 on success, 1 when no usable data was found, 2 on bad flags.
func Run(args []string) int {
	flags := flag.NewFlagSet("backtest", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	var (
		symbolList   string
		startStr     string
		endStr       string
		cash         float64
		provider     string
		dataRoot     string
		sectorSymbol string
		outDir       string
		configPath   string
		pgDSN        string
		strikePct    float64
	)

	flags.StringVar(&symbolList, "symbol", "", "comma-separated symbols to run (required unless set in -config)")
	flags.StringVar(&startStr, "start", "", "window start, YYYY-MM-DD")
	flags.StringVar(&endStr, "end", "", "window end, YYYY-MM-DD")
	flags.Float64Var(&cash, "cash", 0, "initial cash (default 100000)")
	flags.StringVar(&provider, "provider", "historical", "market data source: historical | csv")
	flags.StringVar(&dataRoot, "data-root", "data", "directory for the csv provider")
	flags.StringVar(&sectorSymbol, "sector-symbol", "", "optional sector ETF for confirmation")
	flags.StringVar(&outDir, "out", "", "directory for trades/equity/summary CSV export")
	flags.StringVar(&configPath, "config", "", "YAML run config (flags override it)")
	flags.Float64Var(&strikePct, "strike-pct", 0, "strike target offset from spot (0 = ATM)")
	flags.StringVar(&pgDSN, "pg-dsn", os.Getenv("DATABASE_URL"), "postgres DSN for run persistence")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg := backtest.DefaultRunConfig()
	if configPath != "" {
		var err error
		cfg, err = backtest.LoadRunConfig(configPath)
		if err != nil {
			log.Printf("[backtest] %v", err)
			return 2
		}
	}

	if symbolList != "" {
		cfg.Symbols = splitSymbols(symbolList)
	}
	if sectorSymbol != "" {
		cfg.SectorSymbol = strings.ToUpper(sectorSymbol)
	}
	if cash > 0 {
		cfg.InitialCash = cash
	}
	if strikePct != 0 {
		cfg.StrikeTargetPct = strikePct
	}
	if startStr != "" {
		t, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			log.Printf("[backtest] invalid -start: %v", err)
			return 2
		}
		cfg.Start = t
	}
	if endStr != "" {
		t, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			log.Printf("[backtest] invalid -end: %v", err)
			return 2
		}
		cfg.End = t
	}
	if len(cfg.Symbols) == 0 {
		log.Print("[backtest] no symbols: pass -symbol or set them in -config")
		return 2
	}
	if cfg.Start.IsZero() {
		log.Print("[backtest] -start is required")
		return 2
	}

	md, err := buildProvider(provider, dataRoot)
	if err != nil {
		log.Printf("[backtest] %v", err)
		return 2
	}

	ctx := context.Background()
	results, err := backtest.NewRunner(md).Run(ctx, cfg)
	if err != nil {
		log.Printf("[backtest] %v", err)
		return 1
	}

	printer := message.NewPrinter(language.English)
	anyData := false
	for _, res := range results {
		if res.Error != "" {
			log.Printf("[backtest] %s: %s", res.Symbol, res.Error)
			continue
		}
		anyData = true
		printSummary(printer, res)

		if outDir != "" {
			dir := outDir
			if len(results) > 1 {
				dir = fmt.Sprintf("%s/%s", outDir, res.Symbol)
			}
			if err := backtest.ExportDir(dir, res); err != nil {
				log.Printf("[backtest] export %s: %v", res.Symbol, err)
			} else {
				log.Printf("[backtest] wrote %s/{trades,equity,summary}.csv", dir)
			}
		}
	}
	if !anyData {
		return 1
	}

	if pgDSN != "" {
		if err := persist(ctx, pgDSN, cfg, results); err != nil {
			log.Printf("[backtest] persist: %v", err)
		}
	}
	return 0
}

func buildProvider(kind, dataRoot string) (marketdata.Port, error) {
	switch kind {
	case "csv":
		return marketdata.NewCSVProvider(dataRoot), nil
	case "historical":
		key, secret := os.Getenv("ALPACA_KEY_ID"), os.Getenv("ALPACA_SECRET_KEY")
		if key == "" || secret == "" {
			return nil, fmt.Errorf("historical provider needs ALPACA_KEY_ID and ALPACA_SECRET_KEY")
		}
		md := marketdata.Port(marketdata.NewHistoricalProvider(key, secret))
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			cache := marketdata.NewRedisCache(addr, 0)
			if err := cache.Ping(context.Background()); err != nil {
				log.Printf("[backtest] redis cache unavailable, continuing without: %v", err)
			} else {
				md = marketdata.WithQuoteCache(md, cache)
			}
		}
		return md, nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want historical or csv)", kind)
	}
}

func printSummary(p *message.Printer, res backtest.Result) {
	s := res.Summary
	p.Printf("=== %s  %s .. %s ===\n", res.Symbol, s.Start, s.End)
	p.Printf("  initial cash   %12.2f\n", s.InitialCash)
	p.Printf("  final equity   %12.2f\n", s.FinalEquity)
	p.Printf("  total return   %11.2f%%\n", s.TotalReturnPct)
	p.Printf("  CAGR           %11.2f%%\n", s.CAGRPct)
	p.Printf("  max drawdown   %11.2f%%\n", s.MaxDrawdownPct)
	p.Printf("  sharpe         %12.2f\n", s.Sharpe)
	p.Printf("  trades         %12d  (%d wins / %d losses)\n", s.NumTrades, s.Wins, s.Losses)
	if n := len(res.Skips); n > 0 {
		p.Printf("  skipped actions %11d\n", n)
	}
}

func persist(ctx context.Context, dsn string, cfg backtest.RunConfig, results []backtest.Result) error {
	pg, err := store.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer pg.Close()

	for _, res := range results {
		if res.Error != "" {
			continue
		}
		run := store.Run{
			ID:          uuid.NewString(),
			Symbol:      res.Symbol,
			Start:       cfg.Start,
			End:         cfg.End,
			InitialCash: cfg.InitialCash,
			CreatedAt:   time.Now().UTC(),
		}
		if err := pg.CreateRun(ctx, run); err != nil {
			return err
		}
		for _, t := range res.Trades {
			qty, _ := t.Quantity.Float64()
			px, _ := t.Price.Float64()
			notional, _ := t.Notional.Float64()
			row := store.TradeRow{
				Date:       t.Date,
				Instrument: t.Instrument,
				Asset:      string(t.Asset),
				Side:       string(t.Side),
				Quantity:   qty,
				Price:      px,
				Notional:   notional,
			}
			if err := pg.InsertTrade(ctx, run.ID, row); err != nil {
				return err
			}
		}
		for _, pt := range res.Equity {
			row := store.EquityRow{
				Date:          pt.Date,
				Cash:          pt.Cash,
				PositionValue: pt.PositionValue,
				Equity:        pt.Equity,
			}
			if err := pg.InsertEquityPoint(ctx, run.ID, row); err != nil {
				return err
			}
		}
		log.Printf("[backtest] run %s persisted (%d trades, %d marks)", run.ID, len(res.Trades), len(res.Equity))
	}
	return nil
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
