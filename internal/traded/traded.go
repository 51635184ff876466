// Package traded is the live paper-trading daemon: poll loop, HTTP API,
// and graceful shutdown on SIGINT/SIGTERM.
package traded

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"algotrade/api"
	"algotrade/broker"
	"algotrade/config"
	"algotrade/marketdata"
	"algotrade/store"
	"algotrade/trading"
)

// Run executes the daemon. Returns the process exit code.
func Run(args []string) int {
	flags := flag.NewFlagSet("traded", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	var (
		envFile  string
		provider string
		dataRoot string
		cash     float64
		port     int
	)
	flags.StringVar(&envFile, "config", "", ".env file path (default: ./.env when present)")
	flags.StringVar(&provider, "provider", "historical", "quote source: historical | csv")
	flags.StringVar(&dataRoot, "data-root", "data", "directory for the csv quote source")
	flags.Float64Var(&cash, "cash", 100_000, "paper account starting cash")
	flags.IntVar(&port, "port", 0, "HTTP port override")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	log.SetFlags(log.Ldate | log.Ltime)

	cfg, err := config.Load(envFile)
	if err != nil {
		log.Printf("[traded] config: %v", err)
		return 2
	}
	if port > 0 {
		cfg.Port = port
	}

	quotes, err := buildQuoter(provider, dataRoot, cfg)
	if err != nil {
		log.Printf("[traded] %v", err)
		return 2
	}

	paper := broker.NewPaper(cash)
	engine, err := trading.NewEngine(cfg, &markingQuoter{inner: quotes, paper: paper}, paper, log.Default())
	if err != nil {
		log.Printf("[traded] %v", err)
		return 2
	}

	server := api.NewServer(engine, cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Start(); err != nil {
			log.Printf("[traded] http server: %v", err)
		}
	}()
	go func() {
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("[traded] engine stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("[traded] shutting down")
	cancel()
	_ = server.Shutdown()

	if cfg.DatabaseURL != "" {
		if err := persistSession(cfg, engine, cash); err != nil {
			log.Printf("[traded] persist session: %v", err)
		}
	}
	log.Println("[traded] stopped")
	return 0
}

// persistSession writes the session's trades and equity marks to Postgres
// so a crashed or stopped daemon leaves an audit trail.
func persistSession(cfg *config.Config, engine *trading.Engine, initialCash float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	history := engine.EquityHistory()
	trades := engine.Trades()
	if len(history) == 0 && len(trades) == 0 {
		return nil
	}

	run := store.Run{
		ID:          uuid.NewString(),
		Symbol:      strings.Join(cfg.Symbols, ","),
		InitialCash: initialCash,
		CreatedAt:   time.Now().UTC(),
	}
	if len(history) > 0 {
		run.Start = history[0].Time
		run.End = history[len(history)-1].Time
	}
	if err := pg.CreateRun(ctx, run); err != nil {
		return err
	}
	for _, t := range trades {
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
	for _, s := range history {
		row := store.EquityRow{
			Date:   s.Time,
			Cash:   s.Cash,
			Equity: s.Equity,
		}
		row.PositionValue = s.Equity - s.Cash
		if err := pg.InsertEquityPoint(ctx, run.ID, row); err != nil {
			return err
		}
	}
	log.Printf("[traded] session %s persisted (%d trades, %d marks)", run.ID, len(trades), len(history))
	return nil
}

func buildQuoter(kind, dataRoot string, cfg *config.Config) (trading.Quoter, error) {
	switch kind {
	case "csv":
		return marketdata.NewCSVProvider(dataRoot), nil
	case "historical":
		if cfg.AlpacaKey == "" || cfg.AlpacaSecret == "" {
			return nil, fmt.Errorf("historical quotes need ALPACA_KEY_ID and ALPACA_SECRET_KEY")
		}
		return marketdata.NewHistoricalProvider(cfg.AlpacaKey, cfg.AlpacaSecret), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want historical or csv)", kind)
	}
}

// markingQuoter feeds every polled price into the paper broker so its fills
// execute at the price the engine decided on.
type markingQuoter struct {
	inner trading.Quoter
	paper *broker.Paper
}

func (q *markingQuoter) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	px, err := q.inner.LatestPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	q.paper.SetMark(symbol, px)
	return px, nil
}
