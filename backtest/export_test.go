package backtest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"algotrade/ledger"
)

func TestExportDirSchemas(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	res := Result{
		Symbol: "AAPL",
		Trades: []ledger.Trade{{
			Date:       day,
			Instrument: "AAPL",
			Asset:      ledger.Stock,
			Side:       ledger.Buy,
			Quantity:   decimal.NewFromInt(100),
			Price:      decimal.NewFromFloat(180.5),
			Notional:   decimal.NewFromInt(18050),
		}},
		Equity: []EquityPoint{
			{Date: day, Cash: 81950, PositionValue: 18050, Equity: 100000},
			{Date: day.AddDate(0, 0, 1), Cash: 81950, PositionValue: 18500, Equity: 100450},
		},
		Summary: Summary{Start: "2024-03-04", End: "2024-03-05", InitialCash: 100000,
			FinalEquity: 100450, TotalReturnPct: 0.45, NumTrades: 1},
	}

	if err := ExportDir(dir, res); err != nil {
		t.Fatalf("ExportDir: %v", err)
	}

	trades := readCSVFile(t, filepath.Join(dir, "trades.csv"))
	wantTradeHeader := []string{"date", "instrument", "asset_kind", "side", "quantity", "price", "notional"}
	assertRow(t, "trades header", trades[0], wantTradeHeader)
	if len(trades) != 2 {
		t.Fatalf("trades rows = %d, want 2", len(trades))
	}
	assertRow(t, "trade row", trades[1], []string{"2024-03-04", "AAPL", "stock", "buy", "100", "180.5", "18050"})

	equity := readCSVFile(t, filepath.Join(dir, "equity.csv"))
	assertRow(t, "equity header", equity[0], []string{"date", "equity"})
	if len(equity) != 3 {
		t.Fatalf("equity rows = %d, want 3", len(equity))
	}
	assertRow(t, "equity row", equity[1], []string{"2024-03-04", "100000"})

	summary := readCSVFile(t, filepath.Join(dir, "summary.csv"))
	wantSummaryHeader := []string{"start", "end", "initial_cash", "final_equity", "total_return_pct",
		"cagr_pct", "max_drawdown_pct", "sharpe", "wins", "losses", "num_trades"}
	assertRow(t, "summary header", summary[0], wantSummaryHeader)
	if len(summary) != 2 {
		t.Fatalf("summary rows = %d, want 2", len(summary))
	}
	if summary[1][0] != "2024-03-04" || summary[1][10] != "1" {
		t.Errorf("summary row = %v", summary[1])
	}
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func assertRow(t *testing.T, label string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: %v, want %v", label, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s[%d] = %q, want %q", label, i, got[i], want[i])
		}
	}
}
