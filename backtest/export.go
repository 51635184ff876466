package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"algotrade/ledger"
)

// WriteResultsJSON emits the full results as indented JSON.
func WriteResultsJSON(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// ExportDir writes trades.csv, equity.csv and summary.csv for one result
// into dir. The column schemas are stable; reporting tools parse them.
func ExportDir(dir string, res Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeCSV(filepath.Join(dir, "trades.csv"), tradeRows(res.Trades)); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, "equity.csv"), equityRows(res.Equity)); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, "summary.csv"), summaryRows(res.Summary)); err != nil {
		return err
	}
	if len(res.Equity) >= 2 {
		svg, err := RenderEquitySVG(res.Symbol, res.Equity, res.Trades, SVGChartOptions{})
		if err != nil {
			return fmt.Errorf("render equity chart: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "equity.svg"), svg, 0o644); err != nil {
			return fmt.Errorf("write equity chart: %w", err)
		}
	}
	return nil
}

func tradeRows(trades []ledger.Trade) [][]string {
	rows := [][]string{{"date", "instrument", "asset_kind", "side", "quantity", "price", "notional"}}
	for _, t := range trades {
		rows = append(rows, []string{
			t.Date.Format("2006-01-02"),
			t.Instrument,
			string(t.Asset),
			string(t.Side),
			t.Quantity.String(),
			t.Price.String(),
			t.Notional.String(),
		})
	}
	return rows
}

func equityRows(equity []EquityPoint) [][]string {
	rows := [][]string{{"date", "equity"}}
	for _, p := range equity {
		rows = append(rows, []string{
			p.Date.Format("2006-01-02"),
			ftoa(p.Equity),
		})
	}
	return rows
}

func summaryRows(s Summary) [][]string {
	return [][]string{
		{"start", "end", "initial_cash", "final_equity", "total_return_pct",
			"cagr_pct", "max_drawdown_pct", "sharpe", "wins", "losses", "num_trades"},
		{s.Start, s.End, ftoa(s.InitialCash), ftoa(s.FinalEquity), ftoa(s.TotalReturnPct),
			ftoa(s.CAGRPct), ftoa(s.MaxDrawdownPct), ftoa(s.Sharpe),
			strconv.Itoa(s.Wins), strconv.Itoa(s.Losses), strconv.Itoa(s.NumTrades)},
	}
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func ftoa(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
