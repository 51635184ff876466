package backtest

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"algotrade/ledger"
)

func TestRenderEquitySVG(t *testing.T) {
	equity := eqPoints(100000, 101000, 99500, 102000)
	trades := []ledger.Trade{
		{Date: equity[1].Date, Instrument: "AAPL", Side: ledger.Buy,
			Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100)},
		{Date: equity[3].Date, Instrument: "AAPL", Side: ledger.Sell,
			Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(105)},
	}

	svg, err := RenderEquitySVG("AAPL", equity, trades, SVGChartOptions{})
	if err != nil {
		t.Fatalf("RenderEquitySVG: %v", err)
	}
	out := string(svg)
	if !strings.HasPrefix(out, `<?xml version="1.0"`) || !strings.Contains(out, "</svg>") {
		t.Error("not a complete SVG document")
	}
	if !strings.Contains(out, "AAPL equity") {
		t.Error("missing title")
	}
	if strings.Count(out, "<circle") != 2 {
		t.Errorf("want 2 trade markers, got %d", strings.Count(out, "<circle"))
	}
	if !strings.Contains(out, "<path d=\"M ") {
		t.Error("missing equity polyline")
	}
}

func TestRenderEquitySVGRejectsShortSeries(t *testing.T) {
	if _, err := RenderEquitySVG("AAPL", eqPoints(100000), nil, SVGChartOptions{}); err == nil {
		t.Error("want error for a single point")
	}
	if _, err := RenderEquitySVG("AAPL", nil, nil, SVGChartOptions{}); err == nil {
		t.Error("want error for empty series")
	}
}

func TestRenderEquitySVGFlatSeries(t *testing.T) {
	// A flat curve still needs a nonzero vertical range.
	svg, err := RenderEquitySVG("AAPL", eqPoints(100000, 100000, 100000), nil, SVGChartOptions{Width: 400, Height: 200})
	if err != nil {
		t.Fatalf("RenderEquitySVG: %v", err)
	}
	if !strings.Contains(string(svg), `width="400"`) {
		t.Error("options not applied")
	}
}
