package backtest

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"algotrade/ledger"
)

// SVGChartOptions sizes the rendered chart.
type SVGChartOptions struct {
	Width  int
	Height int
}

func (o SVGChartOptions) withDefaults() SVGChartOptions {
	if o.Width <= 0 {
		o.Width = 980
	}
	if o.Height <= 0 {
		o.Height = 520
	}
	return o
}

// RenderEquitySVG draws the run's equity curve with buy/sell markers on a
// self-contained SVG. No JS, no external fonts; the file opens anywhere.
func RenderEquitySVG(symbol string, equity []EquityPoint, trades []ledger.Trade, opt SVGChartOptions) ([]byte, error) {
	opt = opt.withDefaults()
	if len(equity) < 2 {
		return nil, fmt.Errorf("not enough equity points: %d", len(equity))
	}

	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, p := range equity {
		if p.Equity < minV {
			minV = p.Equity
		}
		if p.Equity > maxV {
			maxV = p.Equity
		}
	}
	if math.IsInf(minV, 0) || math.IsInf(maxV, 0) {
		return nil, fmt.Errorf("invalid equity range")
	}
	pad := (maxV - minV) * 0.05
	if pad <= 0 {
		pad = math.Abs(minV) * 0.02
		if pad == 0 {
			pad = 1
		}
	}
	minV -= pad
	maxV += pad

	// Layout
	w := float64(opt.Width)
	h := float64(opt.Height)
	mLeft := 80.0
	mRight := 20.0
	mTop := 24.0
	mBottom := 40.0
	plotW := w - mLeft - mRight
	plotH := h - mTop - mBottom
	if plotW <= 10 || plotH <= 10 {
		return nil, fmt.Errorf("invalid chart size")
	}

	valueToY := func(v float64) float64 {
		r := (v - minV) / (maxV - minV)
		r = math.Max(0, math.Min(1, r))
		return mTop + (1.0-r)*plotH
	}
	step := plotW / float64(len(equity))
	xAt := func(i int) float64 {
		return mLeft + (float64(i)+0.5)*step
	}
	dateIndex := make(map[string]int, len(equity))
	for i, p := range equity {
		dateIndex[p.Date.Format("2006-01-02")] = i
	}

	bg := "#0b1220"
	grid := "rgba(255,255,255,0.08)"
	line := "#38bdf8"
	buyCol := "#22c55e"
	sellCol := "#ef4444"
	txt := "rgba(255,255,255,0.85)"

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + strconv.Itoa(opt.Width) + `" height="` + strconv.Itoa(opt.Height) + `" viewBox="0 0 ` + strconv.Itoa(opt.Width) + ` ` + strconv.Itoa(opt.Height) + `">` + "\n")
	buf.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="` + bg + `"/>` + "\n")

	// Header
	firstD := equity[0].Date.Format("2006-01-02")
	lastD := equity[len(equity)-1].Date.Format("2006-01-02")
	title := strings.TrimSpace(symbol)
	if title == "" {
		title = "UNKNOWN"
	}
	buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="16" fill="` + txt + `" font-size="14" font-family="ui-monospace, Menlo, Monaco, Consolas, monospace">` +
		html.EscapeString(title) + ` equity  ` + html.EscapeString(firstD) + ` ~ ` + html.EscapeString(lastD) + `</text>` + "\n")

	// Grid: value lines (5)
	for k := 0; k <= 5; k++ {
		y := mTop + (float64(k)/5.0)*plotH
		buf.WriteString(`<line x1="` + fmtFloat(mLeft) + `" y1="` + fmtFloat(y) + `" x2="` + fmtFloat(mLeft+plotW) + `" y2="` + fmtFloat(y) + `" stroke="` + grid + `" stroke-width="1"/>` + "\n")
		v := maxV - (float64(k)/5.0)*(maxV-minV)
		buf.WriteString(`<text x="` + fmtFloat(6) + `" y="` + fmtFloat(y+4) + `" fill="` + txt + `" font-size="12" font-family="ui-monospace, Menlo, Monaco, Consolas, monospace">` +
			html.EscapeString(fmtValue(v)) + `</text>` + "\n")
	}

	// Equity polyline
	var path strings.Builder
	for i, p := range equity {
		if i == 0 {
			path.WriteString("M ")
		} else {
			path.WriteString(" L ")
		}
		path.WriteString(fmtFloat(xAt(i)))
		path.WriteString(" ")
		path.WriteString(fmtFloat(valueToY(p.Equity)))
	}
	buf.WriteString(`<path d="` + path.String() + `" fill="none" stroke="` + line + `" stroke-width="1.6"/>` + "\n")

	// High-water mark
	peak := equity[0].Equity
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
	}
	yPeak := valueToY(peak)
	buf.WriteString(`<line x1="` + fmtFloat(mLeft) + `" y1="` + fmtFloat(yPeak) + `" x2="` + fmtFloat(mLeft+plotW) + `" y2="` + fmtFloat(yPeak) + `" stroke="rgba(255,255,255,0.35)" stroke-width="1" stroke-dasharray="6 6"/>` + "\n")
	buf.WriteString(`<text x="` + fmtFloat(mLeft+6) + `" y="` + fmtFloat(yPeak-4) + `" fill="rgba(255,255,255,0.65)" font-size="12" font-family="ui-monospace, Menlo, Monaco, Consolas, monospace">peak ` +
		html.EscapeString(fmtValue(peak)) + `</text>` + "\n")

	// Trade markers on the curve
	for _, t := range trades {
		i, ok := dateIndex[t.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		col := buyCol
		if t.Side == ledger.Sell {
			col = sellCol
		}
		x := xAt(i)
		y := valueToY(equity[i].Equity)
		buf.WriteString(`<circle cx="` + fmtFloat(x) + `" cy="` + fmtFloat(y) + `" r="3.5" fill="` + col + `" />` + "\n")
	}

	// Footer dates
	buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="` + fmtFloat(mTop+plotH+mBottom-12) + `" fill="` + txt + `" font-size="12" font-family="ui-monospace, Menlo, Monaco, Consolas, monospace">` +
		html.EscapeString(firstD) + `</text>` + "\n")
	buf.WriteString(`<text x="` + fmtFloat(mLeft+plotW-70) + `" y="` + fmtFloat(mTop+plotH+mBottom-12) + `" fill="` + txt + `" font-size="12" font-family="ui-monospace, Menlo, Monaco, Consolas, monospace">` +
		html.EscapeString(lastD) + `</text>` + "\n")

	buf.WriteString(`</svg>` + "\n")
	return buf.Bytes(), nil
}

func fmtFloat(x float64) string {
	// stable compact formatting for SVG attributes
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func fmtValue(v float64) string {
	if math.Abs(v) >= 1000 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
