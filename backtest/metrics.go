package backtest

import (
	"math"

	"algotrade/ledger"
)

// tradingDaysPerYear is the annualization convention for CAGR and Sharpe.
const tradingDaysPerYear = 252

func summarize(cfg RunConfig, trades []ledger.Trade, equity []EquityPoint) Summary {
	sum := Summary{
		InitialCash: cfg.InitialCash,
		NumTrades:   len(trades),
	}
	if !cfg.Start.IsZero() {
		sum.Start = cfg.Start.Format("2006-01-02")
	}
	if !cfg.End.IsZero() {
		sum.End = cfg.End.Format("2006-01-02")
	}
	if len(equity) == 0 {
		return sum
	}

	first := equity[0].Equity
	last := equity[len(equity)-1].Equity
	sum.FinalEquity = round2(last)

	if first > 0 {
		totalReturn := last/first - 1
		sum.TotalReturnPct = round2(totalReturn * 100)
		periods := len(equity)
		cagr := math.Pow(1+totalReturn, tradingDaysPerYear/math.Max(1, float64(periods))) - 1
		sum.CAGRPct = round2(cagr * 100)
	}

	sum.MaxDrawdownPct = round2(maxDrawdown(equity) * 100)
	sum.Sharpe = round2(sharpe(periodReturns(equity)))
	sum.Wins, sum.Losses = winLoss(trades)
	return sum
}

// maxDrawdown is the largest peak-to-trough decline of the equity series,
// as a positive fraction.
func maxDrawdown(equity []EquityPoint) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func periodReturns(equity []EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i].Equity/prev-1)
	}
	return out
}

// sharpe annualizes mean/stddev of period returns by sqrt(252), using the
// sample standard deviation. A flat series scores zero.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return math.Sqrt(tradingDaysPerYear) * mean / std
}

// winLoss scores each asset by aggregate sell proceeds versus buy cost.
// An asset with more proceeds than cost is a win; still-open cost counts
// against it.
func winLoss(trades []ledger.Trade) (wins, losses int) {
	type flows struct{ buys, sells float64 }
	perAsset := make(map[string]*flows)
	for _, t := range trades {
		f := perAsset[t.Instrument]
		if f == nil {
			f = &flows{}
			perAsset[t.Instrument] = f
		}
		notional, _ := t.Notional.Float64()
		if t.Side == ledger.Buy {
			f.buys += notional
		} else {
			f.sells += notional
		}
	}
	for _, f := range perAsset {
		switch {
		case f.sells > f.buys:
			wins++
		case f.sells < f.buys:
			losses++
		}
	}
	return wins, losses
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
