// Package signal derives trend/reversal signals from a rolling window of
// closing prices. One window is kept per instrument; signals are recomputed
// on every observation and never persisted.
package signal

import "math"

// Params controls the signal computation.
type Params struct {
	// Lookback is the SMA/StdDev window length.
	Lookback int `yaml:"lookback" json:"lookback"`
	// Consec is the number of consecutive same-direction moves required
	// for a rising/falling reading.
	Consec int `yaml:"consec" json:"consec"`
	// BandFloorPct is the minimum relative deviation |close-MA|/MA for a
	// band breach to count. Guards against narrow bands on low-priced
	// names. Ignored when MA <= 0.
	BandFloorPct float64 `yaml:"band_floor_pct" json:"band_floor_pct"`
	// DecelPct is the fractional shrink between the two latest absolute
	// deltas that flags fading momentum.
	DecelPct float64 `yaml:"decel_pct" json:"decel_pct"`
}

func (p Params) withDefaults() Params {
	if p.Lookback <= 0 {
		p.Lookback = 21
	}
	if p.Consec <= 0 {
		p.Consec = 2
	}
	if p.DecelPct <= 0 {
		p.DecelPct = 0.20
	}
	return p
}

// Signal is the per-bar reading for one instrument. A zero Signal means
// "insufficient data, do nothing" — callers must never treat it as an error.
type Signal struct {
	Rising       bool
	Falling      bool
	AboveBand    bool
	BelowBand    bool
	Decelerating bool
	Reversal     bool

	// LastMove is the sign of the most recent price delta (+1/0/-1).
	LastMove int
	// Ready reports that at least Lookback observations exist, i.e. the
	// band fields are meaningful.
	Ready bool
}

// Engine owns one price window per instrument. Not safe for concurrent use;
// partition by instrument key if workers are ever introduced.
type Engine struct {
	p       Params
	windows map[string]*window
}

func New(p Params) *Engine {
	return &Engine{p: p.withDefaults(), windows: make(map[string]*window)}
}

// Params returns the effective (defaulted) parameters.
func (e *Engine) Params() Params { return e.p }

// Observe appends price to the instrument's window and returns the signal
// for the updated window.
func (e *Engine) Observe(instrument string, price float64) Signal {
	w := e.windows[instrument]
	if w == nil {
		cap := e.p.Lookback
		if c := e.p.Consec + 3; c > cap {
			cap = c
		}
		w = newWindow(cap)
		e.windows[instrument] = w
	}
	w.push(price)
	return e.compute(w)
}

// Reset drops the window for one instrument.
func (e *Engine) Reset(instrument string) {
	delete(e.windows, instrument)
}

func (e *Engine) compute(w *window) Signal {
	var s Signal

	moves := w.moves()
	if len(moves) > 0 {
		s.LastMove = moves[len(moves)-1]
	}

	k := e.p.Consec
	if len(moves) >= k {
		s.Rising = allEqual(moves[len(moves)-k:], +1)
		s.Falling = allEqual(moves[len(moves)-k:], -1)
	}

	if len(moves) >= 2 {
		a, b := moves[len(moves)-2], moves[len(moves)-1]
		s.Reversal = (a == +1 && b == -1) || (a == -1 && b == +1)
	}

	// Momentum deceleration: the latest absolute delta shrank versus the
	// prior one by at least DecelPct.
	if deltas := w.deltas(); len(deltas) >= 2 && w.len() >= 4 {
		prev := math.Abs(deltas[len(deltas)-2])
		now := math.Abs(deltas[len(deltas)-1])
		if prev > 0 && (prev-now)/prev >= e.p.DecelPct {
			s.Decelerating = true
		}
	}

	if w.len() >= e.p.Lookback {
		s.Ready = true
		ma, sd := w.meanStd(e.p.Lookback)
		last := w.last()
		floorOK := func() bool {
			if ma <= 0 {
				return true
			}
			return math.Abs((last-ma)/ma) >= e.p.BandFloorPct
		}
		if last > ma+sd && floorOK() {
			s.AboveBand = true
		}
		if last < ma-sd && floorOK() {
			s.BelowBand = true
		}
	}

	return s
}

func allEqual(moves []int, v int) bool {
	for _, m := range moves {
		if m != v {
			return false
		}
	}
	return len(moves) > 0
}
