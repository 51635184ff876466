package signal

import "math"

// window is a bounded FIFO of recent prices. Oldest entries drop once
// capacity is exceeded.
type window struct {
	prices []float64
	cap    int
}

func newWindow(cap int) *window {
	if cap < 2 {
		cap = 2
	}
	return &window{cap: cap}
}

func (w *window) push(price float64) {
	w.prices = append(w.prices, price)
	if len(w.prices) > w.cap {
		w.prices = w.prices[len(w.prices)-w.cap:]
	}
}

func (w *window) len() int { return len(w.prices) }

func (w *window) last() float64 {
	if len(w.prices) == 0 {
		return 0
	}
	return w.prices[len(w.prices)-1]
}

func (w *window) deltas() []float64 {
	if len(w.prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(w.prices)-1)
	for i := 1; i < len(w.prices); i++ {
		out = append(out, w.prices[i]-w.prices[i-1])
	}
	return out
}

// moves returns the sign of each consecutive delta. Zero deltas yield 0 and
// break both rising and falling streaks.
func (w *window) moves() []int {
	deltas := w.deltas()
	out := make([]int, len(deltas))
	for i, d := range deltas {
		switch {
		case d > 0:
			out[i] = +1
		case d < 0:
			out[i] = -1
		}
	}
	return out
}

// meanStd returns the mean and population standard deviation of the last n
// prices. Callers must ensure n <= len.
func (w *window) meanStd(n int) (mean, std float64) {
	tail := w.prices[len(w.prices)-n:]
	for _, p := range tail {
		mean += p
	}
	mean /= float64(n)
	var ss float64
	for _, p := range tail {
		d := p - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n))
}
