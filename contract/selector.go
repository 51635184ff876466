package contract

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"algotrade/marketdata"
)

// ErrNoContract reports that no probed strike met the liquidity floor.
// Callers skip the options leg for this bar; they never retry synchronously.
var ErrNoContract = errors.New("contract: no candidate met the volume floor")

// SelectorParams bound the candidate search.
type SelectorParams struct {
	// MinVolume is the daily-volume floor a candidate must meet.
	MinVolume int64 `yaml:"min_volume" json:"min_volume"`
	// SearchRadius is how far from the target strike to probe, in whole
	// strike units, in both directions.
	SearchRadius int `yaml:"search_radius" json:"search_radius"`
}

func (p SelectorParams) withDefaults() SelectorParams {
	if p.MinVolume <= 0 {
		p.MinVolume = 50
	}
	if p.SearchRadius <= 0 {
		p.SearchRadius = 10
	}
	return p
}

// Selector picks option contracts against a market-data port. Wrap the port
// with marketdata.WithQuoteCache to keep probing to one call per candidate
// per day.
type Selector struct {
	md marketdata.Port
	p  SelectorParams
}

func NewSelector(md marketdata.Port, p SelectorParams) *Selector {
	return &Selector{md: md, p: p.withDefaults()}
}

// Select returns the contract nearest to spot*(1±targetPct) whose quote on
// the decision date shows volume >= MinVolume. Ties go to the smaller
// distance, then the lower strike.
func (s *Selector) Select(ctx context.Context, underlying string, spot float64, right Right, targetPct float64, day time.Time) (Ref, error) {
	target := spot * (1 + targetPct)
	if right == Put {
		target = spot * (1 - targetPct)
	}
	expiry := NextExpiry(day)

	type candidate struct {
		dist   float64
		strike float64
	}
	seen := make(map[float64]bool)
	var cands []candidate
	for off := 0; off <= s.p.SearchRadius; off++ {
		for _, sgn := range []float64{+1, -1} {
			strike := math.Max(0.5, round2(target+sgn*float64(off)))
			if seen[strike] {
				continue
			}
			seen[strike] = true
			cands = append(cands, candidate{dist: math.Abs(strike - target), strike: strike})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].strike < cands[j].strike
	})

	for _, c := range cands {
		ref := Ref{Underlying: underlying, Expiry: expiry, Right: right, Strike: c.strike}
		q, ok, err := s.md.GetOptionQuote(ctx, ref.OCC(), day)
		if err != nil {
			// Port failure on one candidate is a gap for that probe only.
			continue
		}
		if !ok {
			continue
		}
		if q.Volume >= s.p.MinVolume && q.Close > 0 && !math.IsNaN(q.Close) {
			return ref, nil
		}
	}
	return Ref{}, ErrNoContract
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
