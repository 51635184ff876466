// Package contract models option contract references and selects concrete
// contracts (strike + expiry) for a decision date, subject to liquidity
// constraints.
package contract

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Right is the option right.
type Right string

const (
	Call Right = "C"
	Put  Right = "P"
)

// Ref identifies one option contract. Two refs with identical fields always
// encode to the identical OCC-style string.
type Ref struct {
	Underlying string
	Expiry     time.Time
	Right      Right
	Strike     float64
}

// OCC renders the canonical identifier: UNDERLYING + yymmdd + C/P + strike
// in thousandths, zero-padded to eight digits.
func (r Ref) OCC() string {
	strikeInt := int64(math.Round(r.Strike * 1000))
	return fmt.Sprintf("%s%02d%02d%02d%s%08d",
		strings.ToUpper(r.Underlying),
		r.Expiry.Year()%100, int(r.Expiry.Month()), r.Expiry.Day(),
		r.Right, strikeInt)
}

// Parse decodes an OCC-style identifier back into a Ref. It is the inverse
// of OCC for any valid strike/expiry.
func Parse(occ string) (Ref, error) {
	// Tail is fixed width: yymmdd (6) + right (1) + strike (8).
	if len(occ) < 16 {
		return Ref{}, fmt.Errorf("contract: identifier too short: %q", occ)
	}
	under := occ[:len(occ)-15]
	tail := occ[len(occ)-15:]

	expiry, err := time.Parse("060102", tail[:6])
	if err != nil {
		return Ref{}, fmt.Errorf("contract: bad expiry in %q: %w", occ, err)
	}
	right := Right(tail[6:7])
	if right != Call && right != Put {
		return Ref{}, fmt.Errorf("contract: bad right in %q", occ)
	}
	strikeInt, err := strconv.ParseInt(tail[7:], 10, 64)
	if err != nil {
		return Ref{}, fmt.Errorf("contract: bad strike in %q: %w", occ, err)
	}
	return Ref{
		Underlying: under,
		Expiry:     expiry,
		Right:      right,
		Strike:     float64(strikeInt) / 1000,
	}, nil
}

// NextExpiry returns the first Friday strictly after anchor+2 calendar
// days. When anchor+2 already lands on a Friday the full week is added, so
// the offset is always positive.
func NextExpiry(anchor time.Time) time.Time {
	t := anchor.AddDate(0, 0, 2)
	ahead := (int(time.Friday) - int(t.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return t.AddDate(0, 0, ahead)
}
