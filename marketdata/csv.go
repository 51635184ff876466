package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CSVProvider reads daily bars and option quotes from a local directory:
//
//	<root>/underlying/<SYMBOL>.csv   columns: date,open,high,low,close,volume
//	<root>/options/options.csv       columns: date,occ,open,high,low,close,volume
//
// Option rows are indexed once on first use.
type CSVProvider struct {
	root string

	optionsOnce bool
	options     map[string]Quote // "occ|date" -> quote
}

func NewCSVProvider(root string) *CSVProvider {
	return &CSVProvider{root: root}
}

func (p *CSVProvider) GetDailyBars(_ context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	path := filepath.Join(p.root, "underlying", strings.ToUpper(symbol)+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
		}
		return nil, fmt.Errorf("open underlying csv: %w", err)
	}
	defer f.Close()

	rows, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]bool)
	var bars []Bar
	for _, row := range rows {
		d, err := time.Parse("2006-01-02", row["date"])
		if err != nil {
			continue
		}
		if (!start.IsZero() && d.Before(start)) || (!end.IsZero() && d.After(end)) {
			continue
		}
		key := DateKey(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		bars = append(bars, Bar{
			Date:   d,
			Open:   atof(row["open"]),
			High:   atof(row["high"]),
			Low:    atof(row["low"]),
			Close:  atof(row["close"]),
			Volume: atoi(row["volume"]),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return bars, nil
}

// LatestPrice returns the newest close on file. It lets the live engine
// run replay sessions from a CSV directory.
func (p *CSVProvider) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	bars, err := p.GetDailyBars(ctx, symbol, time.Time{}, time.Time{})
	if err != nil {
		return 0, err
	}
	return bars[len(bars)-1].Close, nil
}

func (p *CSVProvider) GetOptionQuote(_ context.Context, occ string, day time.Time) (Quote, bool, error) {
	if !p.optionsOnce {
		if err := p.loadOptions(); err != nil {
			return Quote{}, false, err
		}
	}
	q, ok := p.options[occ+"|"+DateKey(day)]
	return q, ok, nil
}

func (p *CSVProvider) loadOptions() error {
	p.optionsOnce = true
	p.options = make(map[string]Quote)

	path := filepath.Join(p.root, "options", "options.csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No options file: every quote lookup is a gap.
			return nil
		}
		return fmt.Errorf("open options csv: %w", err)
	}
	defer f.Close()

	rows, err := readCSV(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, row := range rows {
		d, err := time.Parse("2006-01-02", row["date"])
		if err != nil {
			continue
		}
		occ := strings.TrimSpace(row["occ"])
		if occ == "" {
			continue
		}
		p.options[occ+"|"+DateKey(d)] = Quote{
			Close:  atof(row["close"]),
			Volume: atoi(row["volume"]),
		}
	}
	return nil
}

// readCSV returns rows as header-keyed maps.
func readCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	var out []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func atoi(s string) int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if v == 0 {
		// Some exports carry volume as a float.
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		v = int64(f)
	}
	return v
}
