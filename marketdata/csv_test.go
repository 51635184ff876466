package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCSVProviderBars(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "underlying", "AAPL.csv"),
		"date,open,high,low,close,volume\n"+
			"2024-01-03,12,13,11,12.5,300\n"+
			"2024-01-02,11,12,10,11.5,200\n"+
			"2024-01-02,11,12,10,11.5,200\n"+ // duplicate date, dropped
			"2024-01-01,10,11,9,10.5,100\n")

	p := NewCSVProvider(root)
	bars, err := p.GetDailyBars(context.Background(), "aapl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 3 {
		t.Fatalf("want 3 deduped bars, got %d", len(bars))
	}
	if !bars[0].Date.Before(bars[1].Date) || !bars[1].Date.Before(bars[2].Date) {
		t.Fatalf("bars not sorted: %v", bars)
	}
	if bars[1].Close != 11.5 || bars[1].Volume != 200 {
		t.Fatalf("bad bar: %+v", bars[1])
	}
}

func TestCSVProviderRangeFilterAndMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "underlying", "AAPL.csv"),
		"date,open,high,low,close,volume\n"+
			"2024-01-01,10,11,9,10.5,100\n"+
			"2024-02-01,11,12,10,11.5,100\n")

	p := NewCSVProvider(root)
	start, _ := time.Parse("2006-01-02", "2024-01-15")
	bars, err := p.GetDailyBars(context.Background(), "AAPL", start, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 {
		t.Fatalf("range filter failed: %v", bars)
	}

	if _, err := p.GetDailyBars(context.Background(), "MSFT", time.Time{}, time.Time{}); err == nil {
		t.Fatal("missing symbol should error")
	}
}

func TestCSVProviderOptionQuotes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "options", "options.csv"),
		"date,occ,open,high,low,close,volume\n"+
			"2024-01-02,AAPL240105C00190000,1.0,1.2,0.9,1.1,120\n")

	p := NewCSVProvider(root)
	day, _ := time.Parse("2006-01-02", "2024-01-02")
	q, ok, err := p.GetOptionQuote(context.Background(), "AAPL240105C00190000", day)
	if err != nil || !ok {
		t.Fatalf("want quote, got ok=%v err=%v", ok, err)
	}
	if q.Close != 1.1 || q.Volume != 120 {
		t.Fatalf("bad quote: %+v", q)
	}

	_, ok, err = p.GetOptionQuote(context.Background(), "AAPL240105P00190000", day)
	if err != nil || ok {
		t.Fatalf("absent quote must be a gap, not an error: ok=%v err=%v", ok, err)
	}
}

func TestMemoryCacheWrapsPort(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "options", "options.csv"),
		"date,occ,open,high,low,close,volume\n"+
			"2024-01-02,AAPL240105C00190000,1.0,1.2,0.9,1.1,120\n")

	inner := NewCSVProvider(root)
	cached := WithQuoteCache(inner, NewMemoryCache())
	day, _ := time.Parse("2006-01-02", "2024-01-02")

	for i := 0; i < 2; i++ {
		q, ok, err := cached.GetOptionQuote(context.Background(), "AAPL240105C00190000", day)
		if err != nil || !ok || q.Volume != 120 {
			t.Fatalf("pass %d: q=%+v ok=%v err=%v", i, q, ok, err)
		}
	}
	// Negative result is cached too.
	if _, ok, _ := cached.GetOptionQuote(context.Background(), "MISSING", day); ok {
		t.Fatal("unexpected quote for missing contract")
	}
	if _, present, hit := cached.cache.Get(context.Background(), "MISSING", day); !hit || present {
		t.Fatal("absent quote should be cached as a miss entry")
	}
}
