package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const (
	dataBaseURL    = "https://data.alpaca.markets"
	stockBarsPath  = "/v2/stocks/%s/bars"
	optionBarsPath = "/v1beta1/options/bars"
)

// HistoricalProvider pulls daily bars and option bars from the Alpaca
// market-data REST API.
type HistoricalProvider struct {
	client  *http.Client
	baseURL string
	key     string
	secret  string
}

func NewHistoricalProvider(key, secret string) *HistoricalProvider {
	return &HistoricalProvider{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: dataBaseURL,
		key:     key,
		secret:  secret,
	}
}

// WithBaseURL overrides the API host, for tests and proxies.
func (p *HistoricalProvider) WithBaseURL(u string) *HistoricalProvider {
	p.baseURL = u
	return p
}

type barJSON struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume int64     `json:"v"`
}

type stockBarsResp struct {
	Bars          []barJSON `json:"bars"`
	NextPageToken string    `json:"next_page_token"`
}

type optionBarsResp struct {
	Bars map[string][]barJSON `json:"bars"`
}

func (p *HistoricalProvider) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	q := url.Values{}
	q.Set("timeframe", "1Day")
	q.Set("start", start.Format("2006-01-02"))
	q.Set("end", end.Format("2006-01-02"))
	q.Set("limit", "10000")
	q.Set("adjustment", "split")

	var bars []Bar
	seen := make(map[string]bool)
	for {
		var resp stockBarsResp
		u := p.baseURL + fmt.Sprintf(stockBarsPath, url.PathEscape(symbol)) + "?" + q.Encode()
		if err := p.getJSON(ctx, u, &resp); err != nil {
			return nil, fmt.Errorf("stock bars %s: %w", symbol, err)
		}
		for _, b := range resp.Bars {
			d := b.Time.UTC().Truncate(24 * time.Hour)
			if seen[DateKey(d)] {
				continue
			}
			seen[DateKey(d)] = true
			bars = append(bars, Bar{Date: d, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
		}
		if resp.NextPageToken == "" {
			break
		}
		q.Set("page_token", resp.NextPageToken)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return bars, nil
}

func (p *HistoricalProvider) GetOptionQuote(ctx context.Context, occ string, day time.Time) (Quote, bool, error) {
	q := url.Values{}
	q.Set("symbols", occ)
	q.Set("timeframe", "1Day")
	q.Set("start", day.Format("2006-01-02"))
	q.Set("end", day.AddDate(0, 0, 1).Format("2006-01-02"))
	q.Set("limit", "2")

	var resp optionBarsResp
	u := p.baseURL + optionBarsPath + "?" + q.Encode()
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return Quote{}, false, fmt.Errorf("option bars %s: %w", occ, err)
	}
	for _, b := range resp.Bars[occ] {
		if DateKey(b.Time.UTC()) == DateKey(day) {
			return Quote{Close: b.Close, Volume: b.Volume}, true, nil
		}
	}
	return Quote{}, false, nil
}

type latestTradeResp struct {
	Trade struct {
		Price float64 `json:"p"`
	} `json:"trade"`
}

// LatestPrice returns the most recent trade price, for the live poll loop.
func (p *HistoricalProvider) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	var resp latestTradeResp
	u := p.baseURL + fmt.Sprintf("/v2/stocks/%s/trades/latest", url.PathEscape(symbol))
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return 0, fmt.Errorf("latest trade %s: %w", symbol, err)
	}
	if resp.Trade.Price <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return resp.Trade.Price, nil
}

func (p *HistoricalProvider) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("APCA-API-KEY-ID", p.key)
	req.Header.Set("APCA-API-SECRET-KEY", p.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
