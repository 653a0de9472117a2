package collector

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"PairSentinel/internal/model"
)

var nan = math.NaN()

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	Client    *http.Client
	BaseURL   string
	Interval  string            // e.g. 1h, 1d
	Range     string            // e.g. 730d, 2y
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(baseURL, proxyURL string, timeout time.Duration, symbolMap map[string]string) *YahooFetcher {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if symbolMap == nil {
		symbolMap = map[string]string{}
	}
	return &YahooFetcher{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Interval:  "1h",
		Range:     "730d",
		SymbolMap: symbolMap,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) {
		return nan
	}
	return value(vals[i])
}

// FetchCandles returns the candle history for symbol in ascending time order.
// Missing closes are kept as NaN; bars with no prices at all are dropped.
func (f *YahooFetcher) FetchCandles(ctx context.Context, symbol string) ([]model.Candle, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), url.QueryEscape(f.Interval), url.QueryEscape(f.Range))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	candles := make([]model.Candle, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		c := model.Candle{
			Symbol:  symbol,
			Period:  f.Interval,
			StartAt: ts,
			Open:    at(quote.Open, i),
			High:    at(quote.High, i),
			Low:     at(quote.Low, i),
			Close:   at(quote.Close, i),
		}
		if math.IsNaN(c.Open) && math.IsNaN(c.High) && math.IsNaN(c.Low) && math.IsNaN(c.Close) {
			continue // market closed
		}
		candles = append(candles, c)
	}

	sort.SliceStable(candles, func(i, j int) bool { return candles[i].StartAt < candles[j].StartAt })
	return candles, nil
}
