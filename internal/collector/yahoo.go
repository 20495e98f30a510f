package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

var yahooIntervals = map[model.Timeframe]string{
	model.Timeframe1Min:  "1m",
	model.Timeframe15Min: "15m",
	model.Timeframe1H:    "60m",
	model.Timeframe1D:    "1d",
}

// YahooProvider reads the public Yahoo Finance chart API.
type YahooProvider struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // internal symbol -> Yahoo ticker
}

// NewYahooProvider creates a Yahoo Finance provider.
func NewYahooProvider(proxyURL string, timeout time.Duration) *YahooProvider {
	return &YahooProvider{
		BaseURL: yahooBaseURL,
		Client:  newHTTPClient(proxyURL, timeout),
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
}

func (p *YahooProvider) Name() string { return ProviderYahoo }

func (p *YahooProvider) ticker(symbol string) string {
	if mapped, ok := p.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func valueAt(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func (p *YahooProvider) FetchHistoricalData(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) (model.PriceSeries, error) {
	interval, err := mapTimeframe(ProviderYahoo, yahooIntervals, tf)
	if err != nil {
		return model.PriceSeries{}, err
	}
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&period1=%d&period2=%d",
		strings.TrimRight(p.BaseURL, "/"), url.PathEscape(p.ticker(symbol)), interval, start.Unix(), end.Unix())

	body, err := getBody(ctx, p.Client, ProviderYahoo, endpoint, http.Header{"User-Agent": {"Mozilla/5.0"}})
	if err != nil {
		return model.PriceSeries{}, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return model.PriceSeries{}, model.NewProviderError(ProviderYahoo, model.ProviderBadResponse, fmt.Errorf("decode: %w", err))
	}
	if e := chart.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			log.Printf("[WARN] yahoo: no data for %s: %s", symbol, e.Description)
			return model.PriceSeries{Symbol: symbol, Timeframe: tf}, nil
		}
		return model.PriceSeries{}, model.NewProviderError(ProviderYahoo, model.ProviderBadResponse, fmt.Errorf("api error %s: %s", e.Code, e.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return model.PriceSeries{Symbol: symbol, Timeframe: tf}, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := valueAt(quote.Close, i)
		if c == 0 {
			continue // null bar (holiday, halted)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   valueAt(quote.Open, i),
			High:   valueAt(quote.High, i),
			Low:    valueAt(quote.Low, i),
			Close:  c,
			Volume: valueAt(quote.Volume, i),
		})
	}
	return model.NewPriceSeries(symbol, tf, bars), nil
}
