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

	"golang.org/x/time/rate"

	"TradeSentinel/internal/model"
)

const finnhubBaseURL = "https://finnhub.io"

var finnhubResolutions = map[model.Timeframe]string{
	model.Timeframe1Min:  "1",
	model.Timeframe15Min: "15",
	model.Timeframe1H:    "60",
	model.Timeframe1D:    "D",
}

// FinnhubProvider reads stock candles from the Finnhub REST API.
type FinnhubProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	limiter *rate.Limiter
}

// NewFinnhubProvider creates a provider limited to the free tier's 60 calls per minute.
func NewFinnhubProvider(apiKey, proxyURL string, timeout time.Duration) *FinnhubProvider {
	return &FinnhubProvider{
		BaseURL: finnhubBaseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
		limiter: rate.NewLimiter(rate.Limit(60.0/60), 5),
	}
}

func (p *FinnhubProvider) Name() string { return ProviderFinnhub }

// finnhubCandles is the column-oriented candle payload.
type finnhubCandles struct {
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
}

func (p *FinnhubProvider) FetchHistoricalData(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) (model.PriceSeries, error) {
	resolution, err := mapTimeframe(ProviderFinnhub, finnhubResolutions, tf)
	if err != nil {
		return model.PriceSeries{}, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return model.PriceSeries{}, model.NewProviderError(ProviderFinnhub, model.ProviderRateLimited, err)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("resolution", resolution)
	q.Set("from", fmt.Sprint(start.Unix()))
	q.Set("to", fmt.Sprint(end.Unix()))
	endpoint := strings.TrimRight(p.BaseURL, "/") + "/api/v1/stock/candle?" + q.Encode()

	body, err := getBody(ctx, p.Client, ProviderFinnhub, endpoint, http.Header{"X-Finnhub-Token": {p.APIKey}})
	if err != nil {
		return model.PriceSeries{}, err
	}

	var c finnhubCandles
	if err := json.Unmarshal(body, &c); err != nil {
		return model.PriceSeries{}, model.NewProviderError(ProviderFinnhub, model.ProviderBadResponse, fmt.Errorf("decode: %w", err))
	}
	if c.Status != "ok" {
		log.Printf("[WARN] finnhub: status %q for %s", c.Status, symbol)
		return model.PriceSeries{Symbol: symbol, Timeframe: tf}, nil
	}
	n := len(c.Time)
	if len(c.Open) < n || len(c.High) < n || len(c.Low) < n || len(c.Close) < n || len(c.Volume) < n {
		return model.PriceSeries{}, model.NewProviderError(ProviderFinnhub, model.ProviderBadResponse, fmt.Errorf("ragged candle arrays"))
	}

	bars := make([]model.OHLCV, n)
	for i, ts := range c.Time {
		bars[i] = model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   c.Open[i],
			High:   c.High[i],
			Low:    c.Low[i],
			Close:  c.Close[i],
			Volume: c.Volume[i],
		}
	}
	return model.NewPriceSeries(symbol, tf, bars), nil
}
