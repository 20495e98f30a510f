package collector

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"TradeSentinel/internal/model"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

var alphaVantageIntervals = map[model.Timeframe]string{
	model.Timeframe1Min:  "1min",
	model.Timeframe15Min: "15min",
	model.Timeframe1H:    "60min",
	model.Timeframe1D:    "daily",
}

// AlphaVantageProvider reads TIME_SERIES_INTRADAY / TIME_SERIES_DAILY.
type AlphaVantageProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	limiter *rate.Limiter
}

// NewAlphaVantageProvider creates a provider limited to 5 calls per minute (free tier).
func NewAlphaVantageProvider(apiKey, proxyURL string, timeout time.Duration) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		BaseURL: alphaVantageBaseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
		limiter: rate.NewLimiter(rate.Limit(5.0/60), 1),
	}
}

func (p *AlphaVantageProvider) Name() string { return ProviderAlphaVantage }

func (p *AlphaVantageProvider) FetchHistoricalData(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) (model.PriceSeries, error) {
	interval, err := mapTimeframe(ProviderAlphaVantage, alphaVantageIntervals, tf)
	if err != nil {
		return model.PriceSeries{}, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return model.PriceSeries{}, model.NewProviderError(ProviderAlphaVantage, model.ProviderRateLimited, err)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("outputsize", "full")
	q.Set("apikey", p.APIKey)
	if interval == "daily" {
		q.Set("function", "TIME_SERIES_DAILY")
	} else {
		q.Set("function", "TIME_SERIES_INTRADAY")
		q.Set("interval", interval)
	}
	endpoint := strings.TrimRight(p.BaseURL, "/") + "/query?" + q.Encode()

	body, err := getBody(ctx, p.Client, ProviderAlphaVantage, endpoint, nil)
	if err != nil {
		return model.PriceSeries{}, err
	}
	if !gjson.ValidBytes(body) {
		return model.PriceSeries{}, model.NewProviderError(ProviderAlphaVantage, model.ProviderBadResponse, fmt.Errorf("invalid json"))
	}
	root := gjson.ParseBytes(body)

	// Throttled responses come back as 200 with a Note or Information message.
	for _, key := range []string{"Note", "Information"} {
		if msg := root.Get(key); msg.Exists() {
			return model.PriceSeries{}, model.NewProviderError(ProviderAlphaVantage, model.ProviderRateLimited, fmt.Errorf("%s", msg.String()))
		}
	}
	if msg := root.Get("Error Message"); msg.Exists() {
		log.Printf("[WARN] alphavantage: %s: %s", symbol, msg.String())
		return model.PriceSeries{Symbol: symbol, Timeframe: tf}, nil
	}

	loc := alphaVantageLocation(root.Get("Meta Data"))
	bars, err := parseAlphaVantageSeries(root, loc)
	if err != nil {
		return model.PriceSeries{}, model.NewProviderError(ProviderAlphaVantage, model.ProviderBadResponse, err)
	}
	return model.NewPriceSeries(symbol, tf, inRange(bars, start.UTC(), end.UTC())), nil
}

// alphaVantageLocation reads the "N. Time Zone" meta field; timestamps default to US/Eastern.
func alphaVantageLocation(meta gjson.Result) *time.Location {
	name := "US/Eastern"
	meta.ForEach(func(key, value gjson.Result) bool {
		if strings.HasSuffix(key.String(), "Time Zone") {
			name = value.String()
			return false
		}
		return true
	})
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseAlphaVantageSeries(root gjson.Result, loc *time.Location) ([]model.OHLCV, error) {
	var series gjson.Result
	root.ForEach(func(key, value gjson.Result) bool {
		if strings.HasPrefix(key.String(), "Time Series") {
			series = value
			return false
		}
		return true
	})
	if !series.Exists() {
		return nil, nil
	}

	var bars []model.OHLCV
	var parseErr error
	series.ForEach(func(key, value gjson.Result) bool {
		layout := "2006-01-02 15:04:05"
		if len(key.String()) == len("2006-01-02") {
			layout = "2006-01-02"
		}
		ts, err := time.ParseInLocation(layout, key.String(), loc)
		if err != nil {
			parseErr = fmt.Errorf("timestamp %q: %w", key.String(), err)
			return false
		}
		bars = append(bars, model.OHLCV{
			Time:   ts.UTC(),
			Open:   value.Get(`1\. open`).Float(),
			High:   value.Get(`2\. high`).Float(),
			Low:    value.Get(`3\. low`).Float(),
			Close:  value.Get(`4\. close`).Float(),
			Volume: value.Get(`5\. volume`).Float(),
		})
		return true
	})
	return bars, parseErr
}
