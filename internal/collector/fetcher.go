package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// Provider fetches historical bars from one market data source.
// Implementations return an empty series, not an error, when the range has no data.
type Provider interface {
	Name() string
	FetchHistoricalData(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) (model.PriceSeries, error)
}

// Provider names accepted by NewProvider.
const (
	ProviderYahoo        = "yahoo"
	ProviderFinnhub      = "finnhub"
	ProviderAlphaVantage = "alphavantage"
	ProviderBinance      = "binance"
	ProviderMock         = "mock"
)

// ProviderConfig carries the credentials and transport settings for all adapters.
type ProviderConfig struct {
	FinnhubAPIKey      string
	AlphaVantageAPIKey string
	BinanceBaseURL     string
	ProxyURL           string
	Timeout            time.Duration
	MockPrice          float64
}

// NewProvider builds the adapter registered under name.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderYahoo:
		return NewYahooProvider(cfg.ProxyURL, cfg.Timeout), nil
	case ProviderFinnhub:
		if cfg.FinnhubAPIKey == "" {
			return nil, &model.ConfigError{Field: "data_sources.finnhub", Reason: "api key is required"}
		}
		return NewFinnhubProvider(cfg.FinnhubAPIKey, cfg.ProxyURL, cfg.Timeout), nil
	case ProviderAlphaVantage:
		if cfg.AlphaVantageAPIKey == "" {
			return nil, &model.ConfigError{Field: "data_sources.alphavantage", Reason: "api key is required"}
		}
		return NewAlphaVantageProvider(cfg.AlphaVantageAPIKey, cfg.ProxyURL, cfg.Timeout), nil
	case ProviderBinance:
		return NewBinanceProvider(cfg.BinanceBaseURL, cfg.ProxyURL, cfg.Timeout)
	case ProviderMock:
		price := cfg.MockPrice
		if price <= 0 {
			price = 100
		}
		return &MockProvider{Price: price}, nil
	default:
		return nil, &model.ConfigError{Field: "data_sources", Reason: fmt.Sprintf("unknown provider %q", name)}
	}
}

// NewProviders builds adapters in the given order.
func NewProviders(names []string, cfg ProviderConfig) ([]Provider, error) {
	out := make([]Provider, 0, len(names))
	for _, n := range names {
		p, err := NewProvider(n, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// mapTimeframe resolves the provider-specific interval or fails with a ConfigError.
func mapTimeframe(provider string, table map[model.Timeframe]string, tf model.Timeframe) (string, error) {
	if v, ok := table[tf]; ok {
		return v, nil
	}
	return "", &model.ConfigError{Field: "timeframe", Reason: fmt.Sprintf("%s does not support %q", provider, tf)}
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// getBody issues a GET and classifies failures as ProviderErrors.
func getBody(ctx context.Context, client *http.Client, provider, endpoint string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, model.NewProviderError(provider, model.ProviderBadResponse, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewProviderError(provider, model.ProviderTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewProviderError(provider, model.ProviderTransport, fmt.Errorf("read body: %w", err))
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, model.NewProviderError(provider, model.ProviderPermission, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, model.NewProviderError(provider, model.ProviderRateLimited, fmt.Errorf("status %d", resp.StatusCode))
	default:
		return nil, model.NewProviderError(provider, model.ProviderBadResponse, fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 256)))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// inRange keeps bars with start <= t <= end.
func inRange(bars []model.OHLCV, start, end time.Time) []model.OHLCV {
	out := bars[:0]
	for _, b := range bars {
		if b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
