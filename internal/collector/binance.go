package collector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"TradeSentinel/internal/model"
)

const binanceMaxLimit = 1000

var binanceIntervals = map[model.Timeframe]string{
	model.Timeframe1Min:  "1m",
	model.Timeframe15Min: "15m",
	model.Timeframe1H:    "1h",
	model.Timeframe1D:    "1d",
}

// BinanceProvider reads spot klines through go-binance. No credentials are needed.
type BinanceProvider struct {
	client *binance.Client
}

// NewBinanceProvider creates a spot klines provider. baseURL overrides the API host.
func NewBinanceProvider(baseURL, proxyURL string, timeout time.Duration) (*BinanceProvider, error) {
	client := binance.NewClient("", "")
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		if _, err := url.Parse(baseURL); err != nil {
			return nil, &model.ConfigError{Field: "data_sources.binance.base_url", Reason: err.Error()}
		}
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	client.HTTPClient = newHTTPClient(proxyURL, timeout)
	return &BinanceProvider{client: client}, nil
}

func (p *BinanceProvider) Name() string { return ProviderBinance }

// binanceSymbol turns "BTC/USDT" or "btc-usdt" into "BTCUSDT".
func binanceSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
}

func (p *BinanceProvider) FetchHistoricalData(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) (model.PriceSeries, error) {
	interval, err := mapTimeframe(ProviderBinance, binanceIntervals, tf)
	if err != nil {
		return model.PriceSeries{}, err
	}
	kls, err := p.client.NewKlinesService().
		Symbol(binanceSymbol(symbol)).
		Interval(interval).
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Limit(binanceMaxLimit).
		Do(ctx)
	if err != nil {
		return model.PriceSeries{}, model.NewProviderError(ProviderBinance, model.ProviderTransport, err)
	}

	bars := make([]model.OHLCV, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		bar, err := binanceBar(kl)
		if err != nil {
			return model.PriceSeries{}, model.NewProviderError(ProviderBinance, model.ProviderBadResponse, err)
		}
		bars = append(bars, bar)
	}
	return model.NewPriceSeries(symbol, tf, bars), nil
}

func binanceBar(kl *binance.Kline) (model.OHLCV, error) {
	var vals [5]float64
	for i, s := range []string{kl.Open, kl.High, kl.Low, kl.Close, kl.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.OHLCV{}, fmt.Errorf("kline %d field %d: %w", kl.OpenTime, i, err)
		}
		vals[i] = v
	}
	return model.OHLCV{
		Time:   time.UnixMilli(kl.OpenTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
