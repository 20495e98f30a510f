package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/metrics"
	"TradeSentinel/internal/model"
)

var (
	testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

type panicProvider struct{}

func (panicProvider) Name() string { return "panicky" }

func (panicProvider) FetchHistoricalData(context.Context, string, model.Timeframe, time.Time, time.Time) (model.PriceSeries, error) {
	panic("boom")
}

func fixedBars(n int) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = model.OHLCV{Time: testStart.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	return bars
}

func TestNewResilientSource_RequiresProvider(t *testing.T) {
	_, err := NewResilientSource()
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestFetch_FallsThroughEmptyToNext(t *testing.T) {
	a := &MockProvider{ProviderName: "a", Bars: []model.OHLCV{}}
	b := &MockProvider{ProviderName: "b", Bars: fixedBars(30)}
	c := &MockProvider{ProviderName: "c", Bars: fixedBars(5)}
	src, err := NewResilientSource(a, b, c)
	require.NoError(t, err)

	got, err := src.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe1D, testStart, testEnd)
	require.NoError(t, err)

	want, _ := b.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe1D, testStart, testEnd)
	assert.Equal(t, want, got, "result is B's output, not merged")
	assert.Equal(t, 1, a.Calls())
	assert.Zero(t, c.Calls(), "providers after the first success are not tried")
}

func TestFetch_ErrorsAndPanicsAreSoft(t *testing.T) {
	m := metrics.New()
	failing := &MockProvider{ProviderName: "failing", Err: model.NewProviderError("failing", model.ProviderPermission, errors.New("denied"))}
	good := &MockProvider{ProviderName: "good", Bars: fixedBars(10)}
	src, err := NewResilientSource(panicProvider{}, failing, good)
	require.NoError(t, err)
	src.WithMetrics(m)

	got, err := src.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe1D, testStart, testEnd)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Len())
	assert.Equal(t, []string{"panicky", "failing", "good"}, src.Providers())

	// panicky/panic, failing/error, good/ok
	assert.Equal(t, 3, testutil.CollectAndCount(m.Registry(), "tradesentinel_provider_requests_total"))
}

func TestFetch_Exhaustion(t *testing.T) {
	a := &MockProvider{ProviderName: "a", Bars: []model.OHLCV{}}
	b := &MockProvider{ProviderName: "b", Err: model.NewProviderError("b", model.ProviderRateLimited, errors.New("slow down"))}
	src, err := NewResilientSource(a, b)
	require.NoError(t, err)

	got, err := src.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe1D, testStart, testEnd)
	require.Error(t, err)
	assert.True(t, got.Empty())
	assert.ErrorIs(t, err, model.ErrAllProvidersFailed)

	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ProviderRateLimited, pe.Kind)
}

func TestFetch_UnknownTimeframeIsImmediate(t *testing.T) {
	a := &MockProvider{Bars: fixedBars(10)}
	src, err := NewResilientSource(a)
	require.NoError(t, err)

	_, err = src.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe("2H"), testStart, testEnd)
	assert.ErrorIs(t, err, model.ErrConfiguration)
	assert.Zero(t, a.Calls())
}

func TestFetch_CancelledContext(t *testing.T) {
	a := &MockProvider{Bars: fixedBars(10)}
	src, err := NewResilientSource(a)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.FetchHistoricalData(ctx, "AAPL", model.Timeframe1D, testStart, testEnd)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, a.Calls())
}

func TestMockProvider_GeneratesDeterministicBars(t *testing.T) {
	m := &MockProvider{Price: 50}
	first, err := m.FetchHistoricalData(context.Background(), "X", model.Timeframe1D, testStart, testEnd)
	require.NoError(t, err)
	second, err := m.FetchHistoricalData(context.Background(), "X", model.Timeframe1D, testStart, testEnd)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 60, first.Len())
	last, _ := first.Last()
	assert.True(t, last.Time.Before(testEnd))
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"yahoo", "binance", "mock", " Mock "} {
		p, err := NewProvider(name, ProviderConfig{})
		require.NoError(t, err, name)
		assert.NotEmpty(t, p.Name())
	}

	_, err := NewProvider("finnhub", ProviderConfig{})
	assert.ErrorIs(t, err, model.ErrConfiguration, "missing key")
	_, err = NewProvider("alphavantage", ProviderConfig{})
	assert.ErrorIs(t, err, model.ErrConfiguration, "missing key")
	_, err = NewProvider("bloomberg", ProviderConfig{})
	assert.ErrorIs(t, err, model.ErrConfiguration)

	ps, err := NewProviders([]string{"mock", "finnhub"}, ProviderConfig{FinnhubAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "finnhub", ps[1].Name())
}
