package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"TradeSentinel/internal/model"
)

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestYahoo_ParsesChart(t *testing.T) {
	var query string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		assert.Equal(t, "/v8/finance/chart/^GSPC", r.URL.Path)
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1704240000,1704153600,1704326400],
			"indicators":{"quote":[{"open":[11,10,null],"high":[12,11,null],"low":[10,9,null],
			"close":[11.5,10.5,null],"volume":[200,100,null]}]}}],"error":null}}`)
	})
	p := NewYahooProvider("", time.Second)
	p.BaseURL = srv.URL

	s, err := p.FetchHistoricalData(context.Background(), "SPX500", model.Timeframe1D, testStart, testEnd)
	require.NoError(t, err)
	assert.Contains(t, query, "interval=1d")
	assert.Contains(t, query, fmt.Sprintf("period1=%d", testStart.Unix()))

	require.Equal(t, 2, s.Len(), "null bar skipped")
	assert.Equal(t, 10.5, s.Bars[0].Close, "sorted ascending")
	assert.Equal(t, time.UTC, s.Bars[0].Time.Location())
}

func TestYahoo_NotFoundIsEmpty(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	})
	p := NewYahooProvider("", time.Second)
	p.BaseURL = srv.URL

	s, err := p.FetchHistoricalData(context.Background(), "NOPE", model.Timeframe1D, testStart, testEnd)
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestYahoo_StatusClassification(t *testing.T) {
	cases := map[int]model.ProviderErrorKind{
		http.StatusTooManyRequests:     model.ProviderRateLimited,
		http.StatusUnauthorized:        model.ProviderPermission,
		http.StatusInternalServerError: model.ProviderBadResponse,
	}
	for status, kind := range cases {
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) })
		p := NewYahooProvider("", time.Second)
		p.BaseURL = srv.URL

		_, err := p.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe1H, testStart, testEnd)
		var pe *model.ProviderError
		require.ErrorAs(t, err, &pe, "status %d", status)
		assert.Equal(t, kind, pe.Kind, "status %d", status)
	}
}

func TestYahoo_UnsupportedTimeframe(t *testing.T) {
	p := NewYahooProvider("", time.Second)
	_, err := p.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe("4H"), testStart, testEnd)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestFinnhub_Candles(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stock/candle", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Finnhub-Token"))
		assert.Equal(t, "15", r.URL.Query().Get("resolution"))
		assert.Empty(t, r.URL.Query().Get("token"), "key stays out of the URL")
		fmt.Fprint(w, `{"s":"ok","t":[1704067200,1704068100],"o":[1,2],"h":[2,3],"l":[0.5,1.5],"c":[1.5,2.5],"v":[10,20]}`)
	})
	p := NewFinnhubProvider("secret", "", time.Second)
	p.BaseURL = srv.URL
	p.limiter = rate.NewLimiter(rate.Inf, 1)

	s, err := p.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe15Min, testStart, testEnd)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 2.5, s.Bars[1].Close)
}

func TestFinnhub_NoData(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"s":"no_data"}`)
	})
	p := NewFinnhubProvider("secret", "", time.Second)
	p.BaseURL = srv.URL
	p.limiter = rate.NewLimiter(rate.Inf, 1)

	s, err := p.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe1D, testStart, testEnd)
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestFinnhub_Forbidden(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	p := NewFinnhubProvider("secret", "", time.Second)
	p.BaseURL = srv.URL
	p.limiter = rate.NewLimiter(rate.Inf, 1)

	_, err := p.FetchHistoricalData(context.Background(), "AAPL", model.Timeframe1D, testStart, testEnd)
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ProviderPermission, pe.Kind)
}

const alphaVantageDaily = `{
  "Meta Data": {"1. Information": "Daily Prices", "2. Symbol": "IBM", "5. Time Zone": "US/Eastern"},
  "Time Series (Daily)": {
    "2024-02-02": {"1. open": "185.0", "2. high": "187.0", "3. low": "184.0", "4. close": "186.5", "5. volume": "5000"},
    "2024-02-01": {"1. open": "183.0", "2. high": "185.5", "3. low": "182.0", "4. close": "184.9", "5. volume": "4000"},
    "2023-12-29": {"1. open": "160.0", "2. high": "161.0", "3. low": "159.0", "4. close": "160.5", "5. volume": "3000"}
  }
}`

func TestAlphaVantage_DailySeries(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		fmt.Fprint(w, alphaVantageDaily)
	})
	p := NewAlphaVantageProvider("key", "", time.Second)
	p.BaseURL = srv.URL
	p.limiter = rate.NewLimiter(rate.Inf, 1)

	s, err := p.FetchHistoricalData(context.Background(), "IBM", model.Timeframe1D, testStart, testEnd)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len(), "bars before start are filtered")
	assert.Equal(t, 184.9, s.Bars[0].Close)
	assert.Equal(t, 186.5, s.Bars[1].Close)
	assert.Equal(t, time.Date(2024, 2, 1, 5, 0, 0, 0, time.UTC), s.Bars[0].Time, "US/Eastern midnight in UTC")
}

func TestAlphaVantage_IntradayInterval(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_INTRADAY", r.URL.Query().Get("function"))
		assert.Equal(t, "60min", r.URL.Query().Get("interval"))
		fmt.Fprint(w, `{"Meta Data":{"6. Time Zone":"UTC"},"Time Series (60min)":{
			"2024-02-01 10:00:00":{"1. open":"1","2. high":"2","3. low":"0.5","4. close":"1.5","5. volume":"9"}}}`)
	})
	p := NewAlphaVantageProvider("key", "", time.Second)
	p.BaseURL = srv.URL
	p.limiter = rate.NewLimiter(rate.Inf, 1)

	s, err := p.FetchHistoricalData(context.Background(), "IBM", model.Timeframe1H, testStart, testEnd)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), s.Bars[0].Time)
}

func TestAlphaVantage_NoteIsRateLimit(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`)
	})
	p := NewAlphaVantageProvider("key", "", time.Second)
	p.BaseURL = srv.URL
	p.limiter = rate.NewLimiter(rate.Inf, 1)

	_, err := p.FetchHistoricalData(context.Background(), "IBM", model.Timeframe1D, testStart, testEnd)
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ProviderRateLimited, pe.Kind)
}

func TestBinance_Klines(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, `[
			[1704153600000,"42000.0","43000.0","41500.0","42800.0","120.5",1704239999999,"0",10,"0","0","0"],
			[1704067200000,"41000.0","42200.0","40800.0","42000.0","99.1",1704153599999,"0",8,"0","0","0"]
		]`)
	})
	p, err := NewBinanceProvider(srv.URL, "", time.Second)
	require.NoError(t, err)

	s, err := p.FetchHistoricalData(context.Background(), "BTC/USDT", model.Timeframe1D, testStart, testEnd)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 42000.0, s.Bars[0].Close)
	assert.Equal(t, testStart, s.Bars[0].Time)
	assert.Equal(t, "BTC/USDT", s.Symbol)
}
