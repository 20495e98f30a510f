package collector

import (
	"context"
	"sync"
	"time"

	"TradeSentinel/internal/model"
)

const mockMaxBars = 500

var mockTimeframes = map[model.Timeframe]string{
	model.Timeframe1Min:  "1Min",
	model.Timeframe15Min: "15Min",
	model.Timeframe1H:    "1H",
	model.Timeframe1D:    "1D",
}

// MockProvider returns controllable fixed data for development and testing.
// With Bars nil it generates a deterministic drift anchored at end.
type MockProvider struct {
	ProviderName string
	Price        float64
	Bars         []model.OHLCV
	Err          error

	mu    sync.Mutex
	calls int
}

func (m *MockProvider) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return ProviderMock
}

// Calls reports how many times FetchHistoricalData ran.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) FetchHistoricalData(_ context.Context, symbol string, tf model.Timeframe, start, end time.Time) (model.PriceSeries, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if _, err := mapTimeframe(m.Name(), mockTimeframes, tf); err != nil {
		return model.PriceSeries{}, err
	}
	if m.Err != nil {
		return model.PriceSeries{}, m.Err
	}
	if m.Bars != nil {
		return model.NewPriceSeries(symbol, tf, m.Bars), nil
	}
	return model.NewPriceSeries(symbol, tf, generateMockBars(m.Price, tf.Duration(), start, end)), nil
}

func generateMockBars(basePrice float64, step time.Duration, start, end time.Time) []model.OHLCV {
	if basePrice <= 0 || step <= 0 || !end.After(start) {
		return nil
	}
	count := int(end.Sub(start) / step)
	if count > mockMaxBars {
		count = mockMaxBars
	}
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
