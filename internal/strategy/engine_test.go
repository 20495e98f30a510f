package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"TradeSentinel/internal/model"
)

// zigzagSeries builds n daily closes starting at start. Before turn each pair of
// bars moves by (first, second); from turn on by (afterFirst, afterSecond).
func zigzagSeries(n int, start float64, turn int, before, after [2]float64) model.PriceSeries {
	closes := make([]float64, n)
	closes[0] = start
	for i := 1; i < n; i++ {
		step := before
		if i >= turn {
			step = after
		}
		if i%2 == 1 {
			closes[i] = closes[i-1] + step[0]
		} else {
			closes[i] = closes[i-1] + step[1]
		}
	}
	return seriesFromCloses(closes)
}

func seriesFromCloses(closes []float64) model.PriceSeries {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: t0.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return model.PriceSeries{Symbol: "TEST", Timeframe: model.Timeframe1D, Bars: bars}
}

func prefix(s model.PriceSeries, n int) model.PriceSeries {
	return model.PriceSeries{Symbol: s.Symbol, Timeframe: s.Timeframe, Bars: s.Bars[:n]}
}

func mustEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultParams())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestNewEngine_InvalidParams(t *testing.T) {
	tests := []struct {
		name string
		mod  func(p *Params)
	}{
		{"short equals long", func(p *Params) { p.ShortWindow = 50 }},
		{"short above long", func(p *Params) { p.ShortWindow = 60 }},
		{"zero short", func(p *Params) { p.ShortWindow = 0 }},
		{"rsi window too small", func(p *Params) { p.RSIWindow = 1 }},
		{"thresholds inverted", func(p *Params) { p.RSIOversold = 80 }},
	}
	for _, tt := range tests {
		p := DefaultParams()
		tt.mod(&p)
		if _, err := NewEngine(p); !errors.Is(err, model.ErrConfiguration) {
			t.Errorf("%s: expected configuration error, got %v", tt.name, err)
		}
	}
}

func TestGenerateSignal_InsufficientData(t *testing.T) {
	e := mustEngine(t)
	full := zigzagSeries(60, 200, 32, [2]float64{-2, 1}, [2]float64{2, -1})
	for n := 0; n <= 50; n++ {
		if sig := e.GenerateSignal(prefix(full, n)); sig != model.SignalHold {
			t.Errorf("%d bars: expected HOLD, got %s", n, sig)
		}
	}
}

func TestGenerateSignal_BullishCrossoverScenario(t *testing.T) {
	e := mustEngine(t)
	full := zigzagSeries(60, 200, 32, [2]float64{-2, 1}, [2]float64{2, -1})

	for n := 1; n <= 55; n++ {
		if sig := e.GenerateSignal(prefix(full, n)); sig != model.SignalHold {
			t.Fatalf("bar %d: expected HOLD before the crossover, got %s", n-1, sig)
		}
	}
	d := e.Evaluate(prefix(full, 56))
	if d.Signal != model.SignalBuy {
		t.Fatalf("bar 55: expected BUY, got %s (%s)", d.Signal, d.Reason)
	}
	if d.Indicators == nil || d.Indicators.RSI >= 70 {
		t.Errorf("expected RSI below overbought at crossover, got %+v", d.Indicators)
	}
}

func TestGenerateSignal_OverboughtVeto(t *testing.T) {
	e := mustEngine(t)
	// Zigzag decline then a straight +3 run: the crossover at bar 55 happens with RSI > 80.
	full := zigzagSeries(60, 200, 44, [2]float64{-2, 1}, [2]float64{3, 3})
	for n := 1; n <= full.Len(); n++ {
		if sig := e.GenerateSignal(prefix(full, n)); sig == model.SignalBuy {
			t.Fatalf("bar %d: overbought crossover must not BUY", n-1)
		}
	}
}

func TestGenerateSignal_BearishCrossoverScenario(t *testing.T) {
	e := mustEngine(t)
	full := zigzagSeries(60, 100, 32, [2]float64{2, -1}, [2]float64{-2, 1})
	if sig := e.GenerateSignal(prefix(full, 55)); sig != model.SignalHold {
		t.Errorf("bar 54: expected HOLD, got %s", sig)
	}
	if sig := e.GenerateSignal(prefix(full, 56)); sig != model.SignalSell {
		t.Errorf("bar 55: expected SELL, got %s", sig)
	}
}

func TestGenerateSignal_Deterministic(t *testing.T) {
	e := mustEngine(t)
	s := prefix(zigzagSeries(60, 200, 32, [2]float64{-2, 1}, [2]float64{2, -1}), 56)
	first := e.Evaluate(s)
	second := e.Evaluate(s)
	if first.Signal != second.Signal || *first.Indicators != *second.Indicators {
		t.Errorf("expected identical decisions, got %+v and %+v", first, second)
	}
}

func TestGenerateSignal_InvalidClose(t *testing.T) {
	e := mustEngine(t)
	s := prefix(zigzagSeries(60, 200, 32, [2]float64{-2, 1}, [2]float64{2, -1}), 56)
	s.Bars[10].Close = math.NaN()
	if sig := e.GenerateSignal(s); sig != model.SignalHold {
		t.Errorf("expected HOLD with a NaN close, got %s", sig)
	}
}

func TestDecide_AllBranches(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name string
		ind  model.Indicators
		want model.Signal
	}{
		{"bullish with neutral RSI", model.Indicators{PrevShortMA: 99, PrevLongMA: 100, ShortMA: 101, LongMA: 100, RSI: 55}, model.SignalBuy},
		{"bullish from equality", model.Indicators{PrevShortMA: 100, PrevLongMA: 100, ShortMA: 101, LongMA: 100, RSI: 55}, model.SignalBuy},
		{"bullish at overbought", model.Indicators{PrevShortMA: 99, PrevLongMA: 100, ShortMA: 101, LongMA: 100, RSI: 70}, model.SignalHold},
		{"bullish above overbought", model.Indicators{PrevShortMA: 99, PrevLongMA: 100, ShortMA: 101, LongMA: 100, RSI: 85}, model.SignalHold},
		{"bearish with neutral RSI", model.Indicators{PrevShortMA: 101, PrevLongMA: 100, ShortMA: 99, LongMA: 100, RSI: 45}, model.SignalSell},
		{"bearish at oversold", model.Indicators{PrevShortMA: 101, PrevLongMA: 100, ShortMA: 99, LongMA: 100, RSI: 30}, model.SignalHold},
		{"already above", model.Indicators{PrevShortMA: 101, PrevLongMA: 100, ShortMA: 102, LongMA: 100, RSI: 50}, model.SignalHold},
		{"touching without crossing", model.Indicators{PrevShortMA: 99, PrevLongMA: 100, ShortMA: 100, LongMA: 100, RSI: 50}, model.SignalHold},
	}
	for _, tt := range tests {
		got, _ := decide(tt.ind, p)
		if got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}
