package strategy

import (
	"fmt"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// Params configures the moving-average crossover with RSI confirmation.
type Params struct {
	ShortWindow   int
	LongWindow    int
	RSIWindow     int
	RSIOverbought float64
	RSIOversold   float64
}

// DefaultParams returns the 20/50 SMA, RSI(14) 70/30 setup.
func DefaultParams() Params {
	return Params{
		ShortWindow:   20,
		LongWindow:    50,
		RSIWindow:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
	}
}

// Engine turns a price window into a trade signal. It holds no mutable state.
type Engine struct {
	params Params
}

// NewEngine validates params. short >= long is a configuration error.
func NewEngine(p Params) (*Engine, error) {
	switch {
	case p.ShortWindow <= 0 || p.LongWindow <= 0:
		return nil, &model.ConfigError{Field: "strategy", Reason: "moving average windows must be positive"}
	case p.ShortWindow >= p.LongWindow:
		return nil, &model.ConfigError{Field: "strategy", Reason: fmt.Sprintf("short_window (%d) must be less than long_window (%d)", p.ShortWindow, p.LongWindow)}
	case p.RSIWindow < 2:
		return nil, &model.ConfigError{Field: "strategy", Reason: "rsi_window must be at least 2"}
	case p.RSIOversold >= p.RSIOverbought || p.RSIOversold < 0 || p.RSIOverbought > 100:
		return nil, &model.ConfigError{Field: "strategy", Reason: "rsi thresholds must satisfy 0 <= oversold < overbought <= 100"}
	}
	return &Engine{params: p}, nil
}

// Params returns the engine configuration.
func (e *Engine) Params() Params { return e.params }

// MinBars is the number of bars needed before a signal can be anything but HOLD.
func (e *Engine) MinBars() int {
	n := e.params.LongWindow + 1
	if e.params.RSIWindow+1 > n {
		n = e.params.RSIWindow + 1
	}
	return n
}

// GenerateSignal returns BUY, SELL or HOLD for the series.
func (e *Engine) GenerateSignal(series model.PriceSeries) model.Signal {
	return e.Evaluate(series).Signal
}

// Evaluate computes the signal and the indicator readings behind it.
// Insufficient or invalid data yields HOLD, never an error.
func (e *Engine) Evaluate(series model.PriceSeries) model.Decision {
	if series.Len() < e.MinBars() {
		return model.Decision{Signal: model.SignalHold, Reason: fmt.Sprintf("insufficient data: %d bars, need %d", series.Len(), e.MinBars())}
	}
	closes := series.Closes()
	for _, c := range closes {
		if !model.ValidClose(c) {
			return model.Decision{Signal: model.SignalHold, Reason: "series contains an invalid close price"}
		}
	}

	ind, ok := e.indicators(closes)
	if !ok {
		return model.Decision{Signal: model.SignalHold, Reason: "indicators undefined on the latest bars"}
	}
	signal, reason := decide(ind, e.params)
	return model.Decision{Signal: signal, Indicators: &ind, Reason: reason}
}

func (e *Engine) indicators(closes []float64) (model.Indicators, bool) {
	short, err := calculator.CalculateSMA(closes, e.params.ShortWindow)
	if err != nil {
		return model.Indicators{}, false
	}
	long, err := calculator.CalculateSMA(closes, e.params.LongWindow)
	if err != nil {
		return model.Indicators{}, false
	}
	rsi, err := calculator.CalculateRSI(closes, e.params.RSIWindow)
	if err != nil {
		return model.Indicators{}, false
	}

	last := len(closes) - 1
	var ind model.Indicators
	var ok [5]bool
	ind.PrevShortMA, ok[0] = short.At(last - 1)
	ind.PrevLongMA, ok[1] = long.At(last - 1)
	ind.ShortMA, ok[2] = short.At(last)
	ind.LongMA, ok[3] = long.At(last)
	ind.RSI, ok[4] = rsi.At(last)
	for _, defined := range ok {
		if !defined {
			return model.Indicators{}, false
		}
	}
	return ind, true
}
