package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Timeframe is the canonical bar resolution vocabulary shared by all providers.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1Min"
	Timeframe15Min Timeframe = "15Min"
	Timeframe1H    Timeframe = "1H"
	Timeframe1D    Timeframe = "1D"
)

// ParseTimeframe validates a timeframe string. Unknown values are a configuration error.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case Timeframe1Min, Timeframe15Min, Timeframe1H, Timeframe1D:
		return tf, nil
	default:
		return "", &ConfigError{Field: "timeframe", Reason: fmt.Sprintf("unsupported timeframe %q", s)}
	}
}

// Duration returns the wall-clock span of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1Min:
		return time.Minute
	case Timeframe15Min:
		return 15 * time.Minute
	case Timeframe1H:
		return time.Hour
	case Timeframe1D:
		return 24 * time.Hour
	}
	return 0
}

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries holds bars for one symbol in strictly increasing time order.
type PriceSeries struct {
	Symbol    string
	Timeframe Timeframe
	Bars      []OHLCV
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Empty reports whether the series carries no bars.
func (s PriceSeries) Empty() bool { return len(s.Bars) == 0 }

// Closes extracts closing prices in bar order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar.
func (s PriceSeries) Last() (OHLCV, bool) {
	if len(s.Bars) == 0 {
		return OHLCV{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// NewPriceSeries normalizes raw bars: timestamps converted to UTC, sorted
// ascending, duplicate timestamps collapsed (the later bar wins).
func NewPriceSeries(symbol string, tf Timeframe, bars []OHLCV) PriceSeries {
	out := make([]OHLCV, 0, len(bars))
	for _, b := range bars {
		b.Time = b.Time.UTC()
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	dedup := out[:0]
	for _, b := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Time.Equal(b.Time) {
			dedup[n-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	return PriceSeries{Symbol: symbol, Timeframe: tf, Bars: dedup}
}

// ValidClose reports whether a close price can feed indicator math.
func ValidClose(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
