package calculator

import (
	"errors"

	talib "github.com/markcheno/go-talib"
)

// Series is an indicator output aligned index-for-index with its input.
// Values before Lookback are undefined.
type Series struct {
	Values   []float64
	Lookback int
}

// At returns the value at index i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < s.Lookback || i < 0 || i >= len(s.Values) {
		return 0, false
	}
	return s.Values[i], true
}

// Len returns the number of aligned slots.
func (s Series) Len() int { return len(s.Values) }

// CalculateSMA computes the simple moving average series over the given period.
func CalculateSMA(prices []float64, period int) (Series, error) {
	if period <= 0 {
		return Series{}, errors.New("period must be positive")
	}
	if len(prices) < period {
		return Series{}, errors.New("not enough data for SMA calculation")
	}
	return Series{Values: talib.Sma(prices, period), Lookback: period - 1}, nil
}
