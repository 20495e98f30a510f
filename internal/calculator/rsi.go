package calculator

import (
	"errors"

	talib "github.com/markcheno/go-talib"
)

// CalculateRSI computes the Wilder-smoothed RSI series over the given period.
// Requires at least period+1 prices; values are bounded in [0,100].
func CalculateRSI(prices []float64, period int) (Series, error) {
	if period < 2 {
		return Series{}, errors.New("period must be at least 2")
	}
	if len(prices) < period+1 {
		return Series{}, errors.New("not enough data for RSI calculation")
	}
	return Series{Values: talib.Rsi(prices, period), Lookback: period}, nil
}
