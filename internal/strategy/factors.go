package strategy

import (
	"fmt"

	"TradeSentinel/internal/model"
)

// bullishCrossover: short MA moves from at-or-below the long MA to strictly above it.
func bullishCrossover(ind model.Indicators) bool {
	return ind.PrevShortMA <= ind.PrevLongMA && ind.ShortMA > ind.LongMA
}

// bearishCrossover: short MA moves from at-or-above the long MA to strictly below it.
func bearishCrossover(ind model.Indicators) bool {
	return ind.PrevShortMA >= ind.PrevLongMA && ind.ShortMA < ind.LongMA
}

// decide applies the crossover rule with the RSI filter.
func decide(ind model.Indicators, p Params) (model.Signal, string) {
	if bullishCrossover(ind) {
		if ind.RSI < p.RSIOverbought {
			return model.SignalBuy, fmt.Sprintf("bullish crossover, RSI %.2f below %.0f", ind.RSI, p.RSIOverbought)
		}
		return model.SignalHold, fmt.Sprintf("bullish crossover vetoed, RSI %.2f overbought", ind.RSI)
	}
	if bearishCrossover(ind) {
		if ind.RSI > p.RSIOversold {
			return model.SignalSell, fmt.Sprintf("bearish crossover, RSI %.2f above %.0f", ind.RSI, p.RSIOversold)
		}
		return model.SignalHold, fmt.Sprintf("bearish crossover vetoed, RSI %.2f oversold", ind.RSI)
	}
	return model.SignalHold, "no crossover"
}
