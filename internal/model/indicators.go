package model

// Indicators holds the readings the strategy engine evaluated on the last two bars.
type Indicators struct {
	PrevShortMA float64
	PrevLongMA  float64
	ShortMA     float64
	LongMA      float64
	RSI         float64
}

// Decision is a signal plus the indicator readings that produced it.
// Indicators is nil when the series was too short to evaluate.
type Decision struct {
	Signal     Signal
	Indicators *Indicators
	Reason     string
}
