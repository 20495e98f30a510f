package model

// Signal is the trade decision produced by the strategy engine.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Actionable reports whether the signal asks for an entry.
func (s Signal) Actionable() bool {
	return s == SignalBuy || s == SignalSell
}

// Side maps an entry signal to the position side it opens.
func (s Signal) Side() Side {
	if s == SignalSell {
		return SideShort
	}
	return SideLong
}
