package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Unknown marks a broker field the venue did not report.
const Unknown = "unknown"

// Side is the direction of an open position.
type Side string

const (
	SideLong    Side = "long"
	SideShort   Side = "short"
	SideUnknown Side = Unknown
)

// Amount is a number that a broker may omit. Missing values render as "unknown".
type Amount struct {
	Value float64
	Known bool
}

// KnownAmount wraps a reported value.
func KnownAmount(v float64) Amount { return Amount{Value: v, Known: true} }

func (a Amount) String() string {
	if !a.Known {
		return Unknown
	}
	return strconv.FormatFloat(a.Value, 'f', -1, 64)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Known {
		return json.Marshal(Unknown)
	}
	return json.Marshal(a.Value)
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*a = Amount{}
		return nil
	}
	*a = KnownAmount(v)
	return nil
}

// Position is an open position. A symbol has at most one at a time.
type Position struct {
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Quantity     float64   `json:"quantity"`
	EntryPrice   float64   `json:"entry_price"`
	StopLoss     Amount    `json:"stop_loss"`
	TakeProfit   Amount    `json:"take_profit"`
	EntryTime    time.Time `json:"entry_time"`
	MarketValue  Amount    `json:"market_value"`
	UnrealizedPL Amount    `json:"unrealized_pl"`
}

// Age returns how long the position has been open, measured in UTC.
func (p Position) Age(now time.Time) time.Duration {
	return now.UTC().Sub(p.EntryTime.UTC())
}

// ClonePositions returns a copy safe to hand to another goroutine.
func ClonePositions(in []Position) []Position {
	if in == nil {
		return []Position{}
	}
	out := make([]Position, len(in))
	copy(out, in)
	return out
}
