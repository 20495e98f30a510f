package model

import "time"

// OrderSide is the explicit direction of an order. Quantities are always unsigned.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType enumerates supported order types.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// TimeInForce enumerates order lifetimes.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceDay TimeInForce = "day"
)

// OrderRequest is a venue-neutral order.
type OrderRequest struct {
	Symbol      string
	Type        OrderType
	Quantity    float64
	Side        OrderSide
	TimeInForce TimeInForce
	LimitPrice  *float64
	StopPrice   *float64
	// Optional bracket legs.
	StopLoss   *float64
	TakeProfit *float64
	// ReferencePrice is the last observed price. Simulated venues fill at it.
	ReferencePrice float64
}

// OrderResult is the venue acknowledgement of an accepted order.
type OrderResult struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_order_id"`
	Symbol      string    `json:"symbol"`
	Side        OrderSide `json:"side"`
	Quantity    float64   `json:"quantity"`
	Status      string    `json:"status"`
	FilledPrice Amount    `json:"filled_avg_price"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AccountSummary is the broker's view of the account.
type AccountSummary struct {
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buying_power"`
	Cash        float64 `json:"cash"`
	Currency    string  `json:"currency"`
}

// Float returns a pointer to v, for optional order prices.
func Float(v float64) *float64 { return &v }
