package model

import "time"

// RiskState is a point-in-time view of the risk ledger.
type RiskState struct {
	Balance            float64   `json:"balance"`
	RiskPerTrade       float64   `json:"risk_per_trade"`
	DailyLimitFraction float64   `json:"daily_limit_fraction"`
	DailyRiskUsed      float64   `json:"daily_risk_used"`
	DailyLimit         float64   `json:"daily_limit"`
	LastReset          time.Time `json:"last_reset"`
}
