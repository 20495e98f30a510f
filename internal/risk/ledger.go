package risk

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"TradeSentinel/internal/model"
)

// DefaultResetSpec resets the daily budget at midnight UTC.
const DefaultResetSpec = "0 0 * * *"

const (
	trailFraction    = 0.02
	shortProfitFloor = 0.05
)

// Config holds ledger parameters. Percentages are given as percent (1 = 1%).
type Config struct {
	InitialBalance  float64
	RiskPerTradePct float64
	DailyLimitPct   float64
	ResetSpec       string
}

// Ledger tracks balance and the risk consumed in the current trading day.
type Ledger struct {
	mu            sync.Mutex
	balance       float64
	riskFraction  float64
	dailyFraction float64
	dailyUsed     float64
	lastReset     time.Time
	schedule      cron.Schedule
}

// NewLedger validates cfg and starts the first trading day at now.
func NewLedger(cfg Config, now time.Time) (*Ledger, error) {
	if cfg.InitialBalance <= 0 {
		return nil, &model.ConfigError{Field: "initial_balance", Reason: "must be positive"}
	}
	if cfg.RiskPerTradePct <= 0 || cfg.RiskPerTradePct > 100 {
		return nil, &model.ConfigError{Field: "risk_per_trade", Reason: "must be in (0, 100]"}
	}
	if cfg.DailyLimitPct <= 0 || cfg.DailyLimitPct > 100 {
		return nil, &model.ConfigError{Field: "daily_risk_limit", Reason: "must be in (0, 100]"}
	}
	spec := cfg.ResetSpec
	if spec == "" {
		spec = DefaultResetSpec
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, &model.ConfigError{Field: "daily_reset_cron", Reason: err.Error()}
	}

	return &Ledger{
		balance:       cfg.InitialBalance,
		riskFraction:  cfg.RiskPerTradePct / 100,
		dailyFraction: cfg.DailyLimitPct / 100,
		lastReset:     now.UTC(),
		schedule:      sched,
	}, nil
}

// CalculatePositionSize returns balance*riskFraction / |entry-stop|.
func (l *Ledger) CalculatePositionSize(entry, stop float64) (float64, error) {
	if entry <= 0 || stop <= 0 || entry == stop {
		return 0, fmt.Errorf("size entry=%.4f stop=%.4f: %w", entry, stop, model.ErrDegenerateRiskInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance * l.riskFraction / math.Abs(entry-stop), nil
}

// DetermineStopLoss places the stop pct percent against the position side.
func DetermineStopLoss(entry, pct float64, long bool) (float64, error) {
	if entry <= 0 || pct <= 0 || pct >= 100 {
		return 0, fmt.Errorf("stop entry=%.4f pct=%.2f: %w", entry, pct, model.ErrDegenerateRiskInput)
	}
	if long {
		return entry * (1 - pct/100), nil
	}
	return entry * (1 + pct/100), nil
}

// DetermineTakeProfit projects the stop distance times ratio onto the profitable side.
// A short target that would reach zero is floored at 5% of entry.
func DetermineTakeProfit(entry, stop, ratio float64) (float64, error) {
	if entry <= 0 || stop <= 0 || ratio <= 0 || entry == stop {
		return 0, fmt.Errorf("take profit entry=%.4f stop=%.4f ratio=%.2f: %w", entry, stop, ratio, model.ErrDegenerateRiskInput)
	}
	dist := math.Abs(entry-stop) * ratio
	if entry > stop {
		return entry + dist, nil
	}
	tp := entry - dist
	if tp <= 0 {
		tp = entry * shortProfitFloor
	}
	return tp, nil
}

// UpdateTrailingStop moves the stop 2% behind price. It only ever tightens.
func UpdateTrailingStop(price, level float64, long bool) float64 {
	if long {
		if candidate := price * (1 - trailFraction); candidate > level {
			log.Printf("[INFO] trailing stop (long) raised %.4f -> %.4f", level, candidate)
			return candidate
		}
		return level
	}
	if candidate := price * (1 + trailFraction); candidate < level {
		log.Printf("[INFO] trailing stop (short) lowered %.4f -> %.4f", level, candidate)
		return candidate
	}
	return level
}

// CheckDailyRiskLimit reports whether more risk may be taken today.
func (l *Ledger) CheckDailyRiskLimit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dailyUsed < l.balance*l.dailyFraction
}

// AddTradeRisk records risk consumed by a filled trade. Non-positive amounts are ignored.
func (l *Ledger) AddTradeRisk(amount float64) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailyUsed += amount
}

// UpdateAccountBalance replaces the balance. Consumed risk is left as is.
func (l *Ledger) UpdateAccountBalance(v float64) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		log.Printf("[WARN] ignoring non-positive account balance %.2f", v)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = v
}

// ResetDaily clears consumed risk and starts a new trading day at now.
func (l *Ledger) ResetDaily(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailyUsed = 0
	l.lastReset = now.UTC()
}

// RolloverIfDue resets when the schedule has fired since the last reset.
func (l *Ledger) RolloverIfDue(now time.Time) bool {
	now = now.UTC()
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.schedule.Next(l.lastReset)
	if now.Before(next) {
		return false
	}
	log.Printf("[INFO] daily risk rollover at %s (used %.2f)", now.Format(time.RFC3339), l.dailyUsed)
	l.dailyUsed = 0
	l.lastReset = now
	return true
}

// Snapshot returns a copy of the current ledger state.
func (l *Ledger) Snapshot() model.RiskState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return model.RiskState{
		Balance:            l.balance,
		RiskPerTrade:       l.riskFraction,
		DailyLimitFraction: l.dailyFraction,
		DailyRiskUsed:      l.dailyUsed,
		DailyLimit:         l.balance * l.dailyFraction,
		LastReset:          l.lastReset,
	}
}
