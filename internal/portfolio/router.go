package portfolio

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"TradeSentinel/internal/broker"
	"TradeSentinel/internal/metrics"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/risk"
)

// Config holds the order policy applied to every signal.
type Config struct {
	StopLossPct     float64       // distance of the protective stop from entry, percent
	RiskRewardRatio float64       // take-profit distance as a multiple of the stop distance
	TimeBasedExit   time.Duration // 0 disables age-based exits
	// PendingGrace is how long an accepted order may stay absent from the
	// broker's position list before the local entry is dropped. 0 means DefaultPendingGrace.
	PendingGrace time.Duration
}

// DefaultPendingGrace covers a market order accepted outside trading hours.
const DefaultPendingGrace = 24 * time.Hour

// Router turns signals into bracket orders and tracks the resulting positions.
// It is owned by a single worker goroutine and is not safe for concurrent use.
type Router struct {
	gateway   broker.Gateway
	ledger    *risk.Ledger
	cfg       Config
	publish   func(model.AgentEvent)
	now       func() time.Time
	metrics   *metrics.Metrics
	positions map[string]model.Position
	confirmed map[string]bool // symbols the broker has reported since entry
}

// NewRouter wires a router. publish receives every event the router emits.
func NewRouter(gw broker.Gateway, ledger *risk.Ledger, cfg Config, publish func(model.AgentEvent), now func() time.Time) *Router {
	if publish == nil {
		publish = func(model.AgentEvent) {}
	}
	if now == nil {
		now = time.Now
	}
	return &Router{
		gateway:   gw,
		ledger:    ledger,
		cfg:       cfg,
		publish:   publish,
		now:       now,
		positions: make(map[string]model.Position),
		confirmed: make(map[string]bool),
	}
}

// WithMetrics attaches order counters.
func (r *Router) WithMetrics(m *metrics.Metrics) *Router {
	r.metrics = m
	return r
}

// Positions returns the locally tracked positions sorted by symbol.
func (r *Router) Positions() []model.Position {
	out := make([]model.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (r *Router) logf(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", level, msg)
	r.publish(model.LogEvent(r.now(), msg))
}

// ProcessSignal routes one signal. It returns false only when the daily risk
// limit is exhausted and the agent should stop.
func (r *Router) ProcessSignal(ctx context.Context, signal model.Signal, symbol string, series model.PriceSeries) bool {
	if !signal.Actionable() {
		return true
	}
	if _, open := r.positions[symbol]; open {
		r.logf("INFO", "%s %s ignored: position already open", signal, symbol)
		return true
	}
	if !r.ledger.CheckDailyRiskLimit() {
		s := r.ledger.Snapshot()
		r.logf("WARN", "daily risk limit reached (%.2f of %.2f), halting", s.DailyRiskUsed, s.DailyLimit)
		return false
	}
	if ctx.Err() != nil {
		return true
	}

	last, ok := series.Last()
	if !ok || !model.ValidClose(last.Close) {
		r.logf("WARN", "%s %s skipped: no valid last close", signal, symbol)
		return true
	}
	entry := last.Close
	long := signal == model.SignalBuy

	stop, err := risk.DetermineStopLoss(entry, r.cfg.StopLossPct, long)
	if err != nil {
		r.logf("WARN", "%s %s skipped: %v", signal, symbol, err)
		return true
	}
	qty, err := r.ledger.CalculatePositionSize(entry, stop)
	if err != nil || qty <= 0 {
		r.logf("WARN", "%s %s skipped: position size %.4f (%v)", signal, symbol, qty, err)
		return true
	}
	takeProfit, err := risk.DetermineTakeProfit(entry, stop, r.cfg.RiskRewardRatio)
	if err != nil {
		r.logf("WARN", "%s %s skipped: %v", signal, symbol, err)
		return true
	}

	side := model.OrderSideBuy
	if !long {
		side = model.OrderSideSell
	}
	res, err := r.gateway.PlaceOrder(ctx, model.OrderRequest{
		Symbol:         symbol,
		Type:           model.OrderTypeMarket,
		Quantity:       qty,
		Side:           side,
		TimeInForce:    model.TimeInForceGTC,
		StopLoss:       model.Float(stop),
		TakeProfit:     model.Float(takeProfit),
		ReferencePrice: entry,
	})
	if err != nil || res == nil {
		r.metrics.Order(string(side), "rejected")
		r.logf("ERROR", "order %s %s failed: %v", side, symbol, err)
		return true
	}
	r.metrics.Order(string(side), "accepted")

	filledQty := qty
	if res.Quantity > 0 {
		filledQty = res.Quantity
	}
	entryPrice := entry
	if res.FilledPrice.Known && res.FilledPrice.Value > 0 {
		entryPrice = res.FilledPrice.Value
	}
	r.ledger.AddTradeRisk(math.Abs(entry-stop) * filledQty)

	posSide := model.SideLong
	if !long {
		posSide = model.SideShort
	}
	delete(r.confirmed, symbol)
	r.positions[symbol] = model.Position{
		Symbol:     symbol,
		Side:       posSide,
		Quantity:   filledQty,
		EntryPrice: entryPrice,
		StopLoss:   model.KnownAmount(stop),
		TakeProfit: model.KnownAmount(takeProfit),
		EntryTime:  r.now().UTC(),
	}
	r.logf("INFO", "%s %s %.4f @ %.4f (stop %.4f, target %.4f, order %s)", side, symbol, filledQty, entryPrice, stop, takeProfit, res.ID)
	r.publish(model.PositionsEvent(r.now(), r.Positions()))
	return true
}

// ManageOpenPositions reconciles the local ledger with the broker, publishes
// the merged snapshot, trails stops and closes positions that are too old or
// through their stop. Calling it twice without broker-side change publishes
// the same snapshot.
func (r *Router) ManageOpenPositions(ctx context.Context) error {
	reported, err := r.gateway.GetOpenPositions(ctx)
	if err != nil {
		r.logf("ERROR", "refresh positions: %v", err)
		return fmt.Errorf("refresh positions: %w", err)
	}
	now := r.now().UTC()

	merged := make(map[string]model.Position, len(reported))
	for _, p := range reported {
		local, known := r.positions[p.Symbol]
		switch {
		case known:
			p.EntryTime = local.EntryTime
			p.StopLoss = tighterStop(p.Side, p.StopLoss, local.StopLoss)
			if !p.TakeProfit.Known {
				p.TakeProfit = local.TakeProfit
			}
		case !p.EntryTime.IsZero():
			p.EntryTime = p.EntryTime.UTC()
		default:
			p.EntryTime = now
			r.logf("INFO", "tracking %s position opened outside the agent", p.Symbol)
		}
		r.trail(&p)
		merged[p.Symbol] = p
	}
	for sym, local := range r.positions {
		if _, still := merged[sym]; still {
			continue
		}
		// An accepted order may not have filled yet; keep guarding the symbol.
		if !r.confirmed[sym] && now.Sub(local.EntryTime.UTC()) < r.pendingGrace() {
			merged[sym] = local
			continue
		}
		delete(r.confirmed, sym)
		r.logf("INFO", "%s position no longer reported by %s", sym, r.gateway.Name())
	}
	for _, p := range reported {
		r.confirmed[p.Symbol] = true
	}
	r.positions = merged

	snapshot := r.Positions()
	r.publish(model.PositionsEvent(now, snapshot))
	r.metrics.SetOpenPositions(len(snapshot))

	for _, p := range snapshot {
		if !r.confirmed[p.Symbol] {
			continue
		}
		reason := ""
		switch {
		case r.cfg.TimeBasedExit > 0 && p.Age(now) > r.cfg.TimeBasedExit:
			reason = fmt.Sprintf("held %s, exit after %s", p.Age(now).Round(time.Second), r.cfg.TimeBasedExit)
		case stopHit(p):
			reason = fmt.Sprintf("price through stop %.4f", p.StopLoss.Value)
		default:
			continue
		}
		if err := r.gateway.ClosePosition(ctx, p.Symbol); err != nil {
			r.logf("ERROR", "close %s (%s): %v", p.Symbol, reason, err)
			continue
		}
		r.logf("INFO", "closed %s: %s", p.Symbol, reason)
	}
	return nil
}

func (r *Router) pendingGrace() time.Duration {
	if r.cfg.PendingGrace > 0 {
		return r.cfg.PendingGrace
	}
	return DefaultPendingGrace
}

// markPrice derives the per-unit price from the broker's market value.
func markPrice(p model.Position) (float64, bool) {
	if !p.MarketValue.Known || p.Quantity <= 0 {
		return 0, false
	}
	px := math.Abs(p.MarketValue.Value) / p.Quantity
	return px, model.ValidClose(px)
}

func (r *Router) trail(p *model.Position) {
	px, ok := markPrice(*p)
	if !ok || !p.StopLoss.Known || p.Side == model.SideUnknown {
		return
	}
	p.StopLoss = model.KnownAmount(risk.UpdateTrailingStop(px, p.StopLoss.Value, p.Side == model.SideLong))
}

// tighterStop keeps the locally trailed stop when it is closer to price than the broker's leg.
func tighterStop(side model.Side, reported, local model.Amount) model.Amount {
	switch {
	case !local.Known:
		return reported
	case !reported.Known:
		return local
	case side == model.SideLong && local.Value > reported.Value:
		return local
	case side == model.SideShort && local.Value < reported.Value:
		return local
	}
	return reported
}

func stopHit(p model.Position) bool {
	px, ok := markPrice(p)
	if !ok || !p.StopLoss.Known {
		return false
	}
	switch p.Side {
	case model.SideLong:
		return px <= p.StopLoss.Value
	case model.SideShort:
		return px >= p.StopLoss.Value
	}
	return false
}
