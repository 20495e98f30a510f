package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"TradeSentinel/internal/broker"
	"TradeSentinel/internal/collector"
	"TradeSentinel/internal/config"
	"TradeSentinel/internal/metrics"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/risk"
	"TradeSentinel/internal/strategy"
)

// DataSource supplies price history. *collector.ResilientSource satisfies it.
type DataSource interface {
	FetchHistoricalData(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) (model.PriceSeries, error)
}

// Deps overrides what New would otherwise build from configuration.
type Deps struct {
	Source  DataSource
	Gateway broker.Gateway
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Agent runs the trading loop on one background goroutine per run and
// reports everything it does on the Events channel.
type Agent struct {
	symbols   []string
	timeframe model.Timeframe
	lookback  time.Duration
	interval  time.Duration
	backoff   time.Duration
	ledgerCfg risk.Config
	routerCfg portfolio.Config

	engine  *strategy.Engine
	source  DataSource
	gateway broker.Gateway
	metrics *metrics.Metrics
	now     func() time.Time
	events  chan model.AgentEvent

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New validates cfg and builds the engine, data source and broker gateway.
// Every configuration problem surfaces here, before any loop starts.
func New(cfg *config.Config, deps Deps) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tf, err := model.ParseTimeframe(cfg.Trading.Timeframe)
	if err != nil {
		return nil, err
	}
	engine, err := strategy.NewEngine(strategy.Params{
		ShortWindow:   cfg.Strategy.ShortWindow,
		LongWindow:    cfg.Strategy.LongWindow,
		RSIWindow:     cfg.Strategy.RSIWindow,
		RSIOverbought: cfg.Strategy.RSIOverbought,
		RSIOversold:   cfg.Strategy.RSIOversold,
	})
	if err != nil {
		return nil, err
	}

	a := &Agent{
		symbols:   append([]string(nil), cfg.Trading.Symbols...),
		timeframe: tf,
		lookback:  cfg.Trading.Lookback.Std(),
		interval:  cfg.Trading.PollingInterval.Std(),
		backoff:   cfg.Trading.ErrorBackoff.Std(),
		ledgerCfg: risk.Config{
			InitialBalance:  cfg.Trading.InitialBalance,
			RiskPerTradePct: cfg.Trading.RiskPerTrade,
			DailyLimitPct:   cfg.Trading.DailyRiskLimit,
			ResetSpec:       cfg.Trading.DailyResetCron,
		},
		routerCfg: portfolio.Config{
			StopLossPct:     cfg.Trading.StopLossPct,
			RiskRewardRatio: cfg.Trading.RiskRewardRatio,
			TimeBasedExit:   cfg.Trading.TimeBasedExit.Std(),
		},
		engine:  engine,
		source:  deps.Source,
		gateway: deps.Gateway,
		metrics: deps.Metrics,
		now:     deps.Now,
		events:  make(chan model.AgentEvent, cfg.Events.BufferSize),
	}
	if a.now == nil {
		a.now = time.Now
	}
	if _, err := risk.NewLedger(a.ledgerCfg, a.now()); err != nil {
		return nil, err
	}

	if a.source == nil {
		providers, err := collector.NewProviders(cfg.DataSources.Order, collector.ProviderConfig{
			FinnhubAPIKey:      cfg.DataSources.FinnhubAPIKey,
			AlphaVantageAPIKey: cfg.DataSources.AlphaVantageAPIKey,
			BinanceBaseURL:     cfg.DataSources.BinanceBaseURL,
			ProxyURL:           cfg.Proxy,
			Timeout:            cfg.DataSources.Timeout.Std(),
		})
		if err != nil {
			return nil, err
		}
		src, err := collector.NewResilientSource(providers...)
		if err != nil {
			return nil, err
		}
		a.source = src.WithMetrics(a.metrics)
	}
	if a.gateway == nil {
		gw, err := broker.New(broker.Config{
			Name:        cfg.Broker.Name,
			APIKey:      cfg.Broker.APIKey,
			APISecret:   cfg.Broker.APISecret,
			BaseURL:     cfg.Broker.BaseURL,
			InitialCash: cfg.Trading.InitialBalance,
		})
		if err != nil {
			return nil, err
		}
		a.gateway = gw
	}
	log.Printf("[INFO] agent ready: broker=%s symbols=%v timeframe=%s interval=%s", a.gateway.Name(), a.symbols, a.timeframe, a.interval)
	return a, nil
}

// Events is the outbound event stream. Consumers should drain it continuously.
func (a *Agent) Events() <-chan model.AgentEvent { return a.events }

// Running reports whether a loop is active.
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Done is closed when the current (or last) worker has exited.
func (a *Agent) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return a.done
}

// Start spawns the loop. Starting a running agent only logs. A worker that
// is still winding down from the previous Stop is waited for, so at most one
// loop ever touches the gateway.
func (a *Agent) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		a.logf("INFO", "agent is already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	prev := a.done
	done := make(chan struct{})
	a.running, a.cancel, a.done = true, cancel, done
	a.mu.Unlock()

	a.logf("INFO", "agent starting")
	a.metrics.SetRunning(true)
	a.publish(model.StatusEvent(a.now(), model.StatusRunning))
	go a.run(ctx, prev, done)
}

// Stop cancels the loop without waiting for it. Stopping a stopped agent only logs.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		a.logf("INFO", "agent is already stopped")
		return
	}
	a.running = false
	a.cancel()
	a.mu.Unlock()

	a.logf("INFO", "agent stopping")
	a.metrics.SetRunning(false)
	a.publish(model.StatusEvent(a.now(), model.StatusStopped))
}

// publish never blocks the worker: a full buffer drops the event.
func (a *Agent) publish(e model.AgentEvent) {
	select {
	case a.events <- e:
	default:
		a.metrics.EventDropped()
		log.Printf("[WARN] event buffer full, dropped %s event", e.Kind)
	}
}

func (a *Agent) logf(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", level, msg)
	a.publish(model.LogEvent(a.now(), msg))
}

func (a *Agent) run(ctx context.Context, prev <-chan struct{}, done chan struct{}) {
	defer close(done)
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}

	ledger, err := risk.NewLedger(a.ledgerCfg, a.now())
	if err != nil {
		a.logf("ERROR", "risk ledger: %v", err)
		a.Stop()
		return
	}
	router := portfolio.NewRouter(a.gateway, ledger, a.routerCfg, a.publish, a.now).WithMetrics(a.metrics)
	a.logf("INFO", "trading loop started")

	for ctx.Err() == nil {
		wait := a.interval
		if err := a.safeCycle(ctx, ledger, router); err != nil {
			a.metrics.CycleError()
			a.logf("ERROR", "cycle failed: %v; retrying in %s", err, a.backoff)
			wait = a.backoff
		} else if ctx.Err() == nil {
			a.logf("INFO", "cycle finished, next in %s", wait)
		}
		if !sleep(ctx, wait) {
			break
		}
	}
	a.logf("INFO", "trading loop terminated")
}

// sleep waits for d or cancellation. It reports false when cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (a *Agent) safeCycle(ctx context.Context, ledger *risk.Ledger, router *portfolio.Router) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.cycle(ctx, ledger, router)
}

func (a *Agent) cycle(ctx context.Context, ledger *risk.Ledger, router *portfolio.Router) error {
	started := time.Now()
	defer func() { a.metrics.CycleDuration(time.Since(started).Seconds()) }()

	if ledger.RolloverIfDue(a.now()) {
		a.logf("INFO", "new trading day, daily risk budget reset")
	}
	a.refreshBalance(ctx, ledger)

	end := a.now().UTC()
	start := end.Add(-a.lookback)
	for _, symbol := range a.symbols {
		if ctx.Err() != nil {
			return nil
		}
		series, err := a.source.FetchHistoricalData(ctx, symbol, a.timeframe, start, end)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, model.ErrConfiguration) {
			return err
		}
		if err != nil || series.Empty() {
			a.logf("WARN", "no data for %s: %v", symbol, err)
			continue
		}
		a.mark(symbol, series)

		decision := a.engine.Evaluate(series)
		a.metrics.Signal(symbol, string(decision.Signal))
		a.logf("INFO", "%s: %d bars, signal %s (%s)", symbol, series.Len(), decision.Signal, decision.Reason)

		if !router.ProcessSignal(ctx, decision.Signal, symbol, series) {
			a.logf("WARN", "daily risk limit reached, stopping agent")
			a.Stop()
			return nil
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return router.ManageOpenPositions(ctx)
}

// mark revalues a simulated position at the latest close so stops and equity
// follow the market.
func (a *Agent) mark(symbol string, series model.PriceSeries) {
	m, ok := a.gateway.(broker.PriceMarker)
	if !ok {
		return
	}
	if last, ok := series.Last(); ok {
		m.MarkPrice(symbol, last.Close)
	}
}

func (a *Agent) refreshBalance(ctx context.Context, ledger *risk.Ledger) {
	acct, err := a.gateway.GetAccountSummary(ctx)
	if err != nil || acct == nil {
		a.logf("WARN", "account summary unavailable: %v", err)
		return
	}
	if acct.Equity <= 0 {
		a.logf("WARN", "broker reported non-positive equity %.2f", acct.Equity)
		return
	}
	ledger.UpdateAccountBalance(acct.Equity)
	a.metrics.SetBalance(acct.Equity)
	a.publish(model.BalanceEvent(a.now(), acct.Equity))
}
