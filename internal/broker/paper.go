package broker

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeSentinel/internal/model"
)

type paperPosition struct {
	qty        float64 // signed: negative is short
	avgEntry   float64
	mark       float64
	stopLoss   *float64
	takeProfit *float64
}

// PaperGateway is an in-memory venue. Orders fill immediately at the
// reference price (limit price for limit orders).
type PaperGateway struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*paperPosition
	now       func() time.Time
}

// NewPaperGateway starts with cash and no positions. now defaults to time.Now.
func NewPaperGateway(cash float64, now func() time.Time) *PaperGateway {
	if now == nil {
		now = time.Now
	}
	return &PaperGateway{
		cash:      cash,
		positions: make(map[string]*paperPosition),
		now:       now,
	}
}

func (g *PaperGateway) Name() string { return NamePaper }

// MarkPrice revalues an open position.
func (g *PaperGateway) MarkPrice(symbol string, price float64) {
	if !model.ValidClose(price) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.positions[symbol]; ok {
		p.mark = price
	}
}

func (g *PaperGateway) fillPrice(req model.OrderRequest) (float64, error) {
	switch req.Type {
	case "", model.OrderTypeMarket:
		if !model.ValidClose(req.ReferencePrice) {
			return 0, fmt.Errorf("market order needs a reference price")
		}
		return req.ReferencePrice, nil
	case model.OrderTypeLimit:
		return *req.LimitPrice, nil
	default:
		return 0, fmt.Errorf("%s orders are not simulated", req.Type)
	}
}

func (g *PaperGateway) PlaceOrder(_ context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return nil, &model.ExecutionError{Op: "place_order", Symbol: req.Symbol, Err: err}
	}
	px, err := g.fillPrice(req)
	if err != nil {
		return nil, &model.ExecutionError{Op: "place_order", Symbol: req.Symbol, Err: err}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	signed := req.Quantity
	if req.Side == model.OrderSideSell {
		signed = -signed
	}
	g.cash -= signed * px

	p, ok := g.positions[req.Symbol]
	if !ok {
		p = &paperPosition{}
		g.positions[req.Symbol] = p
	}
	switch {
	case p.qty == 0 || math.Signbit(p.qty) == math.Signbit(signed):
		total := p.qty + signed
		p.avgEntry = (p.avgEntry*math.Abs(p.qty) + px*math.Abs(signed)) / math.Abs(total)
		p.qty = total
		p.stopLoss, p.takeProfit = req.StopLoss, req.TakeProfit
	case math.Abs(signed) > math.Abs(p.qty):
		// Flipped through flat: the remainder opens at the fill price.
		p.qty += signed
		p.avgEntry = px
		p.stopLoss, p.takeProfit = req.StopLoss, req.TakeProfit
	default:
		p.qty += signed
	}
	p.mark = px
	if math.Abs(p.qty) < 1e-12 {
		delete(g.positions, req.Symbol)
	}

	id := uuid.NewString()
	log.Printf("[INFO] paper fill %s: %s %.4f %s @ %.4f", id, req.Side, req.Quantity, req.Symbol, px)
	return &model.OrderResult{
		ID:          id,
		ClientID:    id,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Quantity:    req.Quantity,
		Status:      "filled",
		FilledPrice: model.KnownAmount(px),
		SubmittedAt: g.now().UTC(),
	}, nil
}

// CancelOrder always fails: paper orders fill on submission.
func (g *PaperGateway) CancelOrder(_ context.Context, orderID string) bool {
	log.Printf("[WARN] paper cancel %s: order already filled", orderID)
	return false
}

func (g *PaperGateway) GetOpenPositions(_ context.Context) ([]model.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.Position, 0, len(g.positions))
	for sym, p := range g.positions {
		side := model.SideLong
		if p.qty < 0 {
			side = model.SideShort
		}
		pos := model.Position{
			Symbol:       sym,
			Side:         side,
			Quantity:     math.Abs(p.qty),
			EntryPrice:   p.avgEntry,
			MarketValue:  model.KnownAmount(p.qty * p.mark),
			UnrealizedPL: model.KnownAmount(p.qty * (p.mark - p.avgEntry)),
		}
		if p.stopLoss != nil {
			pos.StopLoss = model.KnownAmount(*p.stopLoss)
		}
		if p.takeProfit != nil {
			pos.TakeProfit = model.KnownAmount(*p.takeProfit)
		}
		out = append(out, pos)
	}
	sortPositions(out)
	return out, nil
}

func (g *PaperGateway) GetAccountSummary(_ context.Context) (*model.AccountSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	equity := g.cash
	for _, p := range g.positions {
		equity += p.qty * p.mark
	}
	return &model.AccountSummary{
		Equity:      equity,
		BuyingPower: math.Max(g.cash, 0),
		Cash:        g.cash,
		Currency:    "USD",
	}, nil
}

func (g *PaperGateway) ClosePosition(_ context.Context, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.positions[symbol]
	if !ok {
		return &model.ExecutionError{Op: "close_position", Symbol: symbol, Err: fmt.Errorf("no open position")}
	}
	g.cash += p.qty * p.mark
	delete(g.positions, symbol)
	log.Printf("[INFO] paper closed %s at %.4f", symbol, p.mark)
	return nil
}

func sortPositions(ps []model.Position) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Symbol < ps[j].Symbol })
}
