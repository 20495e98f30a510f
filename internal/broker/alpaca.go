package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"TradeSentinel/internal/model"
)

// AlpacaPaperURL is the default trading endpoint.
const AlpacaPaperURL = "https://paper-api.alpaca.markets"

// AlpacaGateway talks to the Alpaca trading REST API v2.
type AlpacaGateway struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
}

// NewAlpacaGateway creates a client. An empty baseURL targets paper trading.
func NewAlpacaGateway(apiKey, apiSecret, baseURL string, timeout time.Duration) *AlpacaGateway {
	if baseURL == "" {
		baseURL = AlpacaPaperURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AlpacaGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: timeout},
	}
}

func (g *AlpacaGateway) Name() string { return NameAlpaca }

type alpacaTakeProfit struct {
	LimitPrice decimal.Decimal `json:"limit_price"`
}

type alpacaStopLoss struct {
	StopPrice decimal.Decimal `json:"stop_price"`
}

type alpacaOrderRequest struct {
	Symbol        string            `json:"symbol"`
	Qty           decimal.Decimal   `json:"qty"`
	Side          string            `json:"side"`
	Type          string            `json:"type"`
	TimeInForce   string            `json:"time_in_force"`
	LimitPrice    *decimal.Decimal  `json:"limit_price,omitempty"`
	StopPrice     *decimal.Decimal  `json:"stop_price,omitempty"`
	ClientOrderID string            `json:"client_order_id"`
	OrderClass    string            `json:"order_class,omitempty"`
	TakeProfit    *alpacaTakeProfit `json:"take_profit,omitempty"`
	StopLoss      *alpacaStopLoss   `json:"stop_loss,omitempty"`
}

type alpacaOrder struct {
	ID             string              `json:"id"`
	ClientOrderID  string              `json:"client_order_id"`
	Symbol         string              `json:"symbol"`
	Side           string              `json:"side"`
	Qty            decimal.NullDecimal `json:"qty"`
	Status         string              `json:"status"`
	FilledAvgPrice decimal.NullDecimal `json:"filled_avg_price"`
	SubmittedAt    time.Time           `json:"submitted_at"`
}

type alpacaPosition struct {
	Symbol        string              `json:"symbol"`
	Qty           decimal.NullDecimal `json:"qty"`
	Side          string              `json:"side"`
	AvgEntryPrice decimal.NullDecimal `json:"avg_entry_price"`
	MarketValue   decimal.NullDecimal `json:"market_value"`
	UnrealizedPL  decimal.NullDecimal `json:"unrealized_pl"`
}

type alpacaAccount struct {
	Equity      decimal.NullDecimal `json:"equity"`
	BuyingPower decimal.NullDecimal `json:"buying_power"`
	Cash        decimal.NullDecimal `json:"cash"`
	Currency    string              `json:"currency"`
}

// price rounds to the cent, as Alpaca rejects sub-penny prices above $1.
func price(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func pricePtr(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := price(*v)
	return &d
}

func amount(d decimal.NullDecimal) model.Amount {
	if !d.Valid {
		return model.Amount{}
	}
	return model.KnownAmount(d.Decimal.InexactFloat64())
}

func (g *AlpacaGateway) buildOrder(req model.OrderRequest) (alpacaOrderRequest, error) {
	tif := req.TimeInForce
	if tif == "" {
		tif = model.TimeInForceGTC
	}
	typ := req.Type
	if typ == "" {
		typ = model.OrderTypeMarket
	}
	out := alpacaOrderRequest{
		Symbol:        req.Symbol,
		Qty:           decimal.NewFromFloat(req.Quantity),
		Side:          string(req.Side),
		Type:          string(typ),
		TimeInForce:   string(tif),
		LimitPrice:    pricePtr(req.LimitPrice),
		StopPrice:     pricePtr(req.StopPrice),
		ClientOrderID: uuid.NewString(),
	}
	if req.StopLoss != nil || req.TakeProfit != nil {
		out.OrderClass = "bracket"
		if req.TakeProfit != nil {
			out.TakeProfit = &alpacaTakeProfit{LimitPrice: price(*req.TakeProfit)}
		}
		if req.StopLoss != nil {
			out.StopLoss = &alpacaStopLoss{StopPrice: price(*req.StopLoss)}
		}
	}
	// Fractional quantities are only accepted on simple day orders.
	if out.OrderClass != "" || tif != model.TimeInForceDay {
		out.Qty = out.Qty.Truncate(0)
	}
	if !out.Qty.IsPositive() {
		return out, fmt.Errorf("quantity %v rounds to zero shares", req.Quantity)
	}
	return out, nil
}

func (g *AlpacaGateway) PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return nil, &model.ExecutionError{Op: "place_order", Symbol: req.Symbol, Err: err}
	}
	body, err := g.buildOrder(req)
	if err != nil {
		return nil, &model.ExecutionError{Op: "place_order", Symbol: req.Symbol, Err: err}
	}

	var o alpacaOrder
	if err := g.do(ctx, http.MethodPost, "/v2/orders", body, &o); err != nil {
		return nil, &model.ExecutionError{Op: "place_order", Symbol: req.Symbol, Err: err}
	}
	log.Printf("[INFO] alpaca order %s accepted: %s %s %s (%s)", o.ID, o.Side, o.Qty.Decimal.String(), o.Symbol, o.Status)

	qty := body.Qty.InexactFloat64()
	if o.Qty.Valid {
		qty = o.Qty.Decimal.InexactFloat64()
	}
	return &model.OrderResult{
		ID:          o.ID,
		ClientID:    o.ClientOrderID,
		Symbol:      o.Symbol,
		Side:        model.OrderSide(o.Side),
		Quantity:    qty,
		Status:      o.Status,
		FilledPrice: amount(o.FilledAvgPrice),
		SubmittedAt: o.SubmittedAt.UTC(),
	}, nil
}

func (g *AlpacaGateway) CancelOrder(ctx context.Context, orderID string) bool {
	if err := g.do(ctx, http.MethodDelete, "/v2/orders/"+url.PathEscape(orderID), nil, nil); err != nil {
		log.Printf("[WARN] alpaca cancel %s: %v", orderID, err)
		return false
	}
	return true
}

func (g *AlpacaGateway) GetOpenPositions(ctx context.Context) ([]model.Position, error) {
	var raw []alpacaPosition
	if err := g.do(ctx, http.MethodGet, "/v2/positions", nil, &raw); err != nil {
		return nil, fmt.Errorf("alpaca positions: %w", err)
	}
	out := make([]model.Position, 0, len(raw))
	for _, p := range raw {
		pos := model.Position{
			Symbol:       p.Symbol,
			Side:         model.SideUnknown,
			MarketValue:  amount(p.MarketValue),
			UnrealizedPL: amount(p.UnrealizedPL),
		}
		switch p.Side {
		case "long":
			pos.Side = model.SideLong
		case "short":
			pos.Side = model.SideShort
		}
		if p.Qty.Valid {
			pos.Quantity = p.Qty.Decimal.Abs().InexactFloat64()
		}
		if p.AvgEntryPrice.Valid {
			pos.EntryPrice = p.AvgEntryPrice.Decimal.InexactFloat64()
		}
		out = append(out, pos)
	}
	return out, nil
}

func (g *AlpacaGateway) GetAccountSummary(ctx context.Context) (*model.AccountSummary, error) {
	var a alpacaAccount
	if err := g.do(ctx, http.MethodGet, "/v2/account", nil, &a); err != nil {
		return nil, fmt.Errorf("alpaca account: %w", err)
	}
	return &model.AccountSummary{
		Equity:      a.Equity.Decimal.InexactFloat64(),
		BuyingPower: a.BuyingPower.Decimal.InexactFloat64(),
		Cash:        a.Cash.Decimal.InexactFloat64(),
		Currency:    a.Currency,
	}, nil
}

func (g *AlpacaGateway) ClosePosition(ctx context.Context, symbol string) error {
	if err := g.do(ctx, http.MethodDelete, "/v2/positions/"+url.PathEscape(symbol), nil, nil); err != nil {
		return &model.ExecutionError{Op: "close_position", Symbol: symbol, Err: err}
	}
	log.Printf("[INFO] alpaca close requested for %s", symbol)
	return nil
}

func (g *AlpacaGateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("APCA-API-KEY-ID", g.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", g.apiSecret)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
