package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// Gateway is the order venue the agent trades through.
// PlaceOrder returns nil and an error for ordinary rejections; it never panics.
type Gateway interface {
	Name() string
	PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) bool
	GetOpenPositions(ctx context.Context) ([]model.Position, error)
	GetAccountSummary(ctx context.Context) (*model.AccountSummary, error)
	ClosePosition(ctx context.Context, symbol string) error
}

// PriceMarker is implemented by simulated venues that value positions from observed prices.
type PriceMarker interface {
	MarkPrice(symbol string, price float64)
}

// Broker names accepted by New.
const (
	NamePaper  = "paper"
	NameAlpaca = "alpaca"
)

// Config selects and configures a Gateway. Credentials are never logged.
type Config struct {
	Name        string
	APIKey      string
	APISecret   string
	BaseURL     string
	InitialCash float64
	Timeout     time.Duration
}

// String omits credentials.
func (c Config) String() string {
	return fmt.Sprintf("broker(%s, base_url=%s)", c.Name, c.BaseURL)
}

// New builds the Gateway named by cfg.Name. Unknown names and missing
// credentials fail here, before any loop starts.
func New(cfg Config) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case NamePaper:
		if cfg.InitialCash <= 0 {
			return nil, &model.ConfigError{Field: "initial_balance", Reason: "paper broker needs a positive starting cash"}
		}
		return NewPaperGateway(cfg.InitialCash, nil), nil
	case NameAlpaca:
		if cfg.APIKey == "" || cfg.APISecret == "" {
			return nil, &model.ConfigError{Field: "broker.credentials", Reason: "alpaca api key and secret are required"}
		}
		return NewAlpacaGateway(cfg.APIKey, cfg.APISecret, cfg.BaseURL, cfg.Timeout), nil
	case "":
		return nil, &model.ConfigError{Field: "broker", Reason: "not set"}
	default:
		return nil, &model.ConfigError{Field: "broker", Reason: fmt.Sprintf("unsupported broker %q", cfg.Name)}
	}
}

func validateOrder(req model.OrderRequest) error {
	switch {
	case strings.TrimSpace(req.Symbol) == "":
		return fmt.Errorf("symbol is required")
	case req.Quantity <= 0:
		return fmt.Errorf("quantity must be positive, got %v", req.Quantity)
	case req.Side != model.OrderSideBuy && req.Side != model.OrderSideSell:
		return fmt.Errorf("unknown side %q", req.Side)
	case (req.Type == model.OrderTypeLimit || req.Type == model.OrderTypeStopLimit) && req.LimitPrice == nil:
		return fmt.Errorf("%s order requires a limit price", req.Type)
	case (req.Type == model.OrderTypeStop || req.Type == model.OrderTypeStopLimit) && req.StopPrice == nil:
		return fmt.Errorf("%s order requires a stop price", req.Type)
	}
	return nil
}
