package notifier

import (
	"context"
	"fmt"
	"strings"

	"TradeSentinel/internal/model"
)

const sinkRetries = 2

// Sink forwards status changes and position changes to Telegram.
// Log and balance events are not sent.
type Sink struct {
	notifier *TelegramNotifier

	lastPositions string
}

func NewSink(n *TelegramNotifier) *Sink { return &Sink{notifier: n} }

func (s *Sink) Name() string { return "telegram" }

func (s *Sink) Handle(ctx context.Context, e model.AgentEvent) error {
	var text string
	switch e.Kind {
	case model.EventStatus:
		text = FormatStatusChange(e.Status)
	case model.EventPositions:
		// The agent republishes the snapshot every cycle; only changes are sent.
		key := positionsKey(e.Positions)
		if key == s.lastPositions {
			return nil
		}
		s.lastPositions = key
		text = FormatPositions(e.Positions)
	default:
		return nil
	}
	return s.notifier.SendWithRetry(ctx, text, sinkRetries)
}

func positionsKey(ps []model.Position) string {
	var b strings.Builder
	for _, p := range ps {
		fmt.Fprintf(&b, "%s/%s/%g;", p.Symbol, p.Side, p.Quantity)
	}
	return b.String()
}
