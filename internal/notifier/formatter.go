package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/observer"
)

// FormatStatusChange formats a lifecycle transition.
func FormatStatusChange(status model.AgentStatus) string {
	if status == model.StatusRunning {
		return "🟢 <b>TradeSentinel</b> agent started"
	}
	return "🔴 <b>TradeSentinel</b> agent stopped"
}

// FormatPositions lists open positions, one line each.
func FormatPositions(positions []model.Position) string {
	if len(positions) == 0 {
		return "📭 No open positions"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>Open positions</b> (%d)\n\n", len(positions)))
	for _, p := range positions {
		b.WriteString(fmt.Sprintf("<b>%s</b> %s %.4f @ %.2f\n", html.EscapeString(p.Symbol), p.Side, p.Quantity, p.EntryPrice))
		b.WriteString(fmt.Sprintf("   stop %s | target %s | P/L %s\n", p.StopLoss, p.TakeProfit, p.UnrealizedPL))
	}
	return b.String()
}

// FormatStatus formats the observer state for the /status command.
func FormatStatus(s observer.State) string {
	var b strings.Builder
	icon := "🔴"
	if s.Status == model.StatusRunning {
		icon = "🟢"
	}
	b.WriteString(fmt.Sprintf("%s <b>Agent %s</b>\n\n", icon, s.Status))
	b.WriteString(fmt.Sprintf("Balance: %.2f\n", s.Balance))
	b.WriteString(fmt.Sprintf("Open positions: %d\n", len(s.Positions)))
	if n := len(s.Logs); n > 0 {
		b.WriteString(fmt.Sprintf("Last log: %s\n", html.EscapeString(s.Logs[n-1].Text)))
	}
	if !s.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Updated: %s UTC\n", s.UpdatedAt.UTC().Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatDailySummary formats the end-of-day report.
func FormatDailySummary(s observer.State, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>TradeSentinel daily summary</b> | %s\n\n", now.UTC().Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Status: %s\n", s.Status))
	b.WriteString(fmt.Sprintf("Balance: %.2f\n", s.Balance))

	var pl float64
	unknown := 0
	for _, p := range s.Positions {
		if p.UnrealizedPL.Known {
			pl += p.UnrealizedPL.Value
		} else {
			unknown++
		}
	}
	b.WriteString(fmt.Sprintf("Open positions: %d\n", len(s.Positions)))
	if len(s.Positions) > 0 {
		b.WriteString(fmt.Sprintf("Unrealized P/L: %+.2f", pl))
		if unknown > 0 {
			b.WriteString(fmt.Sprintf(" (%d unknown)", unknown))
		}
		b.WriteString("\n\n")
		b.WriteString(FormatPositions(s.Positions))
	}
	return b.String()
}
