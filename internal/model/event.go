package model

import "time"

// EventKind tags the AgentEvent variant.
type EventKind string

const (
	EventLog       EventKind = "log"
	EventStatus    EventKind = "status"
	EventPositions EventKind = "positions"
	EventBalance   EventKind = "balance"
)

// AgentStatus is the controller lifecycle state.
type AgentStatus string

const (
	StatusRunning AgentStatus = "Running"
	StatusStopped AgentStatus = "Stopped"
)

// AgentEvent is published by the agent to its observer. Only the field matching
// Kind is meaningful. Events are immutable once published.
type AgentEvent struct {
	Kind      EventKind   `json:"kind"`
	Time      time.Time   `json:"time"`
	Text      string      `json:"text,omitempty"`
	Status    AgentStatus `json:"status,omitempty"`
	Positions []Position  `json:"positions,omitempty"`
	Balance   float64     `json:"balance,omitempty"`
}

func LogEvent(now time.Time, text string) AgentEvent {
	return AgentEvent{Kind: EventLog, Time: now.UTC(), Text: text}
}

func StatusEvent(now time.Time, status AgentStatus) AgentEvent {
	return AgentEvent{Kind: EventStatus, Time: now.UTC(), Status: status}
}

// PositionsEvent copies the snapshot so later ledger mutations cannot leak into it.
func PositionsEvent(now time.Time, positions []Position) AgentEvent {
	return AgentEvent{Kind: EventPositions, Time: now.UTC(), Positions: ClonePositions(positions)}
}

func BalanceEvent(now time.Time, balance float64) AgentEvent {
	return AgentEvent{Kind: EventBalance, Time: now.UTC(), Balance: balance}
}
