package recorder

import (
	"context"
	"fmt"
	"time"

	"TradeSentinel/internal/model"
)

// Recorder persists the agent's event journal for later analysis.
// It is write-only: nothing is ever read back into the agent.
type Recorder interface {
	RecordEvent(e model.AgentEvent) error
	RecordPositions(at time.Time, positions []model.Position) error
	RecordBalance(at time.Time, balance float64) error
	Close() error
}

// Sink feeds observer events into a Recorder.
type Sink struct {
	rec Recorder
}

func NewSink(rec Recorder) *Sink { return &Sink{rec: rec} }

func (s *Sink) Name() string { return "journal" }

// Handle journals every event, plus the typed tables for positions and balances.
func (s *Sink) Handle(_ context.Context, e model.AgentEvent) error {
	if err := s.rec.RecordEvent(e); err != nil {
		return fmt.Errorf("record %s event: %w", e.Kind, err)
	}
	switch e.Kind {
	case model.EventPositions:
		if err := s.rec.RecordPositions(e.Time, e.Positions); err != nil {
			return fmt.Errorf("record positions: %w", err)
		}
	case model.EventBalance:
		if err := s.rec.RecordBalance(e.Time, e.Balance); err != nil {
			return fmt.Errorf("record balance: %w", err)
		}
	}
	return nil
}
