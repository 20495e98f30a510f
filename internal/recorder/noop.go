package recorder

import (
	"time"

	"TradeSentinel/internal/model"
)

// NoopRecorder is used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordEvent(_ model.AgentEvent) error                  { return nil }
func (n *NoopRecorder) RecordPositions(_ time.Time, _ []model.Position) error { return nil }
func (n *NoopRecorder) RecordBalance(_ time.Time, _ float64) error            { return nil }
func (n *NoopRecorder) Close() error                                          { return nil }
