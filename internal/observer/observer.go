package observer

import (
	"context"
	"log"
	"sync"
	"time"

	"TradeSentinel/internal/model"
)

// DefaultLogLimit bounds the recent log kept in memory.
const DefaultLogLimit = 200

// SinkQueueSize is the per-sink backlog. A sink that falls further behind loses events.
const SinkQueueSize = 256

// Sink receives every event after the local model has been updated.
// Each sink runs on its own goroutine, in event order.
type Sink interface {
	Name() string
	Handle(ctx context.Context, e model.AgentEvent) error
}

// LogLine is one mirrored agent log message.
type LogLine struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// State is the observer's view of the agent, rebuilt purely from events.
type State struct {
	Status    model.AgentStatus `json:"status"`
	Balance   float64           `json:"balance"`
	Positions []model.Position  `json:"positions"`
	Logs      []LogLine         `json:"logs"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Observer drains the agent's event channel.
type Observer struct {
	mu       sync.RWMutex
	state    State
	logLimit int
	sinks    []Sink
}

// New returns an observer that reports Stopped until told otherwise.
func New(logLimit int, sinks ...Sink) *Observer {
	if logLimit <= 0 {
		logLimit = DefaultLogLimit
	}
	return &Observer{
		state:    State{Status: model.StatusStopped},
		logLimit: logLimit,
		sinks:    sinks,
	}
}

// AddSink registers s. Sinks added after Run has started are not served.
func (o *Observer) AddSink(s Sink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sinks = append(o.sinks, s)
}

type sinkQueue struct {
	sink Sink
	ch   chan model.AgentEvent
}

// Run consumes events until ctx is cancelled or the channel closes. Sinks
// drain their queues before Run returns.
func (o *Observer) Run(ctx context.Context, events <-chan model.AgentEvent) error {
	o.mu.RLock()
	queues := make([]sinkQueue, len(o.sinks))
	for i, s := range o.sinks {
		queues[i] = sinkQueue{sink: s, ch: make(chan model.AgentEvent, SinkQueueSize)}
	}
	o.mu.RUnlock()

	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		go func(q sinkQueue) {
			defer wg.Done()
			for e := range q.ch {
				if err := q.sink.Handle(ctx, e); err != nil {
					log.Printf("[ERROR] sink %s: %v", q.sink.Name(), err)
				}
			}
		}(q)
	}
	defer func() {
		for _, q := range queues {
			close(q.ch)
		}
		wg.Wait()
	}()

	log.Println("[INFO] observer started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[INFO] observer stopped")
			return nil
		case e, ok := <-events:
			if !ok {
				log.Println("[INFO] event stream closed")
				return nil
			}
			o.Apply(e)
			dispatch(queues, e)
		}
	}
}

// Apply folds one event into the local model.
func (o *Observer) Apply(e model.AgentEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch e.Kind {
	case model.EventLog:
		o.state.Logs = append(o.state.Logs, LogLine{Time: e.Time, Text: e.Text})
		if over := len(o.state.Logs) - o.logLimit; over > 0 {
			o.state.Logs = append([]LogLine(nil), o.state.Logs[over:]...)
		}
	case model.EventStatus:
		o.state.Status = e.Status
	case model.EventPositions:
		o.state.Positions = model.ClonePositions(e.Positions)
	case model.EventBalance:
		o.state.Balance = e.Balance
	default:
		log.Printf("[WARN] observer: unknown event kind %q", e.Kind)
		return
	}
	o.state.UpdatedAt = e.Time
}

// dispatch never waits on a sink.
func dispatch(queues []sinkQueue, e model.AgentEvent) {
	for _, q := range queues {
		select {
		case q.ch <- e:
		default:
			log.Printf("[WARN] sink %s is behind, dropped %s event", q.sink.Name(), e.Kind)
		}
	}
}

// Snapshot returns a copy of the current state.
func (o *Observer) Snapshot() State {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := o.state
	s.Positions = model.ClonePositions(o.state.Positions)
	s.Logs = append([]LogLine(nil), o.state.Logs...)
	return s
}
