package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/observer"

	"github.com/robfig/cron/v3"
)

// Controller is the part of the agent the command surface drives.
type Controller interface {
	Start()
	Stop()
	Running() bool
}

// Messenger delivers scheduled reports. *notifier.TelegramNotifier satisfies it.
type Messenger interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs cron jobs and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Agent    Controller
	Observer *observer.Observer
	Notifier Messenger
	Ctx      context.Context

	now func() time.Time
}

// NewScheduler creates a scheduler whose cron specs carry a seconds field and run in UTC.
// notifier may be nil, in which case reports are only logged.
func NewScheduler(ctx context.Context, agent Controller, obs *observer.Observer, notifier Messenger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		Agent:    agent,
		Observer: obs,
		Notifier: notifier,
		Ctx:      ctx,
		now:      time.Now,
	}
}

// RegisterAll registers the daily summary job.
func (s *Scheduler) RegisterAll(dailySummaryCron string) error {
	if _, err := s.Cron.AddFunc(dailySummaryCron, s.dailySummary); err != nil {
		return fmt.Errorf("register daily summary: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunDailySummaryNow sends the summary immediately.
func (s *Scheduler) RunDailySummaryNow() {
	s.dailySummary()
}

func (s *Scheduler) dailySummary() {
	log.Println("[INFO] running daily summary")
	s.trySend(notifier.FormatDailySummary(s.Observer.Snapshot(), s.now()))
}

// HandleCommand processes a chat command and returns the reply.
func (s *Scheduler) HandleCommand(command string) string {
	cmd := strings.ToLower(strings.TrimSpace(command))
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i] // "/status@SomeBot"
	}
	switch cmd {
	case "/start":
		if s.Agent.Running() {
			return "Agent is already running"
		}
		s.Agent.Start()
		return "▶️ Agent starting"
	case "/stop":
		if !s.Agent.Running() {
			return "Agent is already stopped"
		}
		s.Agent.Stop()
		return "⏹ Agent stopping"
	case "/status":
		return notifier.FormatStatus(s.Observer.Snapshot())
	case "/positions":
		return notifier.FormatPositions(s.Observer.Snapshot().Positions)
	case "/summary":
		return notifier.FormatDailySummary(s.Observer.Snapshot(), s.now())
	default:
		return "Available commands:\n• /start\n• /stop\n• /status\n• /positions\n• /summary"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		log.Printf("[INFO] report (no notifier configured):\n%s", text)
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
