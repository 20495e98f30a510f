package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"TradeSentinel/internal/agent"
	"TradeSentinel/internal/config"
	"TradeSentinel/internal/metrics"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/observer"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/scheduler"
	"TradeSentinel/internal/server"
)

const stopTimeout = 15 * time.Second

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] TradeSentinel starting...")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	m := metrics.New()
	ag, err := agent.New(cfg, agent.Deps{Metrics: m})
	if err != nil {
		log.Fatalf("[FATAL] init agent: %v", err)
	}

	obs := observer.New(observer.DefaultLogLimit)
	hub := server.NewHub()
	obs.AddSink(hub)

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()
	obs.AddSink(recorder.NewSink(rec))

	var tn *notifier.TelegramNotifier
	var messenger scheduler.Messenger
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		obs.AddSink(notifier.NewSink(tn))
		messenger = tn
	} else {
		log.Println("[INFO] Telegram not configured, notifications disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(ctx, ag, obs, messenger)
	if err := sched.RegisterAll(cfg.Schedule.DailySummaryCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	srv, err := server.New(server.Config{
		Addr:     cfg.HTTP.Addr,
		Agent:    ag,
		Observer: obs,
		Hub:      hub,
		Metrics:  m,
	})
	if err != nil {
		log.Fatalf("[FATAL] init http server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return obs.Run(gctx, ag.Events()) })
	g.Go(func() error { return srv.Start(gctx) })
	if tn != nil {
		g.Go(func() error {
			tn.StartPolling(gctx, sched.HandleCommand)
			return nil
		})
		log.Println("[INFO] Telegram polling started")
	}
	g.Go(func() error {
		<-gctx.Done()
		if ag.Running() {
			ag.Stop()
		}
		select {
		case <-ag.Done():
		case <-time.After(stopTimeout):
			log.Printf("[WARN] agent did not stop within %s", stopTimeout)
		}
		return nil
	})

	if os.Getenv("AGENT_AUTOSTART") == "true" {
		log.Println("[INFO] AGENT_AUTOSTART enabled, starting agent")
		ag.Start()
	}
	log.Printf("[INFO] TradeSentinel is running on %s. Press Ctrl+C to stop.", srv.Addr())

	if err := g.Wait(); err != nil {
		log.Printf("[ERROR] %v", err)
	}
	log.Println("[INFO] TradeSentinel stopped")
}
