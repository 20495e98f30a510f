package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"TradeSentinel/internal/metrics"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/observer"
)

// Controller is the agent lifecycle the API drives.
type Controller interface {
	Start()
	Stop()
	Running() bool
}

// Config describes the server's dependencies. Hub and Metrics are optional.
type Config struct {
	Addr     string
	Agent    Controller
	Observer *observer.Observer
	Hub      *Hub
	Metrics  *metrics.Metrics
}

// Server is the HTTP control surface.
type Server struct {
	addr   string
	router *gin.Engine
	cfg    Config
}

// StatusResponse is the body of every /api/agent response.
type StatusResponse struct {
	Running bool              `json:"running"`
	Message string            `json:"message,omitempty"`
	State   observer.State    `json:"state"`
	Status  model.AgentStatus `json:"status"`
}

func New(cfg Config) (*Server, error) {
	if cfg.Agent == nil || cfg.Observer == nil {
		return nil, errors.New("http server requires an agent and an observer")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{addr: cfg.Addr, router: router, cfg: cfg}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api/agent")
	api.POST("/start", s.handleStart)
	api.POST("/stop", s.handleStop)
	api.GET("/status", s.handleStatus)

	if cfg.Hub != nil {
		router.GET("/ws", func(c *gin.Context) { cfg.Hub.ServeWS(c.Writer, c.Request) })
	}
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string { return s.addr }

func (s *Server) status(msg string) StatusResponse {
	running := s.cfg.Agent.Running()
	st := model.StatusStopped
	if running {
		st = model.StatusRunning
	}
	return StatusResponse{Running: running, Message: msg, State: s.cfg.Observer.Snapshot(), Status: st}
}

func (s *Server) handleStart(c *gin.Context) {
	if s.cfg.Agent.Running() {
		c.JSON(http.StatusOK, s.status("agent is already running"))
		return
	}
	s.cfg.Agent.Start()
	c.JSON(http.StatusAccepted, s.status("agent starting"))
}

func (s *Server) handleStop(c *gin.Context) {
	if !s.cfg.Agent.Running() {
		c.JSON(http.StatusOK, s.status("agent is already stopped"))
		return
	}
	s.cfg.Agent.Stop()
	c.JSON(http.StatusAccepted, s.status("agent stopping"))
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status(""))
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/healthz" {
			return
		}
		log.Printf("[INFO] HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] http server listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.cfg.Hub != nil {
			s.cfg.Hub.Close()
		}
		if err := srv.Shutdown(shCtx); err != nil {
			log.Printf("[WARN] http shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
