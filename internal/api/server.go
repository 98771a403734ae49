// Package api serves run status over HTTP and triggers scheduled runs.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/danielorf/ArtCaptionBot/internal/pipeline"
)

// Runner executes one pipeline run. *pipeline.Controller implements it.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunReport, error)
}

// Status is the body of GET /api/status
type Status struct {
	Running   bool                `json:"running"`
	Step      pipeline.Step       `json:"step,omitempty"`
	Runs      int                 `json:"runs"`
	Failures  int                 `json:"failures"`
	LastRun   *pipeline.RunReport `json:"last_run,omitempty"`
	LastError string              `json:"last_error,omitempty"`
	Schedule  string              `json:"schedule,omitempty"`
	NextRun   *time.Time          `json:"next_run,omitempty"`
}

// Server owns the HTTP listener, the cron scheduler and the single run slot
type Server struct {
	runner     Runner
	logger     *slog.Logger
	httpServer *http.Server
	engine     *gin.Engine
	cron       *cron.Cron
	cronID     cron.EntryID
	schedule   string

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	closed  bool
	status  Status
}

var (
	errRunInProgress = errors.New("a run is already in progress")
	errShuttingDown  = errors.New("server is shutting down")
)

// NewServer creates a server listening on addr
func NewServer(runner Runner, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:  runner,
		logger:  logger.With("component", "api"),
		cron:    cron.New(),
		baseCtx: ctx,
		cancel:  cancel,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", s.handleHealth)
	r.GET("/api/status", s.handleStatus)
	r.POST("/api/run", s.handleRun)
	s.engine = r

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetStep records the current pipeline step; pass it to Controller.OnStep
func (s *Server) SetStep(step pipeline.Step) {
	s.mu.Lock()
	s.status.Step = step
	s.mu.Unlock()
}

// Start serves HTTP in the background. Listener errors are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	s.logger.Info("starting server", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// StartCron schedules runs with a standard five-field cron expression
func (s *Server) StartCron(schedule string) error {
	id, err := s.cron.AddFunc(schedule, func() {
		if !s.TryRun() {
			s.logger.Info("scheduled run skipped: a run is in progress")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	s.cronID = id
	s.schedule = schedule
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("cron started", "schedule", schedule)
	return nil
}

// TryRun starts a run in the background unless one is already in progress
// or the server is shutting down
func (s *Server) TryRun() bool {
	return s.startRun() == nil
}

func (s *Server) startRun() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errShuttingDown
	}
	if s.running {
		s.mu.Unlock()
		return errRunInProgress
	}
	s.running = true
	s.status.Step = pipeline.StepInit
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		report, err := s.runner.Run(s.baseCtx)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		s.status.Runs++
		s.status.LastRun = report
		s.status.LastError = ""
		if err != nil {
			s.status.Failures++
			s.status.LastError = err.Error()
			s.logger.Error("run failed", "error", err)
			return
		}
		if report != nil && report.Publication != nil {
			s.logger.Info("run finished", "publication", report.Publication.ID, "duration", report.Duration)
		}
	}()
	return nil
}

// Snapshot returns the current status
func (s *Server) Snapshot() Status {
	s.mu.Lock()
	st := s.status
	st.Running = s.running
	st.Schedule = s.schedule
	id := s.cronID
	s.mu.Unlock()

	if id != 0 {
		if next := s.cron.Entry(id).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}

// Shutdown stops the scheduler, cancels an in-flight run and closes the listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	<-s.cron.Stop().Done()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for run: %w", ctx.Err())
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Snapshot())
}

func (s *Server) handleRun(c *gin.Context) {
	switch err := s.startRun(); {
	case errors.Is(err, errShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
