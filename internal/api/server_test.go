package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danielorf/ArtCaptionBot/internal/logging"
	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// blockingRunner runs until release is closed
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (b *blockingRunner) Run(ctx context.Context) (*pipeline.RunReport, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if b.err != nil {
		return &pipeline.RunReport{RunID: "r1"}, b.err
	}
	return &pipeline.RunReport{RunID: "r1", Publication: &model.Publication{ID: "tweet-1"}}, nil
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func waitIdle(t *testing.T, s *Server) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st := s.Snapshot(); !st.Running {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run did not finish")
	return Status{}
}

func TestHealth(t *testing.T) {
	s := NewServer(newBlockingRunner(), ":0", logging.Discard())
	rec := do(t, s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"status":"ok"}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestRun_ConflictWhileBusy(t *testing.T) {
	runner := newBlockingRunner()
	s := NewServer(runner, ":0", logging.Discard())

	if rec := do(t, s, http.MethodPost, "/api/run"); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	<-runner.started

	if rec := do(t, s, http.MethodPost, "/api/run"); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while busy, got %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api/status")
	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Running {
		t.Error("expected running status")
	}

	close(runner.release)
	st = waitIdle(t, s)
	if st.Runs != 1 || st.Failures != 0 {
		t.Errorf("unexpected counters %+v", st)
	}
	if st.LastRun == nil || st.LastRun.Publication.ID != "tweet-1" {
		t.Errorf("expected last run report, got %+v", st.LastRun)
	}
}

func TestRun_FailureRecorded(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = pipeline.ErrNoCandidateAvailable
	close(runner.release)
	s := NewServer(runner, ":0", logging.Discard())

	if !s.TryRun() {
		t.Fatal("expected run to start")
	}
	st := waitIdle(t, s)
	if st.Failures != 1 || st.LastError == "" {
		t.Errorf("expected failure recorded, got %+v", st)
	}
}

func TestSetStep(t *testing.T) {
	s := NewServer(newBlockingRunner(), ":0", logging.Discard())
	s.SetStep(pipeline.StepAnnotating)
	if got := s.Snapshot().Step; got != pipeline.StepAnnotating {
		t.Errorf("expected annotating, got %s", got)
	}
}

func TestStartCron(t *testing.T) {
	s := NewServer(newBlockingRunner(), ":0", logging.Discard())
	if err := s.StartCron("not a schedule"); err == nil {
		t.Error("expected invalid schedule error")
	}
	if err := s.StartCron("0 */4 * * *"); err != nil {
		t.Fatalf("StartCron failed: %v", err)
	}

	st := s.Snapshot()
	if st.Schedule != "0 */4 * * *" || st.NextRun == nil {
		t.Errorf("expected schedule and next run, got %+v", st)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestShutdown_CancelsInFlightRun(t *testing.T) {
	runner := newBlockingRunner()
	s := NewServer(runner, ":0", logging.Discard())
	s.TryRun()
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	st := s.Snapshot()
	if st.Running || st.LastError == "" {
		t.Errorf("expected canceled run recorded, got %+v", st)
	}
}

func TestRun_RefusedAfterShutdown(t *testing.T) {
	runner := newBlockingRunner()
	s := NewServer(runner, ":0", logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if s.TryRun() {
		t.Error("expected TryRun to refuse after shutdown")
	}
	if rec := do(t, s, http.MethodPost, "/api/run"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", rec.Code)
	}
	select {
	case <-runner.started:
		t.Error("runner must not start after shutdown")
	default:
	}
	if st := s.Snapshot(); st.Running || st.Runs != 0 {
		t.Errorf("expected idle server, got %+v", st)
	}
}
