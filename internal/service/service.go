// Package service runs analyses end to end: it persists every session,
// writes markdown reports and serves history and reflection.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/metrics"
	"github.com/dyike/CortexAgents/internal/storage"
	"github.com/dyike/CortexAgents/internal/storage/sqlite"
	"github.com/dyike/CortexAgents/models"
)

var (
	ErrNotFound = sqlite.ErrNotFound
	ErrNoEngine = errors.New("engine is not configured")
	// ErrInvalidInput wraps request parameters the service refuses.
	ErrInvalidInput = errors.New("invalid input")
)

type Options struct {
	ResultsDir   string
	WriteReports bool
}

type Service struct {
	store    *sqlite.Store
	recorder *storage.Recorder
	opts     Options

	mu     sync.RWMutex
	engine *graph.Engine

	wg sync.WaitGroup
}

func New(store *sqlite.Store, opts Options) *Service {
	return &Service{
		store:    store,
		recorder: storage.NewRecorder(store),
		opts:     opts,
	}
}

// Observer is handed to the orchestrator so transcripts are persisted.
func (s *Service) Observer() graph.Observer {
	return s.recorder
}

// SetEngine swaps the engine used by later calls. Runs in flight keep theirs.
func (s *Service) SetEngine(e *graph.Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

func (s *Service) Engine() (*graph.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil, ErrNoEngine
	}
	return s.engine, nil
}

// Result is the outcome of one analysis.
type Result struct {
	SessionID  string           `json:"session_id"`
	Status     string           `json:"status"`
	Decision   *models.Decision `json:"decision,omitempty"`
	ReportPath string           `json:"report_path,omitempty"`
	Error      string           `json:"error,omitempty"`
	FailedAt   string           `json:"failed_stage,omitempty"`
}

// Prepare validates params and registers a new running session.
func (s *Service) Prepare(ctx context.Context, params models.AgentInitParams) (*models.Session, *graph.Engine, error) {
	engine, err := s.Engine()
	if err != nil {
		return nil, nil, err
	}

	date, err := parseTradeDate(params.TradeDate)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	session, err := engine.Orchestrator.NewSession(params.Symbol, date)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := s.store.CreateSession(ctx, models.SessionRecord{
		ID:        session.ID,
		Symbol:    session.Symbol,
		TradeDate: session.Date(),
		Status:    sqlite.StatusRunning,
	}); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	return session, engine, nil
}

// RunAnalysis runs a session to completion and persists the outcome.
func (s *Service) RunAnalysis(ctx context.Context, params models.AgentInitParams) (*Result, error) {
	session, engine, err := s.Prepare(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, engine, session)
}

// StartAnalysis registers the session and runs it in the background.
func (s *Service) StartAnalysis(ctx context.Context, params models.AgentInitParams) (string, error) {
	session, engine, err := s.Prepare(ctx, params)
	if err != nil {
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(context.WithoutCancel(ctx), engine, session)
	}()
	return session.ID, nil
}

func (s *Service) execute(ctx context.Context, engine *graph.Engine, session *models.Session) (*Result, error) {
	decision, runErr := engine.Orchestrator.RunSession(ctx, session)
	s.recorder.Sync()

	res := &Result{SessionID: session.ID, Status: sqlite.StatusDone, Decision: decision}
	rec := models.SessionRecord{ID: session.ID, Status: sqlite.StatusDone, Stage: session.Stage}
	if runErr != nil {
		res.Status, rec.Status = sqlite.StatusError, sqlite.StatusError
		res.Error, rec.Error = runErr.Error(), runErr.Error()
		res.FailedAt, rec.FailedAt = graph.FailedStage(runErr), graph.FailedStage(runErr)
	} else {
		rec.Action = string(decision.Action)
		rec.Confidence = decision.Confidence
	}
	metrics.SessionsTotal.WithLabelValues(res.Status).Inc()

	// persistence must outlive a cancelled run
	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.FinishSession(persistCtx, rec, session); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("session_id", session.ID).Msg("persist session")
	}

	if s.opts.WriteReports {
		path, err := WriteReport(s.opts.ResultsDir, session, runErr)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("write markdown report")
		}
		res.ReportPath = path
	}
	return res, runErr
}

// Wait blocks until background analyses finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Close() error {
	s.wg.Wait()
	s.recorder.Close()
	return nil
}

func parseTradeDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid trade_date: %w", err)
	}
	return date, nil
}
