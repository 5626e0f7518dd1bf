package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/innerscore/pkg/logger"
)

const defaultInterval = time.Hour

// Runner executes harvest passes.
type Runner interface {
	Run(ctx context.Context) (Report, error)
	Running() bool
}

// Sizer reports the size of the published collection.
type Sizer interface {
	Count(ctx context.Context) int
}

// Service runs passes periodically and on demand for serve mode.
type Service struct {
	runner     Runner
	collection Sizer
	interval   time.Duration
	runOnStart bool
	logger     logger.Logger

	trigger chan struct{}

	mu         sync.RWMutex
	started    bool
	cancel     context.CancelFunc
	done       chan struct{}
	passes     int
	lastReport *Report
	lastErr    error
}

// New creates a Service. collection may be nil.
func New(runner Runner, collection Sizer, opts ...ServiceOption) *Service {
	s := &Service{
		runner:     runner,
		collection: collection,
		interval:   defaultInterval,
		runOnStart: true,
		logger:     logger.Nop(),
		trigger:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the pass loop. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	s.logger.Info(ctx, "starting harvest service", logger.Duration("interval", s.interval))
	go s.loop(loopCtx, s.done)
	return nil
}

// Stop ends the loop and waits for a pass in flight to return.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info(context.Background(), "harvest service stopped")
}

// Trigger asks the loop for an immediate pass. It reports false when the
// service is stopped or a pass is already running or pending. The pass
// runs on the service context, not ctx.
func (s *Service) Trigger(ctx context.Context) bool {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started || s.runner.Running() {
		return false
	}

	select {
	case s.trigger <- struct{}{}:
		s.logger.Debug(ctx, "harvest pass requested")
		return true
	default:
		return false
	}
}

// LastReport returns the report of the latest successful pass.
func (s *Service) LastReport() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastReport == nil {
		return Report{}, false
	}
	return *s.lastReport, true
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"running":    s.runner.Running(),
		"passes":     s.passes,
		"interval_s": int(s.interval / time.Second),
	}
	if s.collection != nil {
		stats["collection_size"] = s.collection.Count(context.Background())
	}
	if s.lastReport != nil {
		stats["last_run"] = *s.lastReport
	}
	if s.lastErr != nil {
		stats["last_error"] = s.lastErr.Error()
	}
	return stats
}

func (s *Service) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.runOnStart {
		s.runPass(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		case <-s.trigger:
			s.runPass(ctx)
		}
	}
}

func (s *Service) runPass(ctx context.Context) {
	rep, err := s.runner.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case errors.Is(err, ErrPassRunning):
		return
	case err != nil:
		s.lastErr = err
		if ctx.Err() == nil {
			s.logger.Error(ctx, "harvest pass failed", logger.String("run_id", rep.RunID), logger.Error(err))
		}
	default:
		s.lastErr = nil
	}
	s.passes++
	if err == nil || errors.Is(err, ErrPublish) {
		s.lastReport = &rep
	}
}
