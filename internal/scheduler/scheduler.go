// Package scheduler triggers the matching engine on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Matcher is the engine surface the scheduler drives.
type Matcher interface {
	MatchAllMarkets(ctx context.Context)
}

// Scheduler calls MatchAllMarkets once per interval. Passes may overlap
// their interval; the engine tolerates that through its settlement CAS,
// so no pass is skipped or serialized here.
type Scheduler struct {
	logger   *zap.Logger
	matcher  Matcher
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler over the given matcher.
func New(logger *zap.Logger, matcher Matcher, interval time.Duration) *Scheduler {
	return &Scheduler{logger: logger, matcher: matcher, interval: interval}
}

// Start launches the tick loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	s.logger.Info("matching scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancels the tick loop and waits for the in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("matching scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.matcher.MatchAllMarkets(ctx)
		}
	}
}
