package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingMatcher struct {
	calls atomic.Int64
}

func (m *countingMatcher) MatchAllMarkets(context.Context) {
	m.calls.Add(1)
}

func TestSchedulerTicks(t *testing.T) {
	matcher := &countingMatcher{}
	s := New(zap.NewNop(), matcher, 10*time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return matcher.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopHaltsTicks(t *testing.T) {
	matcher := &countingMatcher{}
	s := New(zap.NewNop(), matcher, 10*time.Millisecond)

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		return matcher.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	after := matcher.calls.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, after, matcher.calls.Load(), "no ticks after Stop")
}

func TestSchedulerStartTwiceIsNoop(t *testing.T) {
	matcher := &countingMatcher{}
	s := New(zap.NewNop(), matcher, time.Hour)

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop()
	// Stop after double Start must not hang or panic.
	s.Stop()
}
