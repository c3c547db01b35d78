package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalSchedulerTicks(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := NewIntervalScheduler(5*time.Millisecond, false)
	if err := s.Start(context.Background(), func(time.Time) { calls.Add(1) }); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if calls.Load() < 2 {
		t.Fatalf("expected at least two ticks, got %d", calls.Load())
	}

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Fatal("job fired after Stop")
	}
}

func TestIntervalSchedulerRunOnStart(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	s := NewIntervalScheduler(time.Hour, true)
	if err := s.Start(context.Background(), func(time.Time) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestIntervalSchedulerStopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(time.Hour, false)
	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	cancel()

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop after cancel: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop must be a no-op: %v", err)
	}
}
