package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

func newStarted(t *testing.T) *Scheduler {
	t.Helper()
	s := New(Config{JobTimeout: time.Second})
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduleRejectsPastRunAt(t *testing.T) {
	t.Parallel()

	s := newStarted(t)
	var count atomic.Int32

	_, err := s.Schedule("past", time.Now().Add(-time.Second), func(context.Context) error {
		count.Add(1)
		return nil
	})
	if !errors.Is(err, contractx.ErrScheduling) {
		t.Fatalf("expected ErrScheduling, got %v", err)
	}
	if s.Pending() != 0 {
		t.Fatalf("expected no pending jobs, got %d", s.Pending())
	}

	time.Sleep(200 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Fatalf("action must never run, ran %d times", got)
	}
}

func TestScheduleRejectsNow(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := New(Config{}, WithClock(func() time.Time { return fixed }))

	_, err := s.Schedule("now", fixed, func(context.Context) error { return nil })
	if !errors.Is(err, contractx.ErrScheduling) {
		t.Fatalf("expected ErrScheduling, got %v", err)
	}
}

func TestScheduleRunsOnce(t *testing.T) {
	t.Parallel()

	s := newStarted(t)
	var count atomic.Int32

	id, err := s.Schedule("soon", time.Now().Add(100*time.Millisecond), func(context.Context) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected job id")
	}
	if got := count.Load(); got != 0 {
		t.Fatalf("Schedule must return before the action runs, ran %d times", got)
	}

	waitFor(t, func() bool { return count.Load() == 1 })
	time.Sleep(300 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Fatalf("expected exactly one run, got %d", got)
	}
	waitFor(t, func() bool { return s.Pending() == 0 })
}

func TestFailingJobsAreContained(t *testing.T) {
	t.Parallel()

	s := newStarted(t)
	var ok atomic.Int32

	runAt := time.Now().Add(80 * time.Millisecond)
	if _, err := s.Schedule("panics", runAt, func(context.Context) error {
		panic("boom")
	}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if _, err := s.Schedule("fails", runAt, func(context.Context) error {
		return errors.New("provider down")
	}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if _, err := s.Schedule("works", runAt, func(context.Context) error {
		ok.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	waitFor(t, func() bool { return ok.Load() == 1 })

	var later atomic.Int32
	if _, err := s.Schedule("after-panic", time.Now().Add(50*time.Millisecond), func(context.Context) error {
		later.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	waitFor(t, func() bool { return later.Load() == 1 })
}

func TestJobContextHasTimeout(t *testing.T) {
	t.Parallel()

	s := newStarted(t)
	var hasDeadline atomic.Bool
	var ran atomic.Bool

	if _, err := s.Schedule("deadline", time.Now().Add(50*time.Millisecond), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hasDeadline.Store(ok)
		ran.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	waitFor(t, ran.Load)
	if !hasDeadline.Load() {
		t.Fatal("expected job context to carry a deadline")
	}
}
