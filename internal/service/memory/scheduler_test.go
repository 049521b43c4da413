package memory

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_CoalescesBursts(t *testing.T) {
	t.Parallel()
	sched := NewScheduler()

	var runs atomic.Int32
	for i := 0; i < 5; i++ {
		sched.Schedule("u1", 20*time.Millisecond, func() { runs.Add(1) })
	}

	time.Sleep(100 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("expected a burst to coalesce into 1 run, got %d", got)
	}
	if sched.Pending("u1") {
		t.Error("timer should be gone after firing")
	}
}

func TestScheduler_IndependentPerUser(t *testing.T) {
	t.Parallel()
	sched := NewScheduler()

	var runs atomic.Int32
	sched.Schedule("u1", 20*time.Millisecond, func() { runs.Add(1) })
	sched.Schedule("u2", 20*time.Millisecond, func() { runs.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("expected one run per user, got %d", got)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	t.Parallel()
	sched := NewScheduler()

	var runs atomic.Int32
	sched.Schedule("u1", 20*time.Millisecond, func() { runs.Add(1) })
	sched.Cancel("u1")

	time.Sleep(100 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Errorf("canceled callback must not run, got %d runs", got)
	}
	if sched.Pending("u1") {
		t.Error("canceled timer should not be pending")
	}
}

func TestScheduler_StopCancelsAll(t *testing.T) {
	t.Parallel()
	sched := NewScheduler()

	var runs atomic.Int32
	for _, user := range []string{"u1", "u2", "u3"} {
		sched.Schedule(user, 20*time.Millisecond, func() { runs.Add(1) })
	}
	sched.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Errorf("stop should cancel every pending callback, got %d runs", got)
	}
}
