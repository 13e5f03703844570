package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func drain(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Drain(ctx)
}

func TestSubmitAndDrain(t *testing.T) {
	p := New(2, 10)
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		if !p.Submit("count", func() { count.Add(1) }) {
			t.Fatalf("Submit %d failed", i)
		}
	}
	drain(t, p)

	if got := count.Load(); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}
}

func TestSubmitAfterDrainReturnsFalse(t *testing.T) {
	p := New(1, 1)
	drain(t, p)

	if p.Submit("late", func() {}) {
		t.Fatal("Submit after Drain should return false")
	}
}

func TestSubmitAfterStopAccepting(t *testing.T) {
	p := New(1, 4)
	p.StopAccepting()
	if p.Submit("late", func() {}) {
		t.Fatal("Submit after StopAccepting should return false")
	}
	drain(t, p)
}

func TestQueueFullReturnsFalse(t *testing.T) {
	p := New(1, 1)
	blocker := make(chan struct{})
	started := make(chan struct{})
	p.Submit("block", func() {
		close(started)
		<-blocker
	})
	<-started

	if !p.Submit("queued", func() {}) {
		t.Fatal("Submit should fill the single queue slot")
	}
	if p.Submit("overflow", func() {}) {
		t.Fatal("Submit should return false when queue is full")
	}

	close(blocker)
	drain(t, p)
}

func TestPanicRecovery(t *testing.T) {
	p := New(1, 4)
	var ran atomic.Bool

	p.Submit("boom", func() { panic("boom") })
	p.Submit("after", func() { ran.Store(true) })
	drain(t, p)

	if !ran.Load() {
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestDrainTimesOut(t *testing.T) {
	p := New(1, 1)
	blocker := make(chan struct{})
	defer close(blocker)
	p.Submit("stuck", func() { <-blocker })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	p.Drain(ctx)
	if time.Since(start) > 2*time.Second {
		t.Fatal("Drain ignored the context deadline")
	}
}
