package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func newTestLoop() (*Loop, *ManualClock) {
	clock := NewManualClock(epoch)
	return NewLoop(clock, log.New(io.Discard)), clock
}

// step advances the clock and runs whatever the timers posted
func step(loop *Loop, clock *ManualClock, d time.Duration) {
	clock.Advance(d)
	loop.Drain()
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	loop, _ := newTestLoop()

	var order []int
	for i := 0; i < 5; i++ {
		loop.Post(func() { order = append(order, i) })
	}
	if ran := loop.Drain(); ran != 5 {
		t.Fatalf("Expected 5 tasks, got %d", ran)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("Expected FIFO order, got %v", order)
		}
	}
}

func TestLoop_TaskPostedFromTaskRunsInSameDrain(t *testing.T) {
	loop, _ := newTestLoop()

	ran := false
	loop.Post(func() {
		loop.Post(func() { ran = true })
	})
	loop.Drain()
	if !ran {
		t.Error("Expected nested task to run")
	}
}

func TestLoop_RecoversPanics(t *testing.T) {
	loop, _ := newTestLoop()

	after := false
	loop.Post(func() { panic("boom") })
	loop.Post(func() { after = true })
	loop.Drain()

	if !after {
		t.Error("Expected loop to keep running after a panic")
	}
	if loop.Panics() != 1 {
		t.Errorf("Expected 1 recovered panic, got %d", loop.Panics())
	}
}

func TestLoop_RunAndDo(t *testing.T) {
	loop := NewLoop(RealClock(), log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	value := 0
	if err := loop.Do(context.Background(), func() { value = 42 }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if value != 42 {
		t.Errorf("Expected 42, got %d", value)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_DoHonoursContext(t *testing.T) {
	loop, _ := newTestLoop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Nothing drains the loop, so Do can only return through ctx
	if err := loop.Do(ctx, func() {}); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestHandle_After(t *testing.T) {
	loop, clock := newTestLoop()

	fired := 0
	h := loop.After(100*time.Millisecond, func() { fired++ })
	if loop.Live() != 1 {
		t.Fatalf("Expected 1 live handle, got %d", loop.Live())
	}

	step(loop, clock, 99*time.Millisecond)
	if fired != 0 {
		t.Fatal("Fired early")
	}
	step(loop, clock, time.Millisecond)
	if fired != 1 {
		t.Fatalf("Expected one fire, got %d", fired)
	}
	if h.Active() {
		t.Error("One-shot handle still active after firing")
	}
	if loop.Live() != 0 {
		t.Errorf("Expected no live handles, got %d", loop.Live())
	}

	step(loop, clock, time.Second)
	if fired != 1 {
		t.Errorf("One-shot fired again: %d", fired)
	}
}

func TestHandle_Every(t *testing.T) {
	loop, clock := newTestLoop()

	fired := 0
	h := loop.Every(50*time.Millisecond, func() { fired++ })

	for i := 0; i < 10; i++ {
		step(loop, clock, 50*time.Millisecond)
	}
	if fired != 10 {
		t.Errorf("Expected 10 fires, got %d", fired)
	}
	if h.Fires() != 10 {
		t.Errorf("Expected handle to count 10 fires, got %d", h.Fires())
	}

	h.Stop()
	step(loop, clock, time.Second)
	if fired != 10 {
		t.Errorf("Fired after Stop: %d", fired)
	}
	if loop.Live() != 0 {
		t.Errorf("Expected no live handles, got %d", loop.Live())
	}
}

func TestHandle_StopDiscardsQueuedFire(t *testing.T) {
	loop, clock := newTestLoop()

	fired := false
	h := loop.After(10*time.Millisecond, func() { fired = true })

	// The timer fires and posts, but the loop has not run the task yet
	clock.Advance(10 * time.Millisecond)
	if loop.Pending() != 1 {
		t.Fatalf("Expected queued fire, got %d pending", loop.Pending())
	}

	h.Stop()
	loop.Drain()
	if fired {
		t.Error("Queued fire ran after Stop")
	}
}

func TestHandle_StopIsIdempotent(t *testing.T) {
	loop, _ := newTestLoop()

	h := loop.Every(time.Second, func() {})
	h.Stop()
	h.Stop()
	if loop.Live() != 0 {
		t.Errorf("Expected live count 0 after double stop, got %d", loop.Live())
	}

	var nilHandle *Handle
	nilHandle.Stop()
	if nilHandle.Active() {
		t.Error("Nil handle reported active")
	}
}

func TestHandle_StopFromOwnCallback(t *testing.T) {
	loop, clock := newTestLoop()

	fired := 0
	var h *Handle
	h = loop.Every(10*time.Millisecond, func() {
		fired++
		if fired == 3 {
			h.Stop()
		}
	})

	for i := 0; i < 10; i++ {
		step(loop, clock, 10*time.Millisecond)
	}
	if fired != 3 {
		t.Errorf("Expected 3 fires, got %d", fired)
	}
}

func TestHandle_EveryDropsFiresWhileQueued(t *testing.T) {
	loop, clock := newTestLoop()

	fired := 0
	h := loop.Every(16*time.Millisecond, func() { fired++ })

	// Nothing drains the loop for a second
	clock.Advance(time.Second)
	if loop.Pending() != 1 {
		t.Fatalf("Expected one queued fire after a stall, got %d", loop.Pending())
	}
	if h.Skipped() != 61 {
		t.Errorf("Expected 61 dropped fires, got %d", h.Skipped())
	}

	loop.Drain()
	if fired != 1 {
		t.Fatalf("Expected a single callback after the stall, got %d", fired)
	}

	// Cadence resumes once the loop catches up
	step(loop, clock, 16*time.Millisecond)
	if fired != 2 {
		t.Errorf("Expected the next period to fire, got %d", fired)
	}
	if loop.Live() != 1 {
		t.Errorf("Expected one live handle, got %d", loop.Live())
	}
}

func TestLoop_DropsPostsAfterRunReturns(t *testing.T) {
	loop := NewLoop(RealClock(), log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if loop.Post(func() {}) {
		t.Error("Expected Post to be rejected after Run returned")
	}
	if loop.Pending() != 0 {
		t.Errorf("Expected empty queue, got %d", loop.Pending())
	}
	if err := loop.Do(context.Background(), func() {}); err != ErrLoopStopped {
		t.Errorf("Expected ErrLoopStopped, got %v", err)
	}
}
