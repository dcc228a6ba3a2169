package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// ErrLoopStopped is returned by Do once Run has returned
var ErrLoopStopped = errors.New("loop stopped")

// Loop is the single logical execution context of the server.
// Tasks posted to it run one at a time, in posting order, on whichever
// goroutine drives the loop (Run, or Drain in tests). State owned by the
// loop needs no locking as long as it is only touched from loop tasks.
type Loop struct {
	clock  Clock
	logger *log.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}

	live   atomic.Int64
	panics atomic.Uint64
}

// NewLoop creates a loop whose timers are armed against clock
func NewLoop(clock Clock, logger *log.Logger) *Loop {
	if clock == nil {
		clock = RealClock()
	}
	return &Loop{
		clock:  clock,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Clock returns the time source of the loop
func (l *Loop) Clock() Clock {
	return l.clock
}

// Now returns the current time of the loop's clock
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post queues fn to run on the loop. It never blocks.
// Tasks posted after Run has returned are dropped and Post reports false.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish.
// It must not be called from a loop task.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the loop until ctx is cancelled. The loop accepts no tasks
// after Run returns.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		l.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
}

// Drain runs queued tasks on the calling goroutine until the queue is empty
// and returns how many ran. It must not be used while Run is active.
func (l *Loop) Drain() int {
	ran := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return ran
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.runTask(fn)
		ran++
	}
}

// Pending returns the number of queued tasks
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Live returns the number of armed timer handles
func (l *Loop) Live() int {
	return int(l.live.Load())
}

// Panics returns how many tasks panicked and were recovered
func (l *Loop) Panics() uint64 {
	return l.panics.Load()
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			if l.logger != nil {
				l.logger.Error("Recovered panic in loop task", "panic", r)
			}
		}
	}()
	fn()
}

// After arms fn to run on the loop once, after d
func (l *Loop) After(d time.Duration, fn func()) *Handle {
	return l.arm(d, 0, fn)
}

// Every arms fn to run on the loop every period until the handle is stopped
func (l *Loop) Every(period time.Duration, fn func()) *Handle {
	if period <= 0 {
		period = time.Millisecond
	}
	return l.arm(period, period, fn)
}

func (l *Loop) arm(delay, period time.Duration, fn func()) *Handle {
	h := &Handle{loop: l, period: period, fn: fn}
	l.live.Add(1)

	h.mu.Lock()
	h.timer = l.clock.AfterFunc(delay, h.fire)
	h.mu.Unlock()

	return h
}

// Handle is a cancellable timer whose callback runs on the loop.
// Once Stop returns, the callback will not run again, even if the
// underlying timer had already fired and its task is still queued.
type Handle struct {
	loop   *Loop
	period time.Duration
	fn     func()

	mu      sync.Mutex
	timer   Timer
	stopped bool
	queued  bool
	fires   uint64
	skipped uint64
}

// fire runs on the clock's goroutine. A repeating handle keeps at most one
// fire queued; fires that land while it is still waiting are dropped.
func (h *Handle) fire() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	if h.period > 0 {
		h.timer = h.loop.clock.AfterFunc(h.period, h.fire)
	}
	if h.queued {
		h.skipped++
		h.mu.Unlock()
		return
	}
	h.queued = true
	h.mu.Unlock()

	if !h.loop.Post(h.run) {
		h.mu.Lock()
		h.queued = false
		h.mu.Unlock()
	}
}

// run executes on the loop
func (h *Handle) run() {
	h.mu.Lock()
	h.queued = false
	if h.stopped {
		h.mu.Unlock()
		return
	}
	if h.period == 0 {
		h.stopped = true
		h.loop.live.Add(-1)
	}
	h.fires++
	h.mu.Unlock()

	h.fn()
}

// Stop cancels the timer. It is idempotent and safe on a nil handle.
func (h *Handle) Stop() {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
	}
	h.loop.live.Add(-1)
}

// Active reports whether the timer can still fire
func (h *Handle) Active() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.stopped
}

// Fires returns how many times the callback ran
func (h *Handle) Fires() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fires
}

// Skipped returns how many fires were dropped because the previous one
// had not run yet
func (h *Handle) Skipped() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.skipped
}

// Period returns the repeat period, or zero for a one-shot timer
func (h *Handle) Period() time.Duration {
	if h == nil {
		return 0
	}
	return h.period
}
