package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ojrac/opensimplex-go"

	"github.com/wricardo/boxcast/game/engine"
	"github.com/wricardo/boxcast/game/scheduler"
	"github.com/wricardo/boxcast/game/session"
)

// boxService implements BoxService.
// Fields below the loop marker are only touched from loop tasks.
type boxService struct {
	cfg      *engine.SimConfig
	loop     *scheduler.Loop
	sessions *session.Registry
	logger   *log.Logger
	observer func(Event)

	runCtx    context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	mu      sync.Mutex
	started bool
	closed  bool

	// loop
	rng          engine.Rand
	noise        engine.Noise
	clock        *scheduler.SimClock
	world        engine.World
	effect       *activeEffect
	broadcasts   uint64
	sendFailures uint64
	dropped      uint64
}

// NewBoxService creates the core with a single default box and a stopped
// simulation clock. Call Start to begin ticking.
func NewBoxService(opts Options) (BoxService, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = engine.DefaultSimConfig()
	}
	if err := engine.ValidateSimConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	clock := opts.Clock
	if clock == nil {
		clock = scheduler.RealClock()
	}

	seed := uint64(clock.Now().UnixNano())
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	noise := opts.Noise
	if noise == nil {
		noise = opensimplex.New(int64(seed))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &boxService{
		cfg:       cfg,
		loop:      scheduler.NewLoop(clock, logger.With("component", "loop")),
		sessions:  session.NewRegistry(),
		logger:    logger,
		observer:  opts.Observer,
		runCtx:    runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: clock.Now(),
		rng:       rng,
		noise:     noise,
		world:     engine.NewWorld(),
	}
	s.clock = scheduler.NewSimClock(s.loop, s.tick)
	return s, nil
}

// Start runs the loop and arms the simulation clock at the base period.
// The service closes itself when ctx is cancelled.
func (s *boxService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.loop.Post(func() {
		s.clock.Start(s.cfg.Timing.BaseTick())
		s.logger.Info("Simulation started",
			"profile", s.cfg.Name,
			"variant", s.cfg.Variant,
			"period", s.cfg.Timing.BaseTick())
	})

	go func() {
		defer close(s.done)
		s.loop.Run(s.runCtx)
	}()

	context.AfterFunc(ctx, func() {
		if err := s.Close(context.Background()); err != nil {
			s.logger.Warn("Close after context cancellation failed", "err", err)
		}
	})
}

// Close cancels the active effect, stops the clock and stops the loop.
// Calling it again is a no-op.
func (s *boxService) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if !started {
		s.shutdown()
		s.cancel()
		return nil
	}

	err := s.loop.Do(ctx, s.shutdown)
	s.cancel()

	select {
	case <-s.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *boxService) shutdown() {
	if s.effect != nil {
		kind := s.effect.kind
		s.effect.cancel()
		s.effect = nil
		s.emit(EventCancelled, kind)
	}
	s.clock.Stop()
	s.logger.Info("Simulation stopped", "broadcasts", s.broadcasts, "send_failures", s.sendFailures)
}

// do runs fn on the loop, failing fast once the service is closed
func (s *boxService) do(ctx context.Context, fn func()) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrServiceClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.runCtx, cancel)
	defer stop()

	if err := s.loop.Do(ctx, fn); err != nil {
		if s.runCtx.Err() != nil {
			return ErrServiceClosed
		}
		return err
	}
	return nil
}

// Connect registers the viewer and sends it the current state and its id
func (s *boxService) Connect(ctx context.Context, h session.Handle) (int, error) {
	var id int
	var regErr error
	err := s.do(ctx, func() {
		id, regErr = s.sessions.Register(h)
		if regErr != nil {
			return
		}
		s.sendTo(h, id, s.stateMessage())
		s.sendTo(h, id, AssignedID{Action: ActionAssignedID, UserID: id})
		s.logger.Info("Viewer connected", "user_id", id, "connections", s.sessions.Count())
	})
	if err != nil {
		return 0, err
	}
	if regErr != nil {
		return 0, fmt.Errorf("failed to register viewer: %w", regErr)
	}
	return id, nil
}

// Receive queues an inbound frame for handling on the loop.
// The service takes ownership of raw.
func (s *boxService) Receive(h session.Handle, raw []byte) {
	s.loop.Post(func() {
		s.handleMessage(h, raw)
	})
}

// Disconnect queues removal of the viewer
func (s *boxService) Disconnect(h session.Handle, code int, reason string) {
	s.loop.Post(func() {
		id, err := s.sessions.Unregister(h)
		if err != nil {
			if !errors.Is(err, session.ErrSessionNotFound) {
				s.logger.Warn("Failed to unregister viewer", "err", err)
			}
			return
		}
		if reason == "" {
			reason = "None"
		}
		s.logger.Info("Viewer disconnected",
			"user_id", id,
			"code", code,
			"reason", reason,
			"connections", s.sessions.Count())
	})
}

// Inject runs text through chat handling as if sent by a viewer named from
func (s *boxService) Inject(ctx context.Context, text, from string) error {
	if from == "" {
		from = "operator"
	}
	return s.do(ctx, func() {
		s.logger.Info("Operator chat", "from", from, "text", text)
		s.handleChat(fmt.Sprintf("%s: %s", from, text), text, from)
	})
}

// Snapshot returns a copy of the current world
func (s *boxService) Snapshot(ctx context.Context) (engine.World, error) {
	var w engine.World
	err := s.do(ctx, func() {
		w = s.world.Clone()
	})
	return w, err
}

// Status reports the current effect, clock and counters
func (s *boxService) Status(ctx context.Context) (*Status, error) {
	var st *Status
	err := s.do(ctx, func() {
		st = &Status{
			Profile:         s.cfg.Name,
			Variant:         s.cfg.Variant,
			Connections:     s.sessions.Count(),
			Effect:          EffectIdle,
			ClockPeriodMs:   s.clock.Period().Milliseconds(),
			Population:      s.world.Len(),
			Broadcasts:      s.broadcasts,
			SendFailures:    s.sendFailures,
			DroppedMessages: s.dropped,
			LiveTimers:      s.loop.Live(),
			StartedAt:       s.startedAt,
		}
		if e := s.effect; e != nil {
			started, expires := e.started, e.deadline
			st.Effect = e.kind
			st.EffectStartedAt = &started
			st.EffectExpiresAt = &expires
			st.Frame = e.frame
		}
	})
	return st, err
}

// Connections counts registered viewers. Safe from any goroutine.
func (s *boxService) Connections() int {
	return s.sessions.Count()
}

// Config returns the active simulation profile
func (s *boxService) Config() *engine.SimConfig {
	return s.cfg
}

// tick is the simulation clock callback
func (s *boxService) tick() {
	s.setWorld(engine.AdvanceBase(s.world, s.cfg.Bounds, s.rng))
	s.broadcastState()
}

// setWorld swaps in the next world, repairing an empty one
func (s *boxService) setWorld(next engine.World) {
	next, repaired := engine.EnsureNonEmpty(next)
	if repaired {
		s.logger.Warn("World became empty, restored default box")
		s.emit(EventRepaired, s.currentKind())
	}
	s.world = next
}

func (s *boxService) currentKind() EffectKind {
	if s.effect == nil {
		return EffectIdle
	}
	return s.effect.kind
}

func (s *boxService) emit(kind EventKind, effect EffectKind) {
	if s.observer == nil {
		return
	}
	s.observer(Event{Kind: kind, Effect: effect, At: s.loop.Now()})
}
