package service

import (
	"time"

	"github.com/wricardo/boxcast/game/engine"
	"github.com/wricardo/boxcast/game/scheduler"
)

// activeEffect is the Active state of the effect scheduler; a nil
// *activeEffect is Idle. Every timer the effect armed is owned here so a
// single cancel releases all of them.
type activeEffect struct {
	kind     EffectKind
	started  time.Time
	deadline time.Time

	steps  []*scheduler.Handle
	expiry *scheduler.Handle

	// run progress
	colorIndex int
	pulseSize  float64
	growing    bool

	// stress progress
	frame uint64
}

func (e *activeEffect) cancel() {
	for _, h := range e.steps {
		h.Stop()
	}
	e.steps = nil
	e.expiry.Stop()
}

func (s *boxService) lockstep() bool {
	return s.cfg.Variant == engine.VariantBoy
}

// startRun enters run mode: faster clock, color cycling and size pulsing
// for RunDuration. While run is active a new trigger only re-boosts speeds.
func (s *boxService) startRun() {
	if e := s.effect; e != nil {
		switch e.kind {
		case EffectStress:
			s.logger.Info("Ignoring run while stress is active")
			s.emit(EventIgnored, EffectRun)
			return
		case EffectRun:
			s.setWorld(s.boost(s.world))
			s.logger.Debug("Run already active, speeds boosted", "expires_at", e.deadline)
			s.emit(EventRetriggered, EffectRun)
			s.broadcastState()
			return
		}
	}

	timing := s.cfg.Timing
	now := s.loop.Now()

	world := s.world
	if s.cfg.Variant == engine.VariantBoxes {
		world = engine.SpawnRunBatch(world, s.cfg, s.rng)
	}
	world = s.boost(world)
	world = engine.CycleColors(world, s.cfg.Palette, 0, s.lockstep())
	world = engine.SetSize(world, engine.DefaultSize)
	s.setWorld(world)

	e := &activeEffect{
		kind:      EffectRun,
		started:   now,
		deadline:  now.Add(timing.RunDuration()),
		pulseSize: engine.DefaultSize,
		growing:   true,
	}
	s.clock.Start(timing.RunTick())
	e.steps = append(e.steps,
		s.loop.Every(timing.ColorStep(), func() { s.colorStep(e) }),
		s.loop.Every(timing.SizeStep(), func() { s.sizeStep(e) }),
	)
	e.expiry = s.loop.After(timing.RunDuration(), func() { s.expire(e) })
	s.effect = e

	s.logger.Info("Run started", "population", s.world.Len(), "expires_at", e.deadline)
	s.emit(EventStarted, EffectRun)
	s.broadcastState()
}

func (s *boxService) boost(w engine.World) engine.World {
	if s.cfg.Variant == engine.VariantBoy {
		return engine.SetSpeed(w, s.cfg.Run.BoySpeed)
	}
	return engine.BoostSpeeds(w, s.cfg.Run.MinSpeed, s.cfg.Run.MaxSpeed, s.rng)
}

func (s *boxService) colorStep(e *activeEffect) {
	e.colorIndex = (e.colorIndex + 1) % len(s.cfg.Palette)
	s.setWorld(engine.CycleColors(s.world, s.cfg.Palette, e.colorIndex, s.lockstep()))
	s.broadcastState()
}

// sizeStep does not broadcast; the color step and the clock tick carry it
func (s *boxService) sizeStep(e *activeEffect) {
	e.pulseSize, e.growing = engine.NextPulse(e.pulseSize, e.growing, s.cfg.Run)
	s.setWorld(engine.SetSize(s.world, e.pulseSize))
}

// startStress hands the world to stress mode for StressDuration. Any active
// effect, including an earlier stress, is cancelled first and the simulation
// clock is stopped so the stress step is the only motion timer.
func (s *boxService) startStress() {
	if prev := s.effect; prev != nil {
		prev.cancel()
		s.effect = nil
		s.logger.Info("Effect superseded by stress", "effect", prev.kind)
		s.emit(EventSuperseded, prev.kind)
	}
	s.clock.Stop()

	timing := s.cfg.Timing
	now := s.loop.Now()
	s.setWorld(engine.NewStressWorld(s.cfg, s.rng))

	e := &activeEffect{
		kind:     EffectStress,
		started:  now,
		deadline: now.Add(timing.StressDuration()),
	}
	e.steps = append(e.steps, s.loop.Every(timing.StressStep(), func() { s.stressStep(e) }))
	e.expiry = s.loop.After(timing.StressDuration(), func() { s.expire(e) })
	s.effect = e

	s.logger.Info("Stress started", "population", s.world.Len(), "expires_at", e.deadline)
	s.emit(EventStarted, EffectStress)
	s.broadcastState()
}

func (s *boxService) stressStep(e *activeEffect) {
	e.frame++
	s.setWorld(engine.StressStep(s.world, e.frame, s.cfg, s.rng, s.noise))
	s.broadcastState()
}

// expire returns to baseline: one default box, base clock period, Idle
func (s *boxService) expire(e *activeEffect) {
	if s.effect != e {
		return
	}
	e.cancel()
	s.effect = nil

	s.setWorld(engine.ResetToDefault(s.world))
	s.clock.Start(s.cfg.Timing.BaseTick())

	s.logger.Info("Effect expired", "effect", e.kind, "frames", e.frame)
	s.emit(EventExpired, e.kind)
	s.broadcastState()
}
