// Package engine provides the entity model of the shared box world.
//
// The engine package implements:
//   - Box and World data structures and their JSON shape
//   - Pure mutation functions applied on each tick or effect step
//   - Run mode helpers (batch spawn, speed boost, color cycle, size pulse)
//   - Stress mode world generation and per-frame stepping
//   - Simulation profile (SimConfig) defaults, loading and validation
//
// Core Types:
//
// A World is an ordered collection of Box values. Every mutation function
// takes a World and returns a new one; the input is never modified, so the
// caller can snapshot the current world, compute the next one and swap it in.
//
// Usage:
//
//	cfg := engine.DefaultSimConfig()
//	rng := rand.New(rand.NewPCG(1, 2))
//
//	world := engine.NewWorld()
//	world = engine.AdvanceBase(world, cfg.Bounds, rng)
//	world = engine.Jump(world, cfg.JumpOffset)
//
// Invariants:
//
// After AdvanceBase every box lies within the given bounds. Jump is exempt
// and may lift boxes above the top bound. A world handed to a viewer always
// holds at least one box; EnsureNonEmpty repairs an emptied world.
package engine
