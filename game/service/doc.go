// Package service is the core of the box broadcast server.
//
// A BoxService owns the shared World, the session Registry, the simulation
// clock and the effect scheduler. All of that state lives on a single
// scheduler.Loop: transport callbacks, timer fires and operator calls are
// turned into loop tasks, so no state here is guarded by locks except the
// registry count read by health checks.
//
// Transport lifecycle:
//
//	id, err := svc.Connect(ctx, handle)  // sends state, then assigned_id
//	svc.Receive(handle, frame)           // {"action":"chat","text":"run"}
//	svc.Disconnect(handle, code, reason)
//
// Effects:
//
// "run" speeds the clock up to the run period and layers a color cycle and a
// size pulse over the world until the run duration elapses. "stress" takes
// exclusive control of the world, stops the clock and steps a large stress
// population on its own fast timer, tagging each broadcast with a frame
// counter and timestamp. Expiry always restores one default box, the base
// clock period and the idle state.
//
// Broadcasts are full-state pushes serialized once per call and written to
// every session. A failed send is logged and skipped.
package service
