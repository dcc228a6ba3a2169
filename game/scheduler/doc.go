// Package scheduler provides the execution model of the broadcast server: a
// single task loop, cancellable timers whose callbacks run on that loop, and
// the repeating simulation clock.
//
// Timers fire on clock goroutines but only post their callback to the Loop.
// Every Handle carries a stopped flag that is checked again on the loop, so
// stopping a handle also discards a fire that was already queued. This is
// what lets a new clock period or a superseding effect cancel the old timers
// synchronously, with no window where both run.
//
// ManualClock replaces wall time in tests; Advance fires due timers in order
// on the caller's goroutine.
package scheduler
