package service

import (
	"time"

	"github.com/wricardo/boxcast/game/engine"
)

// Outbound message discriminators
const (
	ActionUpdateBoxes = "update_boxes"
	ActionUpdateBoy   = "update_boy"
	ActionAssignedID  = "assigned_id"
	ActionChat        = "chat"
)

// Chat texts that trigger simulation effects
const (
	CommandJump   = "jump"
	CommandRun    = "run"
	CommandStress = "stress"
)

// BoxesUpdate is the full-world state message of the boxes variant.
// Frame and Timestamp are only set while stress mode is active.
type BoxesUpdate struct {
	Action    string       `json:"action"`
	Boxes     []engine.Box `json:"boxes"`
	Timestamp *int64       `json:"timestamp,omitempty"`
	Frame     *uint64      `json:"frame,omitempty"`
}

// BoyUpdate is the single-entity state message of the boy variant
type BoyUpdate struct {
	Action string  `json:"action"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
}

// AssignedID tells a new viewer its session identifier
type AssignedID struct {
	Action string `json:"action"`
	UserID int    `json:"userId"`
}

// ChatMessage is a chat line fanned out to every viewer.
// UserID is the numeric session id for viewers, or a string label for
// operator-injected messages.
type ChatMessage struct {
	Action string `json:"action"`
	Text   string `json:"text"`
	UserID any    `json:"userId"`
}

// Inbound is the only message shape viewers send
type Inbound struct {
	Action string `json:"action"`
	Text   string `json:"text"`
}

// EffectKind names the effect currently layered over the simulation
type EffectKind string

const (
	EffectIdle   EffectKind = "idle"
	EffectRun    EffectKind = "run"
	EffectStress EffectKind = "stress"
)

// EventKind names an effect lifecycle transition
type EventKind string

const (
	EventStarted     EventKind = "started"
	EventRetriggered EventKind = "retriggered"
	EventIgnored     EventKind = "ignored"
	EventSuperseded  EventKind = "superseded"
	EventExpired     EventKind = "expired"
	EventCancelled   EventKind = "cancelled"
	EventRepaired    EventKind = "world_repaired"
)

// Event is reported to the Observer for every effect transition
type Event struct {
	Kind   EventKind  `json:"kind"`
	Effect EffectKind `json:"effect"`
	At     time.Time  `json:"at"`
}

// Status is a point-in-time view of the server for operators
type Status struct {
	Profile         string         `json:"profile"`
	Variant         engine.Variant `json:"variant"`
	Connections     int            `json:"connections"`
	Effect          EffectKind     `json:"effect"`
	EffectStartedAt *time.Time     `json:"effect_started_at,omitempty"`
	EffectExpiresAt *time.Time     `json:"effect_expires_at,omitempty"`
	ClockPeriodMs   int64          `json:"clock_period_ms"`
	Population      int            `json:"population"`
	Frame           uint64         `json:"frame"`
	Broadcasts      uint64         `json:"broadcasts"`
	SendFailures    uint64         `json:"send_failures"`
	DroppedMessages uint64         `json:"dropped_messages"`
	LiveTimers      int            `json:"live_timers"`
	StartedAt       time.Time      `json:"started_at"`
}
