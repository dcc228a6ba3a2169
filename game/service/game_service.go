package service

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/wricardo/boxcast/game/engine"
	"github.com/wricardo/boxcast/game/scheduler"
	"github.com/wricardo/boxcast/game/session"
)

// ErrServiceClosed is returned by operations issued after Close
var ErrServiceClosed = errors.New("service closed")

// BoxService is the core of the broadcast server. It owns the world, the
// session registry, the simulation clock and the active effect, and reacts
// to transport lifecycle calls.
type BoxService interface {
	// Transport lifecycle
	Connect(ctx context.Context, h session.Handle) (int, error)
	Receive(h session.Handle, raw []byte)
	Disconnect(h session.Handle, code int, reason string)

	// Operator surface
	Inject(ctx context.Context, text, from string) error
	Snapshot(ctx context.Context) (engine.World, error)
	Status(ctx context.Context) (*Status, error)
	Connections() int
	Config() *engine.SimConfig

	// Lifecycle
	Start(ctx context.Context)
	Close(ctx context.Context) error
}

// Options configures a BoxService. Zero values select production defaults.
type Options struct {
	Config   *engine.SimConfig
	Clock    scheduler.Clock
	Rand     engine.Rand
	Noise    engine.Noise
	Logger   *log.Logger
	Observer func(Event)
}
