// Package driver defines the capability contract implemented by every
// automation channel. The router only ever talks to these interfaces.
package driver

import (
	"context"
	"image"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/geometry"
)

// Kind enumerates the channel kinds a platform may provide.
type Kind string

const (
	KindScripting      Kind = "scripting"
	KindAccessibility  Kind = "accessibility"
	KindSyntheticInput Kind = "synthetic-input"
	KindScreenCapture  Kind = "screen-capture"
	KindVisibility     Kind = "visibility"
)

// Effect describes what an executed command actually did.
type Effect struct {
	// Point is where the command acted, in screen coordinates, when the
	// channel knows it. The router computes it from the command otherwise.
	Point *geometry.ScreenPoint
}

// Channel is an automation route able to perform commands on windows.
type Channel interface {
	// Route reports which route this channel implements.
	Route() automation.Route
	// Supports is a side-effect free capability probe.
	Supports(ctx context.Context, kind automation.CommandKind, win automation.Window) (bool, error)
	// Execute performs the command. Channels return automation errors of
	// kind Declined for failures that should fall through to the next
	// candidate.
	Execute(ctx context.Context, cmd automation.Command, win automation.Window) (Effect, error)
}

// Visibility changes window visibility and stacking.
type Visibility interface {
	Unminimize(ctx context.Context, win automation.Window) error
	Raise(ctx context.Context, win automation.Window) error
}

// Capturer grabs the pixels of a window.
type Capturer interface {
	Capture(ctx context.Context, win automation.Window) (image.Image, error)
}

// Windows enumerates windows and looks them up by handle.
type Windows interface {
	List(ctx context.Context) ([]automation.Window, error)
	// Lookup returns a fresh snapshot, or an automation WindowNotFound error.
	Lookup(ctx context.Context, handle string) (automation.Window, error)
}
