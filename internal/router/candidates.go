package router

import "github.com/1broseidon/steer/internal/automation"

var (
	pointerAndTextOrder = []automation.Route{
		automation.RouteScripting,
		automation.RouteAccessibility,
		automation.RouteSyntheticInput,
	}
	// Drags and gestures need continuous, time-ordered pointer data which
	// only input injection can reproduce. Other channels are never asked,
	// even if they claim support.
	continuousOrder = []automation.Route{
		automation.RouteSyntheticInput,
	}
)

// Candidates returns the fixed channel priority for a command kind. The
// returned slice must not be modified.
func Candidates(kind automation.CommandKind) []automation.Route {
	switch kind {
	case automation.KindClick, automation.KindTypeText:
		return pointerAndTextOrder
	case automation.KindDrag, automation.KindGesture:
		return continuousOrder
	}
	return nil
}

// requiresFrontmost reports whether a route can only act on a visible,
// focused window.
func requiresFrontmost(route automation.Route) bool {
	return route == automation.RouteSyntheticInput
}
