package automation

import (
	"fmt"
	"strings"

	"github.com/1broseidon/steer/internal/geometry"
)

// Policy constrains whether routing may change the target's visibility.
type Policy string

const (
	// PolicyPreserve forbids disturbing focus or visibility.
	PolicyPreserve Policy = "preserve"
	// PolicyAllowRestore permits unminimizing and raising the target.
	PolicyAllowRestore Policy = "allow-restore"
)

// Valid reports whether p is one of the known policies.
func (p Policy) Valid() bool {
	return p == PolicyPreserve || p == PolicyAllowRestore
}

// ParsePolicy converts a config or flag value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "preserve", "":
		return PolicyPreserve, nil
	case "allow-restore", "allow_restore", "restore":
		return PolicyAllowRestore, nil
	}
	return "", NewInvalidArgument(fmt.Sprintf("unknown policy %q", s))
}

// Route names the channel that executed a command.
type Route string

const (
	RouteScripting      Route = "scripting"
	RouteAccessibility  Route = "accessibility"
	RouteSyntheticInput Route = "synthetic-input"
)

// Result is the terminal outcome of one routed command.
type Result struct {
	InvocationID string                `json:"invocation_id"`
	Success      bool                  `json:"success"`
	Route        Route                 `json:"route,omitempty"`
	Point        *geometry.ScreenPoint `json:"point,omitempty"`
	Err          error                 `json:"-"`
}

// ErrorKind returns the kind of the result error, if any.
func (r Result) ErrorKind() ErrorKind {
	return KindOf(r.Err)
}
