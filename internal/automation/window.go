package automation

import (
	"fmt"

	"github.com/1broseidon/steer/internal/geometry"
)

// ApplicationID identifies a running process.
type ApplicationID int32

func (id ApplicationID) String() string { return fmt.Sprintf("pid:%d", int32(id)) }

// Window is an immutable snapshot of a top-level window as reported by
// enumeration. Callers re-fetch rather than mutate.
type Window struct {
	Handle    string        `json:"handle"`
	Title     string        `json:"title,omitempty"`
	Class     string        `json:"class,omitempty"`
	Frame     geometry.Rect `json:"frame"`
	Minimized bool          `json:"minimized"`
	Active    bool          `json:"active"`
	App       ApplicationID `json:"app"`
}

// Frontmost reports whether the window is visible and holds focus, which
// is what low-level input injection needs.
func (w Window) Frontmost() bool {
	return !w.Minimized && w.Active
}
