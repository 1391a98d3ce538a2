package platform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/1broseidon/steer/internal/driver"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/identity"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Handle returns the native handle string for the window.
func (id WindowID) Handle() string {
	return fmt.Sprintf("%s%X", identity.WindowPrefix, uint32(id))
}

// ParseHandle extracts the window id from a native handle produced by
// WindowID.Handle.
func ParseHandle(handle string) (WindowID, bool) {
	if !strings.HasPrefix(handle, identity.WindowPrefix) {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(handle, identity.WindowPrefix), 16, 32)
	if err != nil {
		return 0, false
	}
	return WindowID(v), true
}

// Display describes a physical display.
type Display struct {
	ID      int           `json:"id"`
	Name    string        `json:"name"`
	Bounds  geometry.Rect `json:"bounds"`
	Primary bool          `json:"primary,omitempty"`
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	driver.Windows
	driver.Visibility
	driver.Capturer

	Displays() ([]Display, error)
	// Available reports which auxiliary capabilities the backend offers.
	Available() []driver.Kind
	Disconnect()
}
