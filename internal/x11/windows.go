package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// WindowInfo is a point-in-time view of a managed client window.
type WindowInfo struct {
	ID        xproto.Window
	PID       int
	Class     string
	Title     string
	X, Y      int
	Width     int
	Height    int
	Minimized bool
	Active    bool
}

// ClientWindows returns the normal application windows managed by the WM,
// in client list order.
func (c *Connection) ClientWindows() ([]xproto.Window, error) {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}

	out := make([]xproto.Window, 0, len(clients))
	for _, w := range clients {
		if c.IsNormalWindow(w) {
			out = append(out, w)
		}
	}
	return out, nil
}

// Describe collects geometry, state and identity of a window.
func (c *Connection) Describe(windowID xproto.Window) (WindowInfo, error) {
	x, y, w, h, err := c.WindowGeometry(windowID)
	if err != nil {
		return WindowInfo{}, err
	}

	info := WindowInfo{
		ID:        windowID,
		Class:     c.windowClass(windowID),
		Title:     c.windowTitle(windowID),
		X:         x,
		Y:         y,
		Width:     w,
		Height:    h,
		Minimized: c.IsMinimized(windowID),
	}
	if pid, err := ewmh.WmPidGet(c.XUtil, windowID); err == nil {
		info.PID = int(pid)
	}
	if active, err := c.GetActiveWindow(); err == nil {
		info.Active = active == windowID
	}
	return info, nil
}

// WindowGeometry returns the window's root-relative origin and size.
func (c *Connection) WindowGeometry(windowID xproto.Window) (x, y, width, height int, err error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to get geometry: %w", err)
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to translate coordinates: %w", err)
	}

	return int(translate.DstX), int(translate.DstY), int(geom.Width), int(geom.Height), nil
}

// IsMinimized reports whether the window is iconified.
func (c *Connection) IsMinimized(windowID xproto.Window) bool {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err == nil {
		for _, state := range states {
			if state == "_NET_WM_STATE_HIDDEN" {
				return true
			}
		}
	}

	// Some WMs only maintain the ICCCM state.
	if st, err := icccm.WmStateGet(c.XUtil, windowID); err == nil {
		return st.State == icccm.StateIconic
	}
	return false
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}

	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_NORMAL" {
			return true
		}
		// Reject desktop, dock, splash, etc.
		if t == "_NET_WM_WINDOW_TYPE_DESKTOP" ||
			t == "_NET_WM_WINDOW_TYPE_DOCK" ||
			t == "_NET_WM_WINDOW_TYPE_SPLASH" ||
			t == "_NET_WM_WINDOW_TYPE_NOTIFICATION" {
			return false
		}
	}

	// If no specific type is set, assume it's normal
	return len(types) == 0
}

func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// Unminimize maps an iconified window and asks the WM to activate it.
func (c *Connection) Unminimize(windowID xproto.Window) error {
	if err := xproto.MapWindowChecked(c.XUtil.Conn(), windowID).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}
	// EWMH: activating a hidden window deiconifies it.
	return c.FocusWindow(uint32(windowID))
}

func (c *Connection) windowClass(windowID xproto.Window) string {
	wmClass, err := icccm.WmClassGet(c.XUtil, windowID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(wmClass.Class)
}

func (c *Connection) windowTitle(windowID xproto.Window) string {
	title, err := ewmh.WmNameGet(c.XUtil, windowID)
	if err == nil {
		title = strings.TrimSpace(title)
		if title != "" {
			return title
		}
	}

	title, err = icccm.WmNameGet(c.XUtil, windowID)
	if err == nil {
		title = strings.TrimSpace(title)
		if title != "" {
			return title
		}
	}

	return ""
}
