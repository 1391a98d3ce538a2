package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// stickyDesktop is the _NET_WM_DESKTOP value of windows shown on every
// desktop.
const stickyDesktop = 0xFFFFFFFF

// CurrentDesktop returns the current virtual desktop number (0-indexed).
func (c *Connection) CurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// WindowDesktop returns the desktop a window is on, or -1 when it is on
// all of them.
func (c *Connection) WindowDesktop(windowID xproto.Window) (int, error) {
	desktop, err := ewmh.WmDesktopGet(c.XUtil, windowID)
	if err != nil {
		return 0, fmt.Errorf("failed to get window desktop: %w", err)
	}
	if desktop == stickyDesktop {
		return -1, nil
	}
	return int(desktop), nil
}

// ShowWindowDesktop switches to the desktop holding the window. Window
// managers without desktop support are left alone.
func (c *Connection) ShowWindowDesktop(windowID xproto.Window) error {
	want, err := c.WindowDesktop(windowID)
	if err != nil || want < 0 {
		return nil
	}
	current, err := c.CurrentDesktop()
	if err != nil || current == want {
		return nil
	}
	return c.sendRootMessage(c.Root, "_NET_CURRENT_DESKTOP", uint32(want), 0)
}

// FocusWindow activates and raises a window using _NET_ACTIVE_WINDOW.
func (c *Connection) FocusWindow(windowID uint32) error {
	const sourceIndication = 2 // pager/direct action
	return c.sendRootMessage(xproto.Window(windowID), "_NET_ACTIVE_WINDOW", sourceIndication, 0)
}

// sendRootMessage sends an EWMH client message to the root window. The
// message is built by hand because the xgbutil ewmh request helpers panic
// on this library version (uint vs int type assertion).
func (c *Connection) sendRootMessage(window xproto.Window, atom string, data ...uint32) error {
	atomReply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len(atom)), atom).Reply()
	if err != nil {
		return fmt.Errorf("failed to intern %s: %w", atom, err)
	}

	payload := make([]uint32, 5)
	copy(payload, data)
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: window,
		Type:   atomReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New(payload),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// RaiseWindow restacks a window above its siblings. Used when the WM
// ignores _NET_ACTIVE_WINDOW from non-pager sources.
func (c *Connection) RaiseWindow(windowID xproto.Window) error {
	return xproto.ConfigureWindowChecked(
		c.XUtil.Conn(),
		windowID,
		xproto.ConfigWindowStackMode,
		[]uint32{xproto.StackModeAbove},
	).Check()
}
