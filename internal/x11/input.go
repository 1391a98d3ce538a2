package x11

import (
	"fmt"
	"math"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil/keybind"
)

// Pointer buttons as numbered by the core protocol. 4-7 are wheel steps.
const (
	ButtonLeft       byte = 1
	ButtonMiddle     byte = 2
	ButtonRight      byte = 3
	ButtonWheelUp    byte = 4
	ButtonWheelDown  byte = 5
	ButtonWheelLeft  byte = 6
	ButtonWheelRight byte = 7
)

// MovePointer warps the pointer to a root coordinate with a fake motion
// event.
func (c *Connection) MovePointer(x, y int) error {
	return c.fakeInput(xproto.MotionNotify, 0, x, y)
}

// Button presses or releases a pointer button at the current position.
func (c *Connection) Button(button byte, press bool) error {
	typ := byte(xproto.ButtonRelease)
	if press {
		typ = xproto.ButtonPress
	}
	return c.fakeInput(typ, button, 0, 0)
}

// Key presses or releases a keycode.
func (c *Connection) Key(code xproto.Keycode, press bool) error {
	typ := byte(xproto.KeyRelease)
	if press {
		typ = xproto.KeyPress
	}
	return c.fakeInput(typ, byte(code), 0, 0)
}

// Keycode looks up a keysym name (as used in keybindings, e.g. "a",
// "Return", "exclam") and reports whether Shift is needed to produce it.
func (c *Connection) Keycode(name string) (xproto.Keycode, bool, error) {
	codes := keybind.StrToKeycodes(c.XUtil, name)
	if len(codes) == 0 {
		return 0, false, fmt.Errorf("no keycode for keysym %q", name)
	}
	code := codes[0]
	shift := keybind.LookupString(c.XUtil, 0, code) != name
	return code, shift, nil
}

// Sync flushes pending requests and waits for the server to process them.
func (c *Connection) Sync() {
	c.XUtil.Sync()
}

func (c *Connection) fakeInput(typ, detail byte, x, y int) error {
	if x < math.MinInt16 || x > math.MaxInt16 || y < math.MinInt16 || y > math.MaxInt16 {
		return fmt.Errorf("coordinate (%d,%d) outside the X11 coordinate range", x, y)
	}
	if err := c.initXTest(); err != nil {
		return fmt.Errorf("XTEST unavailable: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return xtest.FakeInputChecked(
		c.XUtil.Conn(),
		typ,
		detail,
		0, // CurrentTime
		c.Root,
		int16(x), int16(y),
		0,
	).Check()
}
