package x11

import (
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	// X requests are not pipelined per caller, so input injection and
	// queries that must observe it are serialized.
	mu sync.Mutex

	xtestOnce sync.Once
	xtestErr  error
}

// NewConnection establishes a connection to the X11 server and initializes required extensions
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	// Keysym tables are needed to translate text into keycodes
	keybind.Initialize(xu)

	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}

// initXTest loads the XTEST extension on first use.
func (c *Connection) initXTest() error {
	c.xtestOnce.Do(func() {
		c.xtestErr = xtest.Init(c.XUtil.Conn())
	})
	return c.xtestErr
}

// HasXTest reports whether the server supports fake input.
func (c *Connection) HasXTest() bool {
	return c.initXTest() == nil
}
