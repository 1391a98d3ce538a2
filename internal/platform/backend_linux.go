//go:build linux

package platform

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/driver"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/x11"
)

// LinuxBackend wraps an existing X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &LinuxBackend{conn: conn}, nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// Connection exposes the X11 connection for the synthetic input driver.
func (b *LinuxBackend) Connection() *x11.Connection {
	if b == nil {
		return nil
	}
	return b.conn
}

// Available reports the auxiliary capabilities of the X server.
func (b *LinuxBackend) Available() []driver.Kind {
	kinds := []driver.Kind{driver.KindVisibility, driver.KindScreenCapture}
	if b.conn != nil && b.conn.HasXTest() {
		kinds = append(kinds, driver.KindSyntheticInput)
	}
	return kinds
}

// Displays returns all active displays.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.Monitors()
	if err != nil || len(monitors) == 0 {
		// Servers without RandR (Xvfb, some VNC servers) still have a root.
		w, h, rerr := conn.RootSize()
		if rerr != nil {
			if err != nil {
				return nil, err
			}
			return nil, rerr
		}
		return []Display{{ID: 0, Name: "root", Bounds: geometry.NewRect(0, 0, w, h), Primary: true}}, nil
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, Display{
			ID:      m.ID,
			Name:    m.Name,
			Bounds:  geometry.NewRect(m.X, m.Y, m.Width, m.Height),
			Primary: m.Primary,
		})
	}

	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})

	return displays, nil
}

// List enumerates the normal client windows.
func (b *LinuxBackend) List(ctx context.Context) ([]automation.Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	clients, err := conn.ClientWindows()
	if err != nil {
		return nil, automation.NewOSFailure("_NET_CLIENT_LIST", 0, err)
	}

	windows := make([]automation.Window, 0, len(clients))
	for _, id := range clients {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := conn.Describe(id)
		if err != nil {
			// Windows may vanish between listing and describing.
			continue
		}
		windows = append(windows, windowFromInfo(info))
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].Handle < windows[j].Handle
	})
	return windows, nil
}

// Lookup returns a fresh snapshot of the window named by a native handle.
func (b *LinuxBackend) Lookup(ctx context.Context, handle string) (automation.Window, error) {
	conn, err := b.connection()
	if err != nil {
		return automation.Window{}, err
	}
	if err := ctx.Err(); err != nil {
		return automation.Window{}, err
	}

	id, ok := ParseHandle(handle)
	if !ok {
		return automation.Window{}, automation.NewWindowNotFound(handle)
	}

	info, err := conn.Describe(xproto.Window(id))
	if err != nil {
		return automation.Window{}, automation.NewWindowNotFound(handle)
	}
	return windowFromInfo(info), nil
}

// Unminimize deiconifies a window.
func (b *LinuxBackend) Unminimize(ctx context.Context, win automation.Window) error {
	conn, id, err := b.target(ctx, win)
	if err != nil {
		return err
	}
	if err := conn.Unminimize(id); err != nil {
		return automation.NewOSFailure("MapWindow", 0, err)
	}
	return nil
}

// Raise activates a window and brings it to the top of the stack.
func (b *LinuxBackend) Raise(ctx context.Context, win automation.Window) error {
	conn, id, err := b.target(ctx, win)
	if err != nil {
		return err
	}
	if err := conn.ShowWindowDesktop(id); err != nil {
		return automation.NewOSFailure("_NET_CURRENT_DESKTOP", 0, err)
	}
	if err := conn.FocusWindow(uint32(id)); err != nil {
		return automation.NewOSFailure("_NET_ACTIVE_WINDOW", 0, err)
	}
	if err := conn.RaiseWindow(id); err != nil {
		return automation.NewOSFailure("ConfigureWindow", 0, err)
	}
	return nil
}

// Capture grabs the current contents of a window.
func (b *LinuxBackend) Capture(ctx context.Context, win automation.Window) (image.Image, error) {
	conn, id, err := b.target(ctx, win)
	if err != nil {
		return nil, err
	}
	img, err := conn.CaptureWindow(id)
	if err != nil {
		return nil, automation.NewOSFailure("GetImage", 0, err)
	}
	return img, nil
}

func (b *LinuxBackend) target(ctx context.Context, win automation.Window) (*x11.Connection, xproto.Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	id, ok := ParseHandle(win.Handle)
	if !ok {
		return nil, 0, automation.NewWindowNotFound(win.Handle)
	}
	return conn, xproto.Window(id), nil
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func windowFromInfo(info x11.WindowInfo) automation.Window {
	return automation.Window{
		Handle:    WindowID(info.ID).Handle(),
		Title:     info.Title,
		Class:     info.Class,
		Frame:     geometry.NewRect(info.X, info.Y, info.Width, info.Height),
		Minimized: info.Minimized,
		Active:    info.Active,
		App:       automation.ApplicationID(info.PID),
	}
}
