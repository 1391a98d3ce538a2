// Package drivertest provides deterministic channel doubles. Every double
// records into a CallLog owned by the test that created it.
package drivertest

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/driver"
)

// Op names a recorded call.
type Op string

const (
	OpSupports   Op = "supports"
	OpExecute    Op = "execute"
	OpUnminimize Op = "unminimize"
	OpRaise      Op = "raise"
	OpCapture    Op = "capture"
)

// Call is one recorded invocation.
type Call struct {
	Source string
	Op     Op
	Kind   automation.CommandKind
	Handle string
}

// CallLog collects calls in the order they happened.
type CallLog struct {
	mu    sync.Mutex
	calls []Call
}

// NewCallLog returns an empty log.
func NewCallLog() *CallLog { return &CallLog{} }

func (l *CallLog) add(c Call) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.calls = append(l.calls, c)
	l.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (l *CallLog) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Call, len(l.calls))
	copy(out, l.calls)
	return out
}

// Count returns how many calls matched source and op. An empty source
// matches every source.
func (l *CallLog) Count(source string, op Op) int {
	n := 0
	for _, c := range l.Calls() {
		if (source == "" || c.Source == source) && c.Op == op {
			n++
		}
	}
	return n
}

// Channel is a scripted driver.Channel.
type Channel struct {
	RouteName automation.Route
	// Capable lists the command kinds the channel claims to support.
	Capable map[automation.CommandKind]bool
	// ProbeErr, when set, is returned by Supports.
	ProbeErr error
	// ExecErr, when set, is returned by Execute.
	ExecErr error
	Effect  driver.Effect
	Log     *CallLog
}

var _ driver.Channel = (*Channel)(nil)

// NewChannel returns a channel capable of the given kinds.
func NewChannel(route automation.Route, log *CallLog, kinds ...automation.CommandKind) *Channel {
	capable := make(map[automation.CommandKind]bool, len(kinds))
	for _, k := range kinds {
		capable[k] = true
	}
	return &Channel{RouteName: route, Capable: capable, Log: log}
}

func (c *Channel) Route() automation.Route { return c.RouteName }

func (c *Channel) Supports(_ context.Context, kind automation.CommandKind, win automation.Window) (bool, error) {
	c.Log.add(Call{Source: string(c.RouteName), Op: OpSupports, Kind: kind, Handle: win.Handle})
	if c.ProbeErr != nil {
		return false, c.ProbeErr
	}
	return c.Capable[kind], nil
}

func (c *Channel) Execute(ctx context.Context, cmd automation.Command, win automation.Window) (driver.Effect, error) {
	c.Log.add(Call{Source: string(c.RouteName), Op: OpExecute, Kind: cmd.Kind(), Handle: win.Handle})
	if err := ctx.Err(); err != nil {
		return driver.Effect{}, err
	}
	if c.ExecErr != nil {
		return driver.Effect{}, c.ExecErr
	}
	return c.Effect, nil
}

// Visibility is a scripted driver.Visibility. Successful calls update the
// backing Windows so later lookups observe the change, unless Inert is set.
type Visibility struct {
	Err     error
	Inert   bool
	Log     *CallLog
	Windows *Windows
}

var _ driver.Visibility = (*Visibility)(nil)

func (v *Visibility) Unminimize(_ context.Context, win automation.Window) error {
	v.Log.add(Call{Source: "visibility", Op: OpUnminimize, Handle: win.Handle})
	if v.Err != nil {
		return v.Err
	}
	if !v.Inert {
		v.Windows.update(win.Handle, func(w *automation.Window) { w.Minimized = false })
	}
	return nil
}

func (v *Visibility) Raise(_ context.Context, win automation.Window) error {
	v.Log.add(Call{Source: "visibility", Op: OpRaise, Handle: win.Handle})
	if v.Err != nil {
		return v.Err
	}
	if !v.Inert {
		v.Windows.update(win.Handle, func(w *automation.Window) { w.Active = true })
	}
	return nil
}

// Windows is an in-memory driver.Windows.
type Windows struct {
	mu      sync.Mutex
	windows map[string]automation.Window
	order   []string
}

var _ driver.Windows = (*Windows)(nil)

// NewWindows returns a window source holding the given snapshots.
func NewWindows(wins ...automation.Window) *Windows {
	w := &Windows{windows: make(map[string]automation.Window)}
	for _, win := range wins {
		w.Put(win)
	}
	return w
}

// Put adds or replaces a window.
func (w *Windows) Put(win automation.Window) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.windows[win.Handle]; !ok {
		w.order = append(w.order, win.Handle)
	}
	w.windows[win.Handle] = win
}

func (w *Windows) List(context.Context) ([]automation.Window, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]automation.Window, 0, len(w.order))
	for _, h := range w.order {
		out = append(out, w.windows[h])
	}
	return out, nil
}

func (w *Windows) Lookup(_ context.Context, handle string) (automation.Window, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	win, ok := w.windows[handle]
	if !ok {
		return automation.Window{}, automation.NewWindowNotFound(handle)
	}
	return win, nil
}

func (w *Windows) update(handle string, fn func(*automation.Window)) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if win, ok := w.windows[handle]; ok {
		fn(&win)
		w.windows[handle] = win
	}
}

// Capturer returns a solid image sized like the window frame.
type Capturer struct {
	Log *CallLog
}

var _ driver.Capturer = (*Capturer)(nil)

func (c *Capturer) Capture(_ context.Context, win automation.Window) (image.Image, error) {
	c.Log.add(Call{Source: "capture", Op: OpCapture, Handle: win.Handle})
	w, h := int(win.Frame.Size.Width), int(win.Frame.Size.Height)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: 0x40, B: 0x80, A: 0xff})
		}
	}
	return img, nil
}
