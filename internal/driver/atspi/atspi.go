// Package atspi implements the accessibility channel on top of AT-SPI2.
//
// Applications register their accessible trees with the registry daemon on
// the accessibility bus. A window is matched to its accessible frame by
// process id and then by frame overlap, and commands are performed through
// the Action and EditableText interfaces rather than by synthesizing input,
// so the window does not need to be frontmost.
package atspi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/godbus/dbus/v5"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/driver"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/identity"
)

const defaultMaxDepth = 32

// Channel is the accessibility route.
type Channel struct {
	bus      caller
	identity *identity.Table
	maxDepth int
	logger   *slog.Logger
}

var _ driver.Channel = (*Channel)(nil)

// New creates an accessibility channel on an accessibility bus connection
// (see Connect). Matched frames are recorded in table when it is non-nil.
func New(conn *dbus.Conn, table *identity.Table, maxDepth int, logger *slog.Logger) *Channel {
	return newChannel(busCaller{conn: conn}, table, maxDepth, logger)
}

func newChannel(bus caller, table *identity.Table, maxDepth int, logger *slog.Logger) *Channel {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Channel{
		bus:      bus,
		identity: table,
		maxDepth: maxDepth,
		logger:   logger.With("route", automation.RouteAccessibility),
	}
}

func (c *Channel) Route() automation.Route { return automation.RouteAccessibility }

// Supports reports whether the owning application exposes an accessible
// frame for the window. It only reads the tree.
func (c *Channel) Supports(ctx context.Context, kind automation.CommandKind, win automation.Window) (bool, error) {
	if kind != automation.KindClick && kind != automation.KindTypeText {
		return false, nil
	}
	if _, err := c.frame(ctx, win); err != nil {
		if automation.Recoverable(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Execute performs cmd through the accessibility tree.
func (c *Channel) Execute(ctx context.Context, cmd automation.Command, win automation.Window) (driver.Effect, error) {
	frame, err := c.frame(ctx, win)
	if err != nil {
		return driver.Effect{}, err
	}
	if c.identity != nil {
		ax := identity.AccessibilityHandle(frame.String())
		if !c.identity.AddMappingIfUnmapped(win.Handle, ax) {
			c.logger.Debug("window already mapped, not recording accessible frame", "window", win.Handle, "frame", ax)
		}
	}

	switch cmd := cmd.(type) {
	case automation.Click:
		return c.click(ctx, frame, cmd, win)
	case automation.TypeText:
		return driver.Effect{}, c.typeText(ctx, frame, cmd.Text)
	}
	return driver.Effect{}, automation.NewDeclined(automation.RouteAccessibility, fmt.Sprintf("%s has no accessible action", cmd.Kind()))
}

func (c *Channel) click(ctx context.Context, frame ref, cmd automation.Click, win automation.Window) (driver.Effect, error) {
	if cmd.EffectiveButton() != automation.ButtonLeft {
		return driver.Effect{}, automation.NewDeclined(automation.RouteAccessibility, "only the default action is available")
	}

	at := geometry.WindowToScreen(cmd.Point, win.Frame)
	x, y := at.Round()

	var target ref
	err := c.bus.Call(ctx, frame.Name, frame.Path, methodAccessibleAt,
		[]any{int32(x), int32(y), coordTypeScreen}, &target)
	if err != nil {
		return driver.Effect{}, c.busError(ctx, "GetAccessibleAtPoint", err)
	}
	if target.null() {
		return driver.Effect{}, automation.NewDeclined(automation.RouteAccessibility, fmt.Sprintf("no accessible element at %s", at))
	}

	count := cmd.EffectiveCount()
	for i := 0; i < count; i++ {
		var ok bool
		err := c.bus.Call(ctx, target.Name, target.Path, methodDoAction, []any{int32(0)}, &ok)
		if err == nil && ok {
			continue
		}
		if err != nil {
			err = c.busError(ctx, "DoAction", err)
		} else {
			err = automation.NewDeclined(automation.RouteAccessibility, fmt.Sprintf("%s refused its default action", target))
		}
		if i > 0 && automation.Recoverable(err) {
			// Already activated; falling back would repeat it.
			return driver.Effect{}, automation.NewOSFailure("DoAction", 0, fmt.Errorf("activation %d of %d: %v", i+1, count, err))
		}
		return driver.Effect{}, err
	}

	c.logger.Debug("activated element", "element", target.String(), "point", at.String())
	return driver.Effect{Point: &at}, nil
}

func (c *Channel) typeText(ctx context.Context, frame ref, text string) error {
	focused, err := c.focused(ctx, frame)
	if err != nil {
		return err
	}

	var caret dbus.Variant
	if err := c.bus.Call(ctx, focused.Name, focused.Path, methodPropertiesGet,
		[]any{ifaceText, "CaretOffset"}, &caret); err != nil {
		return c.busError(ctx, "Text.CaretOffset", err)
	}
	pos, ok := caret.Value().(int32)
	if !ok {
		return automation.NewDeclined(automation.RouteAccessibility, "focused element has no caret")
	}

	var inserted bool
	err = c.bus.Call(ctx, focused.Name, focused.Path, methodInsertText,
		[]any{pos, text, int32(utf8.RuneCountInString(text))}, &inserted)
	if err != nil {
		return c.busError(ctx, "InsertText", err)
	}
	if !inserted {
		return automation.NewDeclined(automation.RouteAccessibility, fmt.Sprintf("%s is not editable", focused))
	}
	return nil
}

// frame finds the accessible top-level object for win.
func (c *Channel) frame(ctx context.Context, win automation.Window) (ref, error) {
	app, err := c.application(ctx, win.App)
	if err != nil {
		return ref{}, err
	}

	var frames []ref
	if err := c.bus.Call(ctx, app.Name, app.Path, methodGetChildren, nil, &frames); err != nil {
		return ref{}, c.busError(ctx, "GetChildren", err)
	}

	var (
		best     ref
		bestArea float64
	)
	for _, f := range frames {
		var box extents
		if err := c.bus.Call(ctx, f.Name, f.Path, methodGetExtents, []any{coordTypeScreen}, &box); err != nil {
			continue
		}
		area := win.Frame.Overlap(geometry.NewRect(int(box.X), int(box.Y), int(box.Width), int(box.Height)))
		if area > bestArea {
			best, bestArea = f, area
		}
	}
	if bestArea == 0 {
		return ref{}, automation.NewWindowNotFound(win.Handle)
	}
	return best, nil
}

// application finds the registered application owned by pid.
func (c *Channel) application(ctx context.Context, pid automation.ApplicationID) (ref, error) {
	if pid <= 0 {
		return ref{}, automation.NewApplicationNotFound(pid)
	}

	var apps []ref
	if err := c.bus.Call(ctx, registryName, registryRoot, methodGetChildren, nil, &apps); err != nil {
		return ref{}, c.busError(ctx, "registry GetChildren", err)
	}
	for _, app := range apps {
		var owner uint32
		err := c.bus.Call(ctx, "org.freedesktop.DBus", "/org/freedesktop/DBus", methodUnixPID, []any{app.Name}, &owner)
		if err != nil {
			continue
		}
		if int64(owner) == int64(pid) {
			return app, nil
		}
	}
	return ref{}, automation.NewApplicationNotFound(pid)
}

// focused walks the tree under root breadth first looking for the element
// holding keyboard focus.
func (c *Channel) focused(ctx context.Context, root ref) (ref, error) {
	level := []ref{root}
	for depth := 0; depth <= c.maxDepth && len(level) > 0; depth++ {
		var next []ref
		for _, node := range level {
			if err := ctx.Err(); err != nil {
				return ref{}, err
			}
			var states []uint32
			if err := c.bus.Call(ctx, node.Name, node.Path, methodGetState, nil, &states); err == nil && hasState(states, stateFocused) && node != root {
				return node, nil
			}
			var children []ref
			if err := c.bus.Call(ctx, node.Name, node.Path, methodGetChildren, nil, &children); err == nil {
				next = append(next, children...)
			}
		}
		level = next
	}
	return ref{}, automation.NewDeclined(automation.RouteAccessibility, "no focused element")
}

func hasState(states []uint32, bit int) bool {
	word := bit / 32
	if word >= len(states) {
		return false
	}
	return states[word]&(1<<uint(bit%32)) != 0
}

// busError turns a failed call into a decline unless the caller gave up.
func (c *Channel) busError(ctx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errorName(err) == "org.freedesktop.DBus.Error.AccessDenied" {
		return automation.NewPermissionDenied(fmt.Sprintf("%s: %v", what, err))
	}
	return automation.NewDeclined(automation.RouteAccessibility, fmt.Sprintf("%s failed: %v", what, err))
}

func errorName(err error) string {
	var e dbus.Error
	if errors.As(err, &e) {
		return e.Name
	}
	var pe *dbus.Error
	if errors.As(err, &pe) {
		return pe.Name
	}
	return ""
}
