package atspi

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	registryName = "org.a11y.atspi.Registry"
	registryRoot = dbus.ObjectPath("/org/a11y/atspi/accessible/root")
	nullPath     = dbus.ObjectPath("/org/a11y/atspi/null")

	ifaceAccessible   = "org.a11y.atspi.Accessible"
	ifaceComponent    = "org.a11y.atspi.Component"
	ifaceAction       = "org.a11y.atspi.Action"
	ifaceText         = "org.a11y.atspi.Text"
	ifaceEditableText = "org.a11y.atspi.EditableText"

	methodGetChildren   = ifaceAccessible + ".GetChildren"
	methodGetState      = ifaceAccessible + ".GetState"
	methodGetExtents    = ifaceComponent + ".GetExtents"
	methodAccessibleAt  = ifaceComponent + ".GetAccessibleAtPoint"
	methodDoAction      = ifaceAction + ".DoAction"
	methodInsertText    = ifaceEditableText + ".InsertText"
	methodPropertiesGet = "org.freedesktop.DBus.Properties.Get"
	methodUnixPID       = "org.freedesktop.DBus.GetConnectionUnixProcessID"

	// coordTypeScreen asks Component methods for screen coordinates.
	coordTypeScreen uint32 = 0

	// stateFocused is the bit index of ATSPI_STATE_FOCUSED.
	stateFocused = 12
)

// ref is an accessible object reference, marshalled as (so).
type ref struct {
	Name string
	Path dbus.ObjectPath
}

func (r ref) null() bool { return r.Name == "" || r.Path == "" || r.Path == nullPath }

func (r ref) String() string { return r.Name + string(r.Path) }

// extents is a Component bounding box, marshalled as (iiii).
type extents struct {
	X, Y, Width, Height int32
}

// caller performs D-Bus method calls. Results are stored into out.
type caller interface {
	Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args []any, out ...any) error
}

type busCaller struct {
	conn *dbus.Conn
}

func (b busCaller) Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args []any, out ...any) error {
	call := b.conn.Object(dest, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return call.Err
	}
	if len(out) == 0 {
		return nil
	}
	return call.Store(out...)
}

// Connect opens the accessibility bus, whose address is published by the
// org.a11y.Bus service on the session bus.
func Connect(ctx context.Context) (*dbus.Conn, error) {
	session, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer session.Close()

	var addr string
	err = session.Object("org.a11y.Bus", "/org/a11y/bus").
		CallWithContext(ctx, "org.a11y.Bus.GetAddress", 0).
		Store(&addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get accessibility bus address: %w", err)
	}

	conn, err := dbus.Connect(addr, dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to accessibility bus: %w", err)
	}
	return conn, nil
}
