package atspi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/identity"
)

type node struct {
	children []ref
	box      extents
	states   []uint32
	actionOK bool
	caret    *int32
	editable bool
	hit      ref
}

// fakeBus serves a static accessibility tree.
type fakeBus struct {
	pids     map[string]uint32
	nodes    map[ref]*node
	actions  []ref
	inserted []string
	denied   bool
	// refuseAfter makes DoAction report failure once that many actions ran.
	refuseAfter int
}

func (f *fakeBus) Call(_ context.Context, dest string, path dbus.ObjectPath, method string, args []any, out ...any) error {
	if method == methodUnixPID {
		pid, ok := f.pids[args[0].(string)]
		if !ok {
			return dbus.Error{Name: "org.freedesktop.DBus.Error.NameHasNoOwner"}
		}
		*out[0].(*uint32) = pid
		return nil
	}

	r := ref{Name: dest, Path: path}
	if dest == registryName && path == registryRoot && method == methodGetChildren {
		var apps []ref
		for name := range f.pids {
			apps = append(apps, ref{Name: name, Path: registryRoot})
		}
		*out[0].(*[]ref) = apps
		return nil
	}
	n, ok := f.nodes[r]
	if !ok {
		return dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownObject"}
	}

	switch method {
	case methodGetChildren:
		*out[0].(*[]ref) = n.children
	case methodGetExtents:
		*out[0].(*extents) = n.box
	case methodGetState:
		*out[0].(*[]uint32) = n.states
	case methodAccessibleAt:
		*out[0].(*ref) = n.hit
	case methodDoAction:
		if f.denied {
			return dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied"}
		}
		if f.refuseAfter > 0 && len(f.actions) >= f.refuseAfter {
			*out[0].(*bool) = false
			return nil
		}
		f.actions = append(f.actions, r)
		*out[0].(*bool) = n.actionOK
	case methodPropertiesGet:
		if n.caret == nil {
			return dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownInterface"}
		}
		*out[0].(*dbus.Variant) = dbus.MakeVariant(*n.caret)
	case methodInsertText:
		if n.editable {
			f.inserted = append(f.inserted, fmt.Sprintf("%d:%s", args[0].(int32), args[1].(string)))
		}
		*out[0].(*bool) = n.editable
	default:
		return fmt.Errorf("unexpected method %s", method)
	}
	return nil
}

const appBus = ":1.42"

var (
	appRoot   = ref{Name: appBus, Path: registryRoot}
	frameA    = ref{Name: appBus, Path: "/org/a11y/atspi/accessible/1"}
	frameB    = ref{Name: appBus, Path: "/org/a11y/atspi/accessible/2"}
	button    = ref{Name: appBus, Path: "/org/a11y/atspi/accessible/3"}
	entry     = ref{Name: appBus, Path: "/org/a11y/atspi/accessible/4"}
	container = ref{Name: appBus, Path: "/org/a11y/atspi/accessible/5"}
)

func newFakeBus() *fakeBus {
	caret := int32(3)
	return &fakeBus{
		pids: map[string]uint32{appBus: 1234, ":1.7": 99},
		nodes: map[ref]*node{
			appRoot: {children: []ref{frameA, frameB}},
			frameA:  {box: extents{X: 0, Y: 0, Width: 200, Height: 100}},
			frameB: {
				box:      extents{X: 500, Y: 400, Width: 300, Height: 200},
				children: []ref{container},
				hit:      button,
			},
			container: {children: []ref{button, entry}},
			button:    {actionOK: true},
			entry:     {states: []uint32{1 << stateFocused, 0}, caret: &caret, editable: true},
		},
	}
}

var appWindow = automation.Window{
	Handle: "win_B",
	Frame:  geometry.NewRect(510, 410, 280, 180),
	App:    1234,
}

func TestSupports(t *testing.T) {
	ch := newChannel(newFakeBus(), nil, 0, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		kind automation.CommandKind
		win  automation.Window
		want bool
	}{
		{"click", automation.KindClick, appWindow, true},
		{"type", automation.KindTypeText, appWindow, true},
		{"drag", automation.KindDrag, appWindow, false},
		{"unknown app", automation.KindClick, automation.Window{Handle: "win_1", App: 555, Frame: appWindow.Frame}, false},
		{"no overlapping frame", automation.KindClick, automation.Window{Handle: "win_1", App: 1234, Frame: geometry.NewRect(2000, 2000, 10, 10)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ch.Supports(ctx, tt.kind, tt.win)
			if err != nil {
				t.Fatalf("Supports: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Supports = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClickActivatesElementUnderPoint(t *testing.T) {
	bus := newFakeBus()
	table := identity.NewTable()
	ch := newChannel(bus, table, 0, nil)

	eff, err := ch.Execute(context.Background(), automation.Click{Point: geometry.WindowPoint{X: 10, Y: 10}}, appWindow)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(bus.actions) != 1 || bus.actions[0] != button {
		t.Fatalf("actions = %v, want [%v]", bus.actions, button)
	}
	if eff.Point == nil || *eff.Point != (geometry.ScreenPoint{X: 520, Y: 420}) {
		t.Fatalf("effect point = %v", eff.Point)
	}

	ax, ok := table.Resolve(appWindow.Handle)
	if !ok || ax != identity.AccessibilityHandle(frameB.String()) {
		t.Fatalf("Resolve(%q) = %q, %v", appWindow.Handle, ax, ok)
	}
	if back, _ := table.Resolve(ax); back != appWindow.Handle {
		t.Fatalf("Resolve(%q) = %q, want %q", ax, back, appWindow.Handle)
	}
}

func TestClickKeepsExistingMapping(t *testing.T) {
	bus := newFakeBus()
	table := identity.NewTable()
	stable := identity.StableHandle("1234", "editor", "notes")
	table.AddMapping(appWindow.Handle, stable)
	ch := newChannel(bus, table, 0, nil)

	if _, err := ch.Execute(context.Background(), automation.Click{Point: geometry.WindowPoint{X: 10, Y: 10}}, appWindow); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got, ok := table.Resolve(stable); !ok || got != appWindow.Handle {
		t.Fatalf("Resolve(%q) = %q, %v, want %q", stable, got, ok, appWindow.Handle)
	}
	if _, ok := table.Resolve(identity.AccessibilityHandle(frameB.String())); ok {
		t.Fatalf("accessible frame must not displace an existing mapping")
	}
}

func TestClickRepeatRefusalIsNotRecoverable(t *testing.T) {
	tests := []struct {
		name        string
		refuseAfter int
		wantActions int
		recoverable bool
	}{
		{"first activation refused", 0, 0, true},
		{"second activation refused", 1, 1, false},
		{"third activation refused", 2, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			if tt.refuseAfter == 0 {
				bus.nodes[button].actionOK = false
			}
			bus.refuseAfter = tt.refuseAfter
			ch := newChannel(bus, nil, 0, nil)

			_, err := ch.Execute(context.Background(), automation.Click{Point: geometry.WindowPoint{X: 10, Y: 10}, Count: 3}, appWindow)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := automation.Recoverable(err); got != tt.recoverable {
				t.Fatalf("Recoverable(%v) = %v, want %v", err, got, tt.recoverable)
			}
			if tt.wantActions > 0 && len(bus.actions) != tt.wantActions {
				t.Fatalf("actions = %d, want %d", len(bus.actions), tt.wantActions)
			}
		})
	}
}

func TestClickNothingUnderPointDeclines(t *testing.T) {
	bus := newFakeBus()
	bus.nodes[frameB].hit = ref{Name: appBus, Path: nullPath}
	ch := newChannel(bus, nil, 0, nil)

	_, err := ch.Execute(context.Background(), automation.Click{Point: geometry.WindowPoint{X: 1, Y: 1}}, appWindow)
	if !errors.Is(err, automation.Declined) || !automation.Recoverable(err) {
		t.Fatalf("err = %v, want recoverable decline", err)
	}
	if len(bus.actions) != 0 {
		t.Fatalf("actions = %v, want none", bus.actions)
	}
}

func TestClickSecondaryButtonDeclines(t *testing.T) {
	bus := newFakeBus()
	ch := newChannel(bus, nil, 0, nil)

	_, err := ch.Execute(context.Background(), automation.Click{Button: automation.ButtonRight}, appWindow)
	if !errors.Is(err, automation.Declined) {
		t.Fatalf("err = %v, want Declined", err)
	}
}

func TestClickAccessDenied(t *testing.T) {
	bus := newFakeBus()
	bus.denied = true
	ch := newChannel(bus, nil, 0, nil)

	_, err := ch.Execute(context.Background(), automation.Click{}, appWindow)
	if !errors.Is(err, automation.PermissionDenied) {
		t.Fatalf("err = %v, want PermissionDenied", err)
	}
	if automation.Recoverable(err) {
		t.Fatal("permission errors must stop routing")
	}
}

func TestTypeTextInsertsAtCaret(t *testing.T) {
	bus := newFakeBus()
	ch := newChannel(bus, nil, 0, nil)

	if _, err := ch.Execute(context.Background(), automation.TypeText{Text: "hello"}, appWindow); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(bus.inserted) != 1 || bus.inserted[0] != "3:hello" {
		t.Fatalf("inserted = %v", bus.inserted)
	}
}

func TestTypeTextWithoutFocusDeclines(t *testing.T) {
	bus := newFakeBus()
	bus.nodes[entry].states = []uint32{0, 0}
	ch := newChannel(bus, nil, 0, nil)

	_, err := ch.Execute(context.Background(), automation.TypeText{Text: "x"}, appWindow)
	if !errors.Is(err, automation.Declined) {
		t.Fatalf("err = %v, want Declined", err)
	}
}

func TestTypeTextRespectsMaxDepth(t *testing.T) {
	bus := newFakeBus()
	// entry sits two levels below the frame.
	ch := newChannel(bus, nil, 1, nil)

	_, err := ch.Execute(context.Background(), automation.TypeText{Text: "x"}, appWindow)
	if !errors.Is(err, automation.Declined) {
		t.Fatalf("err = %v, want Declined", err)
	}
	if len(bus.inserted) != 0 {
		t.Fatalf("inserted = %v, want none", bus.inserted)
	}
}

func TestHasState(t *testing.T) {
	if !hasState([]uint32{1 << 12}, stateFocused) {
		t.Fatal("focused bit not detected")
	}
	if hasState([]uint32{}, stateFocused) || hasState([]uint32{1 << 11}, stateFocused) {
		t.Fatal("false positive")
	}
	if !hasState([]uint32{0, 1}, 32) {
		t.Fatal("second word not read")
	}
}
