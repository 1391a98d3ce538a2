package xinput

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/geometry"
)

type fakeInjector struct {
	events []string
	keymap map[string]fakeKey
	failAt int
	syncs  int
}

type fakeKey struct {
	code  xproto.Keycode
	shift bool
}

func newFakeInjector() *fakeInjector {
	f := &fakeInjector{keymap: map[string]fakeKey{
		"Shift_L":   {code: 50},
		"Control_L": {code: 37},
		"space":     {code: 65},
		"Return":    {code: 36},
		"exclam":    {code: 10, shift: true},
	}}
	for i, r := range "abcdefghijklmnopqrstuvwxyz" {
		f.keymap[string(r)] = fakeKey{code: xproto.Keycode(100 + i)}
		f.keymap[string(r-32)] = fakeKey{code: xproto.Keycode(100 + i), shift: true}
	}
	return f
}

func (f *fakeInjector) record(ev string) error {
	f.events = append(f.events, ev)
	if f.failAt > 0 && len(f.events) == f.failAt {
		return errors.New("injected failure")
	}
	return nil
}

func (f *fakeInjector) MovePointer(x, y int) error {
	return f.record(fmt.Sprintf("move %d,%d", x, y))
}

func (f *fakeInjector) Button(button byte, press bool) error {
	return f.record(fmt.Sprintf("button %d %s", button, upDown(press)))
}

func (f *fakeInjector) Key(code xproto.Keycode, press bool) error {
	return f.record(fmt.Sprintf("key %d %s", code, upDown(press)))
}

func (f *fakeInjector) Keycode(name string) (xproto.Keycode, bool, error) {
	k, ok := f.keymap[name]
	if !ok {
		return 0, false, fmt.Errorf("no keycode for keysym %q", name)
	}
	return k.code, k.shift, nil
}

func (f *fakeInjector) Sync() { f.syncs++ }

func upDown(press bool) string {
	if press {
		return "down"
	}
	return "up"
}

var testWindow = automation.Window{
	Handle: "win_1",
	Frame:  geometry.NewRect(100, 200, 800, 600),
	Active: true,
}

func TestClickMovesThenPresses(t *testing.T) {
	inj := newFakeInjector()
	ch := New(inj, Options{})

	eff, err := ch.Execute(context.Background(), automation.Click{
		Point:  geometry.WindowPoint{X: 10, Y: 20},
		Button: automation.ButtonRight,
		Count:  2,
	}, testWindow)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []string{
		"move 110,220",
		"button 3 down", "button 3 up",
		"button 3 down", "button 3 up",
	}
	if diff := cmp.Diff(want, inj.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	if eff.Point == nil || *eff.Point != (geometry.ScreenPoint{X: 110, Y: 220}) {
		t.Fatalf("effect point = %v", eff.Point)
	}
	if inj.syncs != 1 {
		t.Fatalf("syncs = %d, want 1", inj.syncs)
	}
}

func TestRejectsPointsBeyondCoordinateRange(t *testing.T) {
	far := automation.Window{Handle: "win_2", Frame: geometry.NewRect(32000, 0, 2000, 600), Active: true}
	tests := []struct {
		name string
		cmd  automation.Command
	}{
		{"click", automation.Click{Point: geometry.WindowPoint{X: 1000, Y: 10}}},
		{"drag end", automation.Drag{From: geometry.WindowPoint{X: 10, Y: 10}, To: geometry.WindowPoint{X: 900, Y: 10}}},
		{"swipe end", automation.Gesture{Type: automation.GestureSwipe, At: geometry.WindowPoint{X: 10, Y: 10}, To: geometry.WindowPoint{X: 800, Y: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inj := newFakeInjector()
			ch := New(inj, Options{})

			_, err := ch.Execute(context.Background(), tt.cmd, far)
			if !errors.Is(err, automation.CoordinateOutOfBounds) {
				t.Fatalf("err = %v, want CoordinateOutOfBounds", err)
			}
			if automation.Recoverable(err) {
				t.Fatal("out-of-range coordinates must not fall back")
			}
			if len(inj.events) != 0 {
				t.Fatalf("events = %v, want none", inj.events)
			}
		})
	}
}

func TestTypeTextHandlesShift(t *testing.T) {
	inj := newFakeInjector()
	ch := New(inj, Options{})

	if _, err := ch.Execute(context.Background(), automation.TypeText{Text: "Hi!"}, testWindow); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []string{
		"key 50 down", "key 107 down", "key 107 up", "key 50 up",
		"key 108 down", "key 108 up",
		"key 50 down", "key 10 down", "key 10 up", "key 50 up",
	}
	if diff := cmp.Diff(want, inj.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeTextUnmappableSendsNothing(t *testing.T) {
	inj := newFakeInjector()
	ch := New(inj, Options{})

	_, err := ch.Execute(context.Background(), automation.TypeText{Text: "oké"}, testWindow)
	if !errors.Is(err, automation.EventCreationFailed) {
		t.Fatalf("err = %v, want EventCreationFailed", err)
	}
	if len(inj.events) != 0 {
		t.Fatalf("events = %v, want none", inj.events)
	}
}

func TestTypeTextRateLimited(t *testing.T) {
	inj := newFakeInjector()
	ch := New(inj, Options{KeystrokesPerSecond: 20})

	start := time.Now()
	if _, err := ch.Execute(context.Background(), automation.TypeText{Text: "abcde"}, testWindow); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Burst of one, then four waits of 50ms each.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("typed in %v, expected pacing", elapsed)
	}
}

func TestDragInterpolatesAndReleases(t *testing.T) {
	inj := newFakeInjector()
	ch := New(inj, Options{PointerSteps: 4})

	_, err := ch.Execute(context.Background(), automation.Drag{
		From: geometry.WindowPoint{X: 0, Y: 0},
		To:   geometry.WindowPoint{X: 40, Y: 80},
	}, testWindow)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []string{
		"move 100,200",
		"button 1 down",
		"move 110,220",
		"move 120,240",
		"move 130,260",
		"move 140,280",
		"button 1 up",
	}
	if diff := cmp.Diff(want, inj.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDragCancelledStillReleases(t *testing.T) {
	inj := newFakeInjector()
	ch := New(inj, Options{PointerSteps: 4})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := ch.Execute(ctx, automation.Drag{
		From:     geometry.WindowPoint{X: 0, Y: 0},
		To:       geometry.WindowPoint{X: 40, Y: 80},
		Duration: 10 * time.Second,
	}, testWindow)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if last := inj.events[len(inj.events)-1]; last != "button 1 up" {
		t.Fatalf("last event = %q, want release", last)
	}
}

func TestScrollUsesWheelButtons(t *testing.T) {
	inj := newFakeInjector()
	ch := New(inj, Options{ScrollStepPx: 10})

	_, err := ch.Execute(context.Background(), automation.Gesture{
		Type:   automation.GestureScroll,
		At:     geometry.WindowPoint{X: 5, Y: 5},
		DeltaY: 24,
		DeltaX: -4,
	}, testWindow)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []string{
		"move 105,205",
		"button 5 down", "button 5 up",
		"button 5 down", "button 5 up",
		"button 6 down", "button 6 up",
	}
	if diff := cmp.Diff(want, inj.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestPinchHoldsControl(t *testing.T) {
	inj := newFakeInjector()
	ch := New(inj, Options{})

	_, err := ch.Execute(context.Background(), automation.Gesture{
		Type:  automation.GesturePinch,
		At:    geometry.WindowPoint{X: 0, Y: 0},
		Scale: 1.21,
	}, testWindow)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []string{
		"move 100,200",
		"key 37 down",
		"button 4 down", "button 4 up",
		"button 4 down", "button 4 up",
		"key 37 up",
	}
	if diff := cmp.Diff(want, inj.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestRotateDeclines(t *testing.T) {
	inj := newFakeInjector()
	ch := New(inj, Options{})

	_, err := ch.Execute(context.Background(), automation.Gesture{
		Type:  automation.GestureRotate,
		At:    geometry.WindowPoint{X: 1, Y: 1},
		Angle: 90,
	}, testWindow)
	if !errors.Is(err, automation.Declined) || !automation.Recoverable(err) {
		t.Fatalf("err = %v, want recoverable decline", err)
	}
	if len(inj.events) != 0 {
		t.Fatalf("events = %v, want none", inj.events)
	}
}

func TestInjectFailureIsNotRecoverable(t *testing.T) {
	inj := newFakeInjector()
	inj.failAt = 2
	ch := New(inj, Options{})

	_, err := ch.Execute(context.Background(), automation.Click{Point: geometry.WindowPoint{X: 1, Y: 1}}, testWindow)
	if !errors.Is(err, automation.OSFailure) {
		t.Fatalf("err = %v, want OSFailure", err)
	}
	if automation.Recoverable(err) {
		t.Fatal("injection failures must not fall through")
	}
}

func TestSupports(t *testing.T) {
	ch := New(newFakeInjector(), Options{})
	for _, k := range []automation.CommandKind{
		automation.KindClick, automation.KindTypeText, automation.KindDrag, automation.KindGesture,
	} {
		ok, err := ch.Supports(context.Background(), k, testWindow)
		if err != nil || !ok {
			t.Errorf("Supports(%s) = %v, %v", k, ok, err)
		}
	}

	if ok, _ := New(nil, Options{}).Supports(context.Background(), automation.KindClick, testWindow); ok {
		t.Error("channel without injector reported support")
	}
}
