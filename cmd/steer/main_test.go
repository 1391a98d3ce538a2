package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/ipc"
)

func TestParseFloats(t *testing.T) {
	got, err := parseFloats([]string{"1.5", "-2"}, "x", "y")
	if err != nil {
		t.Fatalf("parseFloats: %v", err)
	}
	if diff := cmp.Diff([]float64{1.5, -2}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := parseFloats([]string{"1"}, "x", "y"); !errors.Is(err, automation.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for missing arg, got %v", err)
	}
	_, err = parseFloats([]string{"1", "abc"}, "x", "y")
	if !errors.Is(err, automation.InvalidArgument) || !strings.Contains(err.Error(), "y") {
		t.Fatalf("expected InvalidArgument naming y, got %v", err)
	}
}

func TestParsePair(t *testing.T) {
	x, y, err := parsePair(" 10, 20.5")
	if err != nil || x != 10 || y != 20.5 {
		t.Fatalf("parsePair = %g, %g, %v", x, y, err)
	}
	if _, _, err := parsePair("10"); !errors.Is(err, automation.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestBuildGesture(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		scale float64
		angle float64
		to    string
		delta string
		want  automation.Gesture
	}{
		{
			name:  "pinch",
			typ:   "pinch",
			scale: 1.5,
			want:  automation.Gesture{Type: automation.GesturePinch, At: geometry.WindowPoint{X: 5, Y: 6}, Scale: 1.5},
		},
		{
			name: "swipe",
			typ:  "Swipe",
			to:   "50,60",
			want: automation.Gesture{Type: automation.GestureSwipe, At: geometry.WindowPoint{X: 5, Y: 6}, To: geometry.WindowPoint{X: 50, Y: 60}},
		},
		{
			name:  "scroll",
			typ:   "scroll",
			delta: "0,-120",
			want:  automation.Gesture{Type: automation.GestureScroll, At: geometry.WindowPoint{X: 5, Y: 6}, DeltaY: -120},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildGesture(tt.typ, []string{"5", "6"}, tt.scale, tt.angle, tt.to, tt.delta, 0)
			if err != nil {
				t.Fatalf("buildGesture: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
			if err := got.Validate(); err != nil {
				t.Fatalf("built gesture does not validate: %v", err)
			}
		})
	}

	if _, err := buildGesture("spin", []string{"1", "1"}, 0, 0, "", "", 0); !errors.Is(err, automation.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for unknown type, got %v", err)
	}
	if _, err := buildGesture("drag", []string{"1", "1"}, 0, 0, "nope", "", 0); !errors.Is(err, automation.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for bad --to, got %v", err)
	}
}

func TestParseWaitDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"2":     2 * time.Second,
		"0.25":  250 * time.Millisecond,
		"300ms": 300 * time.Millisecond,
		"0":     0,
	}
	for in, want := range cases {
		got, err := parseWaitDuration(in)
		if err != nil || got != want {
			t.Errorf("parseWaitDuration(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"-1", "-5s", "soon"} {
		if _, err := parseWaitDuration(bad); !errors.Is(err, automation.InvalidArgument) {
			t.Errorf("parseWaitDuration(%q) err = %v, want InvalidArgument", bad, err)
		}
	}
}

func TestProbeCommand(t *testing.T) {
	cases := map[string]automation.CommandKind{
		"click":     automation.KindClick,
		"type":      automation.KindTypeText,
		"type_text": automation.KindTypeText,
		"DRAG":      automation.KindDrag,
		"scroll":    automation.KindGesture,
	}
	for in, want := range cases {
		cmd, err := probeCommand(in)
		if err != nil {
			t.Fatalf("probeCommand(%q): %v", in, err)
		}
		if cmd.Kind() != want {
			t.Errorf("probeCommand(%q).Kind() = %q, want %q", in, cmd.Kind(), want)
		}
		if err := cmd.Validate(); err != nil {
			t.Errorf("probeCommand(%q) does not validate: %v", in, err)
		}
	}
	if _, err := probeCommand("hover"); !errors.Is(err, automation.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestDescribeStep(t *testing.T) {
	tests := []struct {
		available, supported, restore, blocked bool
		note                                   string
		want                                   string
	}{
		{false, false, false, false, "no channel configured", "unavailable (no channel configured)"},
		{true, false, false, false, "", "not capable"},
		{true, true, false, true, "target not frontmost", "blocked by policy (target not frontmost)"},
		{true, true, true, false, "", "ready after restore"},
		{true, true, false, false, "", "ready"},
	}
	for _, tt := range tests {
		if got := describeStep(tt.available, tt.supported, tt.restore, tt.blocked, tt.note); got != tt.want {
			t.Errorf("describeStep = %q, want %q", got, tt.want)
		}
	}
}

func TestWindowTable(t *testing.T) {
	wins := []ipc.WindowInfo{
		{Window: automation.Window{Handle: "win_1A", Title: "notes", Class: "Editor", Frame: geometry.NewRect(10, 20, 300, 200), Active: true, App: 42}, Alternative: "ax_:1.2/f"},
		{Window: automation.Window{Handle: "win_2B", Title: "player", Class: "media", Minimized: true, App: 7}},
	}

	filtered := filterWindows(wins, "EDIT")
	if len(filtered) != 1 || filtered[0].Handle != "win_1A" {
		t.Fatalf("filterWindows = %+v", filtered)
	}
	if got := filterWindows(wins, ""); len(got) != 2 {
		t.Fatalf("empty filter dropped windows: %+v", got)
	}

	var buf bytes.Buffer
	writeWindowTable(&buf, wins)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "HANDLE") {
		t.Fatalf("missing header: %q", lines[0])
	}
	for _, want := range []string{"win_1A", "300x200+10+20", "active", "ax_:1.2/f"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
	if !strings.Contains(lines[2], "minimized") {
		t.Errorf("row %q missing minimized state", lines[2])
	}
}

func TestJoinStrings(t *testing.T) {
	if got := joinStrings([]automation.Route{automation.RouteScripting, automation.RouteSyntheticInput}); got != "scripting, synthetic-input" {
		t.Fatalf("joinStrings = %q", got)
	}
	if got := joinStrings([]automation.Route(nil)); got != "-" {
		t.Fatalf("joinStrings(nil) = %q", got)
	}
}

func TestReportErrorExitCodes(t *testing.T) {
	if code := reportError(automation.NewInvalidArgument("bad")); code != 2 {
		t.Fatalf("invalid argument exit code = %d, want 2", code)
	}
	if code := reportError(automation.NewWindowNotFound("win_1")); code != 1 {
		t.Fatalf("window not found exit code = %d, want 1", code)
	}
	if code := reportError(errors.New("daemon not running")); code != 1 {
		t.Fatalf("plain error exit code = %d, want 1", code)
	}
}

func TestPrintRouted(t *testing.T) {
	var buf bytes.Buffer
	p := geometry.ScreenPoint{X: 105, Y: 206}
	printRouted(&buf, &ipc.RouteData{
		Result: automation.Result{InvocationID: "01J0", Success: true, Route: automation.RouteScripting, Point: &p},
		Window: "win_1A",
	})
	if got := buf.String(); got != "win_1A via scripting at 105,206 (01J0)\n" {
		t.Fatalf("printRouted = %q", got)
	}
}
