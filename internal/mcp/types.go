package mcp

import "github.com/1broseidon/steer/internal/geometry"

// ClickInput is the input for the click tool.
type ClickInput struct {
	Window string  `json:"window" jsonschema:"Window handle (win_<hex> or ax_<id>) as returned by list_windows"`
	X      float64 `json:"x" jsonschema:"X coordinate relative to the window's top-left corner"`
	Y      float64 `json:"y" jsonschema:"Y coordinate relative to the window's top-left corner"`
	Button string  `json:"button,omitempty" jsonschema:"Mouse button: left, middle or right (default: left)"`
	Count  int     `json:"count,omitempty" jsonschema:"Number of clicks, 1 to 3 (default: 1)"`
	Policy string  `json:"policy,omitempty" jsonschema:"Visibility policy: preserve or allow-restore (default: from config)"`
}

// TypeTextInput is the input for the type_text tool.
type TypeTextInput struct {
	Window string `json:"window" jsonschema:"Window handle as returned by list_windows"`
	Text   string `json:"text" jsonschema:"Text to enter into the focused element of the window"`
	Policy string `json:"policy,omitempty" jsonschema:"Visibility policy: preserve or allow-restore (default: from config)"`
}

// DragInput is the input for the drag tool.
type DragInput struct {
	Window     string  `json:"window" jsonschema:"Window handle as returned by list_windows"`
	FromX      float64 `json:"from_x" jsonschema:"Start X, window-relative"`
	FromY      float64 `json:"from_y" jsonschema:"Start Y, window-relative"`
	ToX        float64 `json:"to_x" jsonschema:"End X, window-relative"`
	ToY        float64 `json:"to_y" jsonschema:"End Y, window-relative"`
	DurationMS int     `json:"duration_ms,omitempty" jsonschema:"How long the drag takes in milliseconds (default: 0, immediate)"`
	Policy     string  `json:"policy,omitempty" jsonschema:"Visibility policy: preserve or allow-restore (default: from config)"`
}

// GestureInput is the input for the gesture tool.
type GestureInput struct {
	Window     string  `json:"window" jsonschema:"Window handle as returned by list_windows"`
	Type       string  `json:"type" jsonschema:"Gesture type: scroll, pinch, rotate, drag or swipe"`
	X          float64 `json:"x" jsonschema:"Gesture anchor X, window-relative"`
	Y          float64 `json:"y" jsonschema:"Gesture anchor Y, window-relative"`
	DeltaX     float64 `json:"delta_x,omitempty" jsonschema:"Horizontal scroll distance in pixels (scroll)"`
	DeltaY     float64 `json:"delta_y,omitempty" jsonschema:"Vertical scroll distance in pixels, positive scrolls down (scroll)"`
	Scale      float64 `json:"scale,omitempty" jsonschema:"Zoom factor, above 1 zooms in (pinch)"`
	Angle      float64 `json:"angle,omitempty" jsonschema:"Rotation in degrees (rotate)"`
	ToX        float64 `json:"to_x,omitempty" jsonschema:"End X, window-relative (drag, swipe)"`
	ToY        float64 `json:"to_y,omitempty" jsonschema:"End Y, window-relative (drag, swipe)"`
	DurationMS int     `json:"duration_ms,omitempty" jsonschema:"Gesture duration in milliseconds"`
	Policy     string  `json:"policy,omitempty" jsonschema:"Visibility policy: preserve or allow-restore (default: from config)"`
}

// CommandOutput is the output of every command tool.
type CommandOutput struct {
	InvocationID string                `json:"invocation_id"`
	Route        string                `json:"route"`
	Point        *geometry.ScreenPoint `json:"point,omitempty"`
	Window       string                `json:"window"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	Class string `json:"class,omitempty" jsonschema:"Only list windows whose class contains this text (case-insensitive)"`
}

// WindowInfo describes a single window.
type WindowInfo struct {
	Handle      string  `json:"handle"`
	Alternative string  `json:"alternative,omitempty"`
	Title       string  `json:"title"`
	Class       string  `json:"class"`
	PID         int32   `json:"pid"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Minimized   bool    `json:"minimized"`
	Active      bool    `json:"active"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []WindowInfo `json:"windows"`
}

// ClassifyHandleInput is the input for the classify_handle tool.
type ClassifyHandleInput struct {
	Handle string `json:"handle" jsonschema:"Handle to classify"`
}

// ClassifyHandleOutput is the output for the classify_handle tool.
type ClassifyHandleOutput struct {
	Form        string `json:"form"`
	Value       string `json:"value"`
	Alternative string `json:"alternative,omitempty"`
}

// CaptureWindowInput is the input for the capture_window tool.
type CaptureWindowInput struct {
	Window string `json:"window" jsonschema:"Window handle as returned by list_windows"`
}

// ExplainRouteInput is the input for the explain_route tool.
type ExplainRouteInput struct {
	Window  string `json:"window" jsonschema:"Window handle as returned by list_windows"`
	Command string `json:"command" jsonschema:"Command kind: click, type_text, drag or gesture"`
	Policy  string `json:"policy,omitempty" jsonschema:"Visibility policy: preserve or allow-restore (default: from config)"`
}

// RouteStep is one candidate in an explain_route answer.
type RouteStep struct {
	Route        string `json:"route"`
	Available    bool   `json:"available"`
	Supported    bool   `json:"supported"`
	NeedsRestore bool   `json:"needs_restore,omitempty"`
	Blocked      bool   `json:"blocked,omitempty"`
	Note         string `json:"note,omitempty"`
}

// ExplainRouteOutput is the output for the explain_route tool.
type ExplainRouteOutput struct {
	Window string      `json:"window"`
	Steps  []RouteStep `json:"steps"`
}

// WaitInput is the input for the wait tool.
type WaitInput struct {
	Seconds float64 `json:"seconds" jsonschema:"How long to wait, in seconds (max 60)"`
}

// WaitOutput is the output for the wait tool.
type WaitOutput struct {
	WaitedSeconds float64 `json:"waited_seconds"`
}
