package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/driver"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/platform"
	"github.com/1broseidon/steer/internal/router"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandStatus      CommandType = "STATUS"
	CommandListWindows CommandType = "LIST_WINDOWS"
	CommandRoute       CommandType = "ROUTE"
	CommandResolve     CommandType = "RESOLVE"
	CommandMap         CommandType = "MAP"
	CommandCapture     CommandType = "CAPTURE"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	// Code carries the automation error kind, when there is one.
	Code automation.ErrorKind `json:"code,omitempty"`
}

// StatusData represents the data returned by STATUS
type StatusData struct {
	UptimeSeconds int64              `json:"uptime_seconds"`
	DaemonRunning bool               `json:"daemon_running"`
	Routes        []automation.Route `json:"routes"`
	Capabilities  []driver.Kind      `json:"capabilities"`
	Mappings      int                `json:"mappings"`
	Displays      []platform.Display `json:"displays"`
}

// WindowInfo is one row of LIST_WINDOWS.
type WindowInfo struct {
	automation.Window
	// Alternative is the handle registered against this one, if any.
	Alternative string `json:"alternative,omitempty"`
}

type WindowsData struct {
	Windows []WindowInfo `json:"windows"`
}

// CommandPayload is the wire form of an automation.Command. Which fields
// apply depends on Kind; X/Y is the click point, drag start or gesture
// anchor.
type CommandPayload struct {
	Kind       automation.CommandKind `json:"kind"`
	X          float64                `json:"x,omitempty"`
	Y          float64                `json:"y,omitempty"`
	ToX        float64                `json:"to_x,omitempty"`
	ToY        float64                `json:"to_y,omitempty"`
	Button     string                 `json:"button,omitempty"`
	Count      int                    `json:"count,omitempty"`
	Text       string                 `json:"text,omitempty"`
	Gesture    string                 `json:"gesture,omitempty"`
	DeltaX     float64                `json:"delta_x,omitempty"`
	DeltaY     float64                `json:"delta_y,omitempty"`
	Scale      float64                `json:"scale,omitempty"`
	Angle      float64                `json:"angle,omitempty"`
	DurationMS int                    `json:"duration_ms,omitempty"`
}

// NewCommandPayload encodes cmd for the wire.
func NewCommandPayload(cmd automation.Command) CommandPayload {
	switch c := cmd.(type) {
	case automation.Click:
		return CommandPayload{Kind: c.Kind(), X: c.Point.X, Y: c.Point.Y, Button: string(c.Button), Count: c.Count}
	case automation.TypeText:
		return CommandPayload{Kind: c.Kind(), Text: c.Text}
	case automation.Drag:
		return CommandPayload{
			Kind: c.Kind(), X: c.From.X, Y: c.From.Y, ToX: c.To.X, ToY: c.To.Y,
			DurationMS: int(c.Duration / time.Millisecond),
		}
	case automation.Gesture:
		return CommandPayload{
			Kind: c.Kind(), Gesture: string(c.Type), X: c.At.X, Y: c.At.Y,
			ToX: c.To.X, ToY: c.To.Y, DeltaX: c.DeltaX, DeltaY: c.DeltaY,
			Scale: c.Scale, Angle: c.Angle,
			DurationMS: int(c.Duration / time.Millisecond),
		}
	}
	return CommandPayload{}
}

// Command decodes the payload. The result is not validated; the router does
// that before routing.
func (p CommandPayload) Command() (automation.Command, error) {
	at := geometry.WindowPoint{X: p.X, Y: p.Y}
	to := geometry.WindowPoint{X: p.ToX, Y: p.ToY}
	d := time.Duration(p.DurationMS) * time.Millisecond

	switch p.Kind {
	case automation.KindClick:
		return automation.Click{Point: at, Button: automation.MouseButton(p.Button), Count: p.Count}, nil
	case automation.KindTypeText:
		return automation.TypeText{Text: p.Text}, nil
	case automation.KindDrag:
		return automation.Drag{From: at, To: to, Duration: d}, nil
	case automation.KindGesture:
		t, err := automation.ParseGestureType(p.Gesture)
		if err != nil {
			return nil, err
		}
		return automation.Gesture{
			Type: t, At: at, To: to, DeltaX: p.DeltaX, DeltaY: p.DeltaY,
			Scale: p.Scale, Angle: p.Angle, Duration: d,
		}, nil
	}
	return nil, automation.NewInvalidArgument(fmt.Sprintf("unknown command kind %q", p.Kind))
}

// RoutePayload represents the payload for ROUTE.
type RoutePayload struct {
	Command CommandPayload `json:"command"`
	Window  string         `json:"window"`
	Policy  string         `json:"policy,omitempty"`
	// DryRun returns the routing plan without executing anything.
	DryRun bool `json:"dry_run,omitempty"`
}

// RouteData represents the data returned by ROUTE.
type RouteData struct {
	automation.Result
	Window string            `json:"window"`
	Plan   []router.PlanStep `json:"plan,omitempty"`
}

type HandlePayload struct {
	Handle string `json:"handle"`
}

// ResolveData represents the data returned by RESOLVE.
type ResolveData struct {
	Handle      string             `json:"handle"`
	Form        string             `json:"form"`
	Value       string             `json:"value"`
	Alternative string             `json:"alternative,omitempty"`
	Window      *automation.Window `json:"window,omitempty"`
}

type MapPayload struct {
	Canonical   string `json:"canonical"`
	Alternative string `json:"alternative"`
}

// CaptureData carries a PNG encoded window image.
type CaptureData struct {
	Handle string `json:"handle"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	PNG    []byte `json:"png"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// NewAutomationErrorResponse creates an error response that keeps the
// automation error kind so the client can rebuild it.
func NewAutomationErrorResponse(err error) *Response {
	var ae *automation.Error
	if !errors.As(err, &ae) {
		return NewErrorResponse(err.Error())
	}
	msg := ae.Message
	if ae.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, ae.Err)
	}
	return &Response{Status: "ERROR", Error: msg, Code: ae.Kind}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
