package mcp

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/identity"
	"github.com/1broseidon/steer/internal/router"
	"github.com/1broseidon/steer/internal/wait"
)

const maxWait = 60 * time.Second

func (s *Server) resolvePolicy(p string) (automation.Policy, error) {
	if strings.TrimSpace(p) == "" {
		return s.policy, nil
	}
	return automation.ParsePolicy(p)
}

// dispatch routes cmd and converts the result into tool output.
func (s *Server) dispatch(ctx context.Context, window, policy string, cmd automation.Command) (*mcpsdk.CallToolResult, CommandOutput, error) {
	p, err := s.resolvePolicy(policy)
	if err != nil {
		return nil, CommandOutput{}, err
	}

	res, err := s.engine.Dispatch(ctx, router.Request{Command: cmd, Handle: window, Policy: p})
	if err != nil {
		s.logger.Info("tool command failed", "command", cmd.String(), "window", window, "error", err)
		return nil, CommandOutput{}, err
	}

	return nil, CommandOutput{
		InvocationID: res.InvocationID,
		Route:        string(res.Route),
		Point:        res.Point,
		Window:       window,
	}, nil
}

func (s *Server) handleClick(ctx context.Context, _ *mcpsdk.CallToolRequest, args ClickInput) (*mcpsdk.CallToolResult, CommandOutput, error) {
	return s.dispatch(ctx, args.Window, args.Policy, automation.Click{
		Point:  geometry.WindowPoint{X: args.X, Y: args.Y},
		Button: automation.MouseButton(strings.ToLower(args.Button)),
		Count:  args.Count,
	})
}

func (s *Server) handleTypeText(ctx context.Context, _ *mcpsdk.CallToolRequest, args TypeTextInput) (*mcpsdk.CallToolResult, CommandOutput, error) {
	return s.dispatch(ctx, args.Window, args.Policy, automation.TypeText{Text: args.Text})
}

func (s *Server) handleDrag(ctx context.Context, _ *mcpsdk.CallToolRequest, args DragInput) (*mcpsdk.CallToolResult, CommandOutput, error) {
	return s.dispatch(ctx, args.Window, args.Policy, automation.Drag{
		From:     geometry.WindowPoint{X: args.FromX, Y: args.FromY},
		To:       geometry.WindowPoint{X: args.ToX, Y: args.ToY},
		Duration: time.Duration(args.DurationMS) * time.Millisecond,
	})
}

func (s *Server) handleGesture(ctx context.Context, _ *mcpsdk.CallToolRequest, args GestureInput) (*mcpsdk.CallToolResult, CommandOutput, error) {
	t, err := automation.ParseGestureType(args.Type)
	if err != nil {
		return nil, CommandOutput{}, err
	}
	return s.dispatch(ctx, args.Window, args.Policy, automation.Gesture{
		Type:     t,
		At:       geometry.WindowPoint{X: args.X, Y: args.Y},
		DeltaX:   args.DeltaX,
		DeltaY:   args.DeltaY,
		Scale:    args.Scale,
		Angle:    args.Angle,
		To:       geometry.WindowPoint{X: args.ToX, Y: args.ToY},
		Duration: time.Duration(args.DurationMS) * time.Millisecond,
	})
}

func (s *Server) handleListWindows(ctx context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	wins, err := s.engine.Windows().List(ctx)
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}

	filter := strings.ToLower(strings.TrimSpace(args.Class))
	table := s.engine.Identity()
	out := make([]WindowInfo, 0, len(wins))
	for _, w := range wins {
		if filter != "" && !strings.Contains(strings.ToLower(w.Class), filter) {
			continue
		}
		info := WindowInfo{
			Handle:    w.Handle,
			Title:     w.Title,
			Class:     w.Class,
			PID:       int32(w.App),
			X:         w.Frame.Origin.X,
			Y:         w.Frame.Origin.Y,
			Width:     w.Frame.Size.Width,
			Height:    w.Frame.Size.Height,
			Minimized: w.Minimized,
			Active:    w.Active,
		}
		if alt, ok := table.Resolve(w.Handle); ok {
			info.Alternative = alt
		}
		out = append(out, info)
	}

	return nil, ListWindowsOutput{Windows: out}, nil
}

func (s *Server) handleClassifyHandle(_ context.Context, _ *mcpsdk.CallToolRequest, args ClassifyHandleInput) (*mcpsdk.CallToolResult, ClassifyHandleOutput, error) {
	c := identity.Classify(args.Handle)
	out := ClassifyHandleOutput{Form: c.Form.String(), Value: c.Value}
	if alt, ok := s.engine.Identity().Resolve(args.Handle); ok {
		out.Alternative = alt
	}
	return nil, out, nil
}

func (s *Server) handleCaptureWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, args CaptureWindowInput) (*mcpsdk.CallToolResult, any, error) {
	if s.capturer == nil {
		return nil, nil, fmt.Errorf("screen capture is not available")
	}

	win, err := s.engine.Resolve(ctx, args.Window)
	if err != nil {
		return nil, nil, err
	}
	img, err := s.capturer.Capture(ctx, win)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.ImageContent{Data: buf.Bytes(), MIMEType: "image/png"},
			&mcpsdk.TextContent{Text: fmt.Sprintf("%s %q %dx%d", win.Handle, win.Title, b.Dx(), b.Dy())},
		},
	}, nil, nil
}

func (s *Server) handleExplainRoute(ctx context.Context, _ *mcpsdk.CallToolRequest, args ExplainRouteInput) (*mcpsdk.CallToolResult, ExplainRouteOutput, error) {
	cmd, err := probeCommand(args.Command)
	if err != nil {
		return nil, ExplainRouteOutput{}, err
	}
	p, err := s.resolvePolicy(args.Policy)
	if err != nil {
		return nil, ExplainRouteOutput{}, err
	}

	win, plan, err := s.engine.Explain(ctx, router.Request{Command: cmd, Handle: args.Window, Policy: p})
	if err != nil {
		return nil, ExplainRouteOutput{}, err
	}

	out := ExplainRouteOutput{Window: win.Handle, Steps: make([]RouteStep, 0, len(plan))}
	for _, step := range plan {
		out.Steps = append(out.Steps, RouteStep{
			Route:        string(step.Route),
			Available:    step.Available,
			Supported:    step.Supported,
			NeedsRestore: step.NeedsRestore,
			Blocked:      step.Blocked,
			Note:         step.Note,
		})
	}
	return nil, out, nil
}

// probeCommand returns a valid command of the named kind. Routing plans
// depend only on the kind.
func probeCommand(kind string) (automation.Command, error) {
	switch automation.CommandKind(strings.ToLower(strings.TrimSpace(kind))) {
	case automation.KindClick:
		return automation.Click{}, nil
	case automation.KindTypeText:
		return automation.TypeText{Text: " "}, nil
	case automation.KindDrag:
		return automation.Drag{}, nil
	case automation.KindGesture:
		return automation.Gesture{Type: automation.GestureScroll, DeltaY: 1}, nil
	}
	return nil, automation.NewInvalidArgument(fmt.Sprintf("unknown command kind %q", kind))
}

func (s *Server) handleWait(ctx context.Context, _ *mcpsdk.CallToolRequest, args WaitInput) (*mcpsdk.CallToolResult, WaitOutput, error) {
	if args.Seconds < 0 {
		return nil, WaitOutput{}, automation.NewInvalidArgument("seconds must not be negative")
	}
	d := time.Duration(args.Seconds * float64(time.Second))
	if d > maxWait {
		return nil, WaitOutput{}, automation.NewInvalidArgument(fmt.Sprintf("seconds must be at most %g", maxWait.Seconds()))
	}

	start := time.Now()
	if err := wait.For(ctx, d); err != nil {
		return nil, WaitOutput{}, err
	}
	return nil, WaitOutput{WaitedSeconds: time.Since(start).Seconds()}, nil
}
