// Package mcp exposes the routing engine as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"io"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/driver"
	"github.com/1broseidon/steer/internal/router"
)

const (
	ServerName    = "steer"
	ServerVersion = "0.1.0"
)

// Server is the MCP server for window automation.
type Server struct {
	mcpServer *mcpsdk.Server
	engine    *router.Engine
	capturer  driver.Capturer
	policy    automation.Policy
	logger    *slog.Logger
}

// Options configures a Server.
type Options struct {
	// Capturer serves capture_window; the tool reports an error when nil.
	Capturer driver.Capturer
	// Policy applies to commands that do not name one.
	Policy automation.Policy
	Logger *slog.Logger
}

// NewServer creates an MCP server routing through engine.
func NewServer(engine *router.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	policy := opts.Policy
	if !policy.Valid() {
		policy = automation.PolicyPreserve
	}

	s := &Server{
		engine:   engine,
		capturer: opts.Capturer,
		policy:   policy,
		logger:   logger.With("component", "mcp"),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "click",
		Description: "Click at a point inside a window. Coordinates are relative to the window's top-left corner. The click is delivered through the application's scripting interface or accessibility tree when possible, so the window does not need to be in front; synthetic input is used last and only when the policy allows raising the window.",
	}, s.handleClick)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "type_text",
		Description: "Enter text into the focused element of a window. Uses the same channel order as click.",
	}, s.handleTypeText)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "drag",
		Description: "Press at one window point, move to another over duration_ms, and release. Requires the window to be frontmost, so pass policy allow-restore for background windows.",
	}, s.handleDrag)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "gesture",
		Description: "Perform a scroll, pinch, rotate, drag or swipe gesture anchored at a window point. Requires the window to be frontmost.",
	}, s.handleGesture)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List top-level windows with their handles, titles, classes, frames and visibility state.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "classify_handle",
		Description: "Report whether a handle is an accessibility handle (ax_), a window-system handle (win_<hex>) or unrecognized, and which handle it is registered against.",
	}, s.handleClassifyHandle)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "capture_window",
		Description: "Capture a window as a PNG image.",
	}, s.handleCaptureWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "explain_route",
		Description: "Show which channels would be tried for a command kind on a window and why, without performing anything.",
	}, s.handleExplainRoute)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "wait",
		Description: "Pause for the given number of seconds, e.g. to let an application react before the next command.",
	}, s.handleWait)
}
