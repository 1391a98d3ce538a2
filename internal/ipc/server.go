package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/identity"
	"github.com/1broseidon/steer/internal/platform"
	"github.com/1broseidon/steer/internal/router"
)

// Server handles IPC requests from clients
type Server struct {
	socketPath    string
	listener      net.Listener
	engine        *router.Engine
	backend       platform.Backend
	defaultPolicy automation.Policy
	logger        *slog.Logger
	startTime     time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server. Requests without a policy use
// defaultPolicy.
func NewServer(socketPath string, engine *router.Engine, backend platform.Backend, defaultPolicy automation.Policy, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath:    socketPath,
		engine:        engine,
		backend:       backend,
		defaultPolicy: defaultPolicy,
		logger:        logger.With("component", "ipc"),
		startTime:     time.Now(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(s.ctx, req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	switch req.Command {
	case CommandStatus:
		return s.handleStatus()
	case CommandListWindows:
		return s.handleListWindows(ctx)
	case CommandRoute:
		return s.handleRoute(ctx, req.Payload)
	case CommandResolve:
		return s.handleResolve(ctx, req.Payload)
	case CommandMap:
		return s.handleMap(req.Payload)
	case CommandCapture:
		return s.handleCapture(ctx, req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleStatus() *Response {
	status := StatusData{
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		DaemonRunning: true,
		Routes:        s.engine.Available(),
		Mappings:      s.engine.Identity().Len(),
	}
	if s.backend != nil {
		status.Capabilities = s.backend.Available()
		displays, err := s.backend.Displays()
		if err != nil {
			s.logger.Warn("failed to list displays", "error", err)
		}
		status.Displays = displays
	}

	resp, _ := NewOKResponse(status)
	return resp
}

func (s *Server) handleListWindows(ctx context.Context) *Response {
	wins, err := s.engine.Windows().List(ctx)
	if err != nil {
		return NewAutomationErrorResponse(err)
	}

	table := s.engine.Identity()
	out := make([]WindowInfo, 0, len(wins))
	for _, w := range wins {
		info := WindowInfo{Window: w}
		if alt, ok := table.Resolve(w.Handle); ok {
			info.Alternative = alt
		}
		out = append(out, info)
	}

	resp, _ := NewOKResponse(WindowsData{Windows: out})
	return resp
}

func (s *Server) handleRoute(ctx context.Context, payload json.RawMessage) *Response {
	var req RoutePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid route payload: %v", err))
	}

	cmd, err := req.Command.Command()
	if err != nil {
		return NewAutomationErrorResponse(err)
	}
	policy := s.defaultPolicy
	if req.Policy != "" {
		policy, err = automation.ParsePolicy(req.Policy)
		if err != nil {
			return NewAutomationErrorResponse(err)
		}
	}
	rreq := router.Request{Command: cmd, Handle: req.Window, Policy: policy}

	if req.DryRun {
		win, plan, err := s.engine.Explain(ctx, rreq)
		if err != nil {
			return NewAutomationErrorResponse(err)
		}
		resp, _ := NewOKResponse(RouteData{Window: win.Handle, Plan: plan})
		return resp
	}

	s.logger.Info("IPC: route", "command", cmd.String(), "window", req.Window, "policy", string(policy))
	res, err := s.engine.Dispatch(ctx, rreq)
	if err != nil {
		return NewAutomationErrorResponse(err)
	}

	resp, err := NewOKResponse(RouteData{Result: res, Window: req.Window})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleResolve(ctx context.Context, payload json.RawMessage) *Response {
	var req HandlePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid resolve payload: %v", err))
	}

	c := identity.Classify(req.Handle)
	data := ResolveData{
		Handle: req.Handle,
		Form:   c.Form.String(),
		Value:  c.Value,
	}
	if alt, ok := s.engine.Identity().Resolve(req.Handle); ok {
		data.Alternative = alt
	}
	if win, err := s.engine.Resolve(ctx, req.Handle); err == nil {
		data.Window = &win
	}

	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleMap(payload json.RawMessage) *Response {
	var req MapPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid map payload: %v", err))
	}
	if req.Canonical == "" || req.Alternative == "" {
		return NewErrorResponse("canonical and alternative are required")
	}

	s.engine.Identity().AddMapping(req.Canonical, req.Alternative)
	s.logger.Info("IPC: mapped handles", "canonical", req.Canonical, "alternative", req.Alternative)

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleCapture(ctx context.Context, payload json.RawMessage) *Response {
	var req HandlePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid capture payload: %v", err))
	}
	if s.backend == nil {
		return NewErrorResponse("screen capture is not available")
	}

	win, err := s.engine.Resolve(ctx, req.Handle)
	if err != nil {
		return NewAutomationErrorResponse(err)
	}
	img, err := s.backend.Capture(ctx, win)
	if err != nil {
		return NewAutomationErrorResponse(err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to encode image: %v", err))
	}
	b := img.Bounds()
	resp, _ := NewOKResponse(CaptureData{
		Handle: win.Handle,
		Width:  b.Dx(),
		Height: b.Dy(),
		PNG:    buf.Bytes(),
	})
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop shuts down the IPC server, cancels in-flight commands and waits for
// connection handlers to return.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}
