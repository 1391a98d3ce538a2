package scripting

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
)

// Handler is implemented by applications that accept scripting requests.
// Returning an *Error selects the response code; any other error is sent
// uncoded.
type Handler interface {
	Click(ctx context.Context, window string, p ClickPayload) error
	TypeText(ctx context.Context, window string, text string) error
}

// Server is a reference implementation of the application side of the
// protocol.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup

	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a server that will listen on socketPath.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{socketPath: socketPath, handler: handler, logger: logger}
}

// Start begins listening for connections
func (s *Server) Start() error {
	// Remove existing socket if present
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create scripting socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and waits for in-flight requests.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			done := s.shuttingDown
			s.shutdownMu.Unlock()
			if done || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("scripting accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	data, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("scripting read error", "error", err)
		return
	}

	var req Request
	var resp *Response
	if err := json.Unmarshal(data, &req); err != nil {
		resp = NewErrorResponse(CodeInvalidArgument, fmt.Sprintf("invalid request: %v", err))
	} else {
		resp = s.handle(context.Background(), &req)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("failed to marshal response", "error", err)
		return
	}
	if _, err := conn.Write(append(out, '\n')); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

func (s *Server) handle(ctx context.Context, req *Request) *Response {
	var err error
	switch req.Command {
	case CommandPing:
	case CommandClick:
		var p ClickPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return NewErrorResponse(CodeInvalidArgument, fmt.Sprintf("invalid click payload: %v", err))
		}
		err = s.handler.Click(ctx, req.Window, p)
	case CommandTypeText:
		var p TypeTextPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return NewErrorResponse(CodeInvalidArgument, fmt.Sprintf("invalid type payload: %v", err))
		}
		err = s.handler.TypeText(ctx, req.Window, p.Text)
	default:
		return NewErrorResponse(CodeDeclined, fmt.Sprintf("unknown command: %s", req.Command))
	}

	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return NewErrorResponse(se.Code, se.Message)
		}
		return NewErrorResponse("", err.Error())
	}
	resp, _ := NewOKResponse(nil)
	return resp
}
