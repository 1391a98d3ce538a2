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
	"time"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/driver"
)

const defaultTimeout = 2 * time.Second

// Channel speaks the scripting protocol to the application owning a window.
type Channel struct {
	socketDir string
	timeout   time.Duration
	logger    *slog.Logger
}

var _ driver.Channel = (*Channel)(nil)

// NewChannel creates a scripting channel that looks for application sockets
// in socketDir.
func NewChannel(socketDir string, timeout time.Duration, logger *slog.Logger) *Channel {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Channel{
		socketDir: socketDir,
		timeout:   timeout,
		logger:    logger.With("route", automation.RouteScripting),
	}
}

func (c *Channel) Route() automation.Route { return automation.RouteScripting }

// Supports reports whether the owning application exposes a scripting
// socket. Only the filesystem is consulted.
func (c *Channel) Supports(_ context.Context, kind automation.CommandKind, win automation.Window) (bool, error) {
	if kind != automation.KindClick && kind != automation.KindTypeText {
		return false, nil
	}
	if win.App <= 0 || c.socketDir == "" {
		return false, nil
	}
	info, err := os.Stat(SocketPath(c.socketDir, int(win.App)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode()&os.ModeSocket != 0, nil
}

// Execute sends the command to the application and maps its answer onto
// automation errors.
func (c *Channel) Execute(ctx context.Context, cmd automation.Command, win automation.Window) (driver.Effect, error) {
	req := Request{Window: win.Handle}
	var payload any
	switch cmd := cmd.(type) {
	case automation.Click:
		req.Command = CommandClick
		payload = ClickPayload{
			X:      cmd.Point.X,
			Y:      cmd.Point.Y,
			Button: string(cmd.EffectiveButton()),
			Count:  cmd.EffectiveCount(),
		}
	case automation.TypeText:
		req.Command = CommandTypeText
		payload = TypeTextPayload{Text: cmd.Text}
	default:
		return driver.Effect{}, automation.NewDeclined(automation.RouteScripting, fmt.Sprintf("%s is not scriptable", cmd.Kind()))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return driver.Effect{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req.Payload = raw

	resp, err := c.send(ctx, SocketPath(c.socketDir, int(win.App)), &req)
	if err != nil {
		return driver.Effect{}, err
	}
	switch resp.Status {
	case StatusOK:
		return driver.Effect{}, nil
	case StatusError:
	default:
		return driver.Effect{}, automation.NewOSFailure("scripting", 0, fmt.Errorf("unexpected response status %q", resp.Status))
	}

	c.logger.Debug("application refused command", "code", resp.Code, "error", resp.Error)
	switch resp.Code {
	case CodeDeclined, CodeNotAddressable:
		return driver.Effect{}, automation.NewDeclined(automation.RouteScripting, resp.Error)
	case CodeInvalidArgument:
		return driver.Effect{}, automation.NewInvalidArgument(resp.Error)
	case CodePermissionDenied:
		return driver.Effect{}, automation.NewPermissionDenied(resp.Error)
	default:
		return driver.Effect{}, automation.NewOSFailure("scripting", 0, errors.New(resp.Error))
	}
}

// Ping checks whether the application owning pid answers.
func (c *Channel) Ping(ctx context.Context, pid int) error {
	_, err := c.send(ctx, SocketPath(c.socketDir, pid), &Request{Command: CommandPing})
	return err
}

// send performs one request/response exchange. Failures before the request
// is written are declines; a missing answer is a timeout, which does not
// fall back because the application may have acted already.
func (c *Channel) send(ctx context.Context, socketPath string, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		if ctxErr := context.Cause(ctx); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, automation.NewDeclined(automation.RouteScripting, fmt.Sprintf("application not listening: %v", err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, automation.NewDeclined(automation.RouteScripting, fmt.Sprintf("failed to send request: %v", err))
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		if ctxErr := context.Cause(ctx); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, automation.NewTimeout(c.timeout.Seconds())
		}
		return nil, automation.NewOSFailure("scripting", 0, fmt.Errorf("failed to read response: %w", err))
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, automation.NewOSFailure("scripting", 0, fmt.Errorf("failed to parse response: %w", err))
	}
	return &resp, nil
}
