package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/runtimepath"
)

const defaultTimeout = 5 * time.Second

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client for the default socket.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientForSocket(socketPath)
}

// NewClientForSocket creates a client talking to socketPath.
func NewClientForSocket(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    defaultTimeout,
	}
}

// sendRequest sends a request and waits up to timeout for a response.
func (c *Client) sendRequest(req *Request, timeout time.Duration) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		if resp.Code != "" {
			return nil, &automation.Error{Kind: resp.Code, Message: resp.Error}
		}
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *Client) call(cmd CommandType, payload any, timeout time.Duration, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req, timeout)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandStatus, nil, c.timeout, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListWindows retrieves the current window snapshots.
func (c *Client) ListWindows() ([]WindowInfo, error) {
	var data WindowsData
	if err := c.call(CommandListWindows, nil, c.timeout, &data); err != nil {
		return nil, err
	}
	return data.Windows, nil
}

// Route asks the daemon to perform cmd on window. An empty policy uses the
// daemon default. Routing errors come back as *automation.Error.
func (c *Client) Route(cmd automation.Command, window, policy string) (*RouteData, error) {
	return c.route(RoutePayload{Command: NewCommandPayload(cmd), Window: window, Policy: policy}, commandTimeout(cmd, c.timeout))
}

// Plan returns the routing plan for cmd without executing it.
func (c *Client) Plan(cmd automation.Command, window, policy string) (*RouteData, error) {
	return c.route(RoutePayload{Command: NewCommandPayload(cmd), Window: window, Policy: policy, DryRun: true}, c.timeout)
}

func (c *Client) route(payload RoutePayload, timeout time.Duration) (*RouteData, error) {
	var data RouteData
	if err := c.call(CommandRoute, payload, timeout, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Resolve classifies handle and looks up its counterpart and window.
func (c *Client) Resolve(handle string) (*ResolveData, error) {
	var data ResolveData
	if err := c.call(CommandResolve, HandlePayload{Handle: handle}, c.timeout, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Map registers canonical and alternative as the same window.
func (c *Client) Map(canonical, alternative string) error {
	return c.call(CommandMap, MapPayload{Canonical: canonical, Alternative: alternative}, c.timeout, nil)
}

// Capture returns a PNG of the window.
func (c *Client) Capture(handle string) (*CaptureData, error) {
	var data CaptureData
	if err := c.call(CommandCapture, HandlePayload{Handle: handle}, c.timeout, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}

// commandTimeout stretches the base timeout by how long the command itself
// is expected to run.
func commandTimeout(cmd automation.Command, base time.Duration) time.Duration {
	switch c := cmd.(type) {
	case automation.Drag:
		return base + c.Duration
	case automation.Gesture:
		return base + c.Duration
	case automation.TypeText:
		// Keystrokes are paced by the synthetic-input channel.
		return base + time.Duration(len([]rune(c.Text)))*50*time.Millisecond
	}
	return base
}
