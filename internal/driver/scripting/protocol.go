// Package scripting implements the application scripting channel. Scriptable
// applications listen on a unix socket named after their process id and
// accept one newline-terminated JSON request per connection.
package scripting

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
)

// CommandType represents the scripting verbs.
type CommandType string

const (
	CommandPing     CommandType = "PING"
	CommandClick    CommandType = "CLICK"
	CommandTypeText CommandType = "TYPE_TEXT"
)

// Response statuses.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Code classifies an ERROR response.
type Code string

const (
	CodeDeclined         Code = "DECLINED"
	CodeNotAddressable   Code = "NOT_ADDRESSABLE"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodePermissionDenied Code = "PERMISSION_DENIED"
)

// Request is sent by the router to an application.
type Request struct {
	Command CommandType     `json:"command"`
	Window  string          `json:"window,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is returned by the application.
type Response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   Code            `json:"code,omitempty"`
}

// ClickPayload carries a window-relative click.
type ClickPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button string  `json:"button"`
	Count  int     `json:"count"`
}

// TypeTextPayload carries text to insert at the application's focus.
type TypeTextPayload struct {
	Text string `json:"text"`
}

// Error is returned by a Handler to produce a coded ERROR response.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Decline returns an Error with CodeDeclined.
func Decline(format string, args ...any) *Error {
	return &Error{Code: CodeDeclined, Message: fmt.Sprintf(format, args...)}
}

// NotAddressable returns an Error with CodeNotAddressable.
func NotAddressable(format string, args ...any) *Error {
	return &Error{Code: CodeNotAddressable, Message: fmt.Sprintf(format, args...)}
}

// SocketPath returns the socket an application with pid listens on.
func SocketPath(dir string, pid int) string {
	return filepath.Join(dir, strconv.Itoa(pid)+".sock")
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data any) (*Response, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		raw = b
	}
	return &Response{Status: StatusOK, Data: raw}, nil
}

// NewErrorResponse creates an error response with a code and message
func NewErrorResponse(code Code, msg string) *Response {
	return &Response{Status: StatusError, Code: code, Error: msg}
}
