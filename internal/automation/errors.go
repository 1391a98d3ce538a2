package automation

import (
	"errors"
	"fmt"

	"github.com/1broseidon/steer/internal/geometry"
)

// ErrorKind classifies automation failures.
type ErrorKind string

const (
	ErrPermissionDenied      ErrorKind = "PERMISSION_DENIED"
	ErrTimeout               ErrorKind = "TIMEOUT"
	ErrWindowNotFound        ErrorKind = "WINDOW_NOT_FOUND"
	ErrApplicationNotFound   ErrorKind = "APPLICATION_NOT_FOUND"
	ErrCoordinateOutOfBounds ErrorKind = "COORDINATE_OUT_OF_BOUNDS"
	ErrEventCreationFailed   ErrorKind = "EVENT_CREATION_FAILED"
	ErrOSFailure             ErrorKind = "OS_FAILURE"
	ErrInvalidArgument       ErrorKind = "INVALID_ARGUMENT"
	ErrRouteExhausted        ErrorKind = "ROUTE_EXHAUSTED"
	ErrPolicyViolation       ErrorKind = "POLICY_VIOLATION"
	// ErrDeclined is reported by a channel that could not complete a command
	// it had claimed to support, e.g. the element was not addressable.
	ErrDeclined ErrorKind = "DECLINED"
)

// Error is a structured automation error.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	PermissionDenied      = &Error{Kind: ErrPermissionDenied}
	Timeout               = &Error{Kind: ErrTimeout}
	WindowNotFound        = &Error{Kind: ErrWindowNotFound}
	ApplicationNotFound   = &Error{Kind: ErrApplicationNotFound}
	CoordinateOutOfBounds = &Error{Kind: ErrCoordinateOutOfBounds}
	EventCreationFailed   = &Error{Kind: ErrEventCreationFailed}
	OSFailure             = &Error{Kind: ErrOSFailure}
	InvalidArgument       = &Error{Kind: ErrInvalidArgument}
	RouteExhausted        = &Error{Kind: ErrRouteExhausted}
	PolicyViolation       = &Error{Kind: ErrPolicyViolation}
	Declined              = &Error{Kind: ErrDeclined}
)

func NewPermissionDenied(reason string) *Error {
	return &Error{Kind: ErrPermissionDenied, Message: reason}
}

func NewTimeout(requestedSeconds float64) *Error {
	return &Error{
		Kind:    ErrTimeout,
		Message: fmt.Sprintf("timed out after %gs", requestedSeconds),
		Details: map[string]any{"requested_seconds": requestedSeconds},
	}
}

func NewWindowNotFound(handle string) *Error {
	return &Error{
		Kind:    ErrWindowNotFound,
		Message: fmt.Sprintf("window not found: %s", handle),
		Details: map[string]any{"handle": handle},
	}
}

func NewApplicationNotFound(id ApplicationID) *Error {
	return &Error{
		Kind:    ErrApplicationNotFound,
		Message: fmt.Sprintf("application not found: %d", id),
		Details: map[string]any{"id": int32(id)},
	}
}

func NewCoordinateOutOfBounds(p geometry.WindowPoint) *Error {
	return &Error{
		Kind:    ErrCoordinateOutOfBounds,
		Message: fmt.Sprintf("coordinate out of bounds: %s", p),
		Details: map[string]any{"x": p.X, "y": p.Y},
	}
}

// NewScreenCoordinateOutOfBounds reports a screen point the display server
// cannot address.
func NewScreenCoordinateOutOfBounds(p geometry.ScreenPoint) *Error {
	return &Error{
		Kind:    ErrCoordinateOutOfBounds,
		Message: fmt.Sprintf("coordinate out of bounds: %s", p),
		Details: map[string]any{"x": p.X, "y": p.Y},
	}
}

func NewEventCreationFailed(what string) *Error {
	return &Error{Kind: ErrEventCreationFailed, Message: what}
}

// NewOSFailure wraps a failed platform call.
func NewOSFailure(api string, code int, err error) *Error {
	return &Error{
		Kind:    ErrOSFailure,
		Message: fmt.Sprintf("%s failed (code %d)", api, code),
		Details: map[string]any{"api": api, "code": code},
		Err:     err,
	}
}

func NewInvalidArgument(reason string) *Error {
	return &Error{Kind: ErrInvalidArgument, Message: reason}
}

func NewRouteExhausted(cmd Command, handle string) *Error {
	return &Error{
		Kind:    ErrRouteExhausted,
		Message: fmt.Sprintf("no channel could perform %s on %s", cmd, handle),
		Details: map[string]any{"command": cmd.String(), "window": handle},
	}
}

// NewPolicyViolation reports that the only usable route was ruled out by a
// policy forbidding visibility changes. It wraps the RouteExhausted error so
// callers that only look for exhaustion still match.
func NewPolicyViolation(exhausted *Error, handle string, policy Policy) *Error {
	return &Error{
		Kind:    ErrPolicyViolation,
		Message: fmt.Sprintf("policy %s forbids making %s visible", policy, handle),
		Details: map[string]any{"window": handle, "policy": string(policy)},
		Err:     exhausted,
	}
}

// NewDeclined is returned by channels that could not complete a command.
func NewDeclined(route Route, reason string) *Error {
	return &Error{
		Kind:    ErrDeclined,
		Message: fmt.Sprintf("%s declined: %s", route, reason),
		Details: map[string]any{"route": string(route)},
	}
}

// Recoverable reports whether a channel failure should advance routing to
// the next candidate. Untyped errors and timeouts are non-recoverable since
// the channel may have partially performed the side effect.
func Recoverable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case ErrDeclined, ErrWindowNotFound, ErrApplicationNotFound:
		return true
	}
	return false
}

// KindOf returns the kind of err or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// RequireOnScreen rejects negative window-relative coordinates.
func RequireOnScreen(p geometry.WindowPoint) error {
	if p.X < 0 || p.Y < 0 {
		return NewCoordinateOutOfBounds(p)
	}
	return nil
}
