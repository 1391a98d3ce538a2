package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/1broseidon/steer/internal/geometry"
)

// CommandKind is the tag of a Command variant.
type CommandKind string

const (
	KindClick    CommandKind = "click"
	KindTypeText CommandKind = "type_text"
	KindDrag     CommandKind = "drag"
	KindGesture  CommandKind = "gesture"
)

// Command is an immutable action request. The set of implementations is
// closed: Click, TypeText, Drag and Gesture.
type Command interface {
	Kind() CommandKind
	Validate() error
	fmt.Stringer
	sealed()
}

// Anchored is implemented by commands that act on a point in the window.
type Anchored interface {
	Anchor() geometry.WindowPoint
}

// MouseButton selects the pointer button for clicks.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonMiddle MouseButton = "middle"
	ButtonRight  MouseButton = "right"
)

// Click presses and releases a button at a window-relative point.
type Click struct {
	Point  geometry.WindowPoint
	Button MouseButton
	Count  int
}

func (Click) Kind() CommandKind              { return KindClick }
func (Click) sealed()                        {}
func (c Click) Anchor() geometry.WindowPoint { return c.Point }
func (c Click) Validate() error              { return validateClick(c) }

func (c Click) String() string {
	return fmt.Sprintf("click(%s %s x%d)", c.Point, c.EffectiveButton(), c.EffectiveCount())
}

// EffectiveButton returns the button to press, defaulting to left.
func (c Click) EffectiveButton() MouseButton {
	if c.Button == "" {
		return ButtonLeft
	}
	return c.Button
}

// EffectiveCount returns the number of presses, defaulting to one.
func (c Click) EffectiveCount() int {
	if c.Count <= 0 {
		return 1
	}
	return c.Count
}

func validateClick(c Click) error {
	switch c.EffectiveButton() {
	case ButtonLeft, ButtonMiddle, ButtonRight:
	default:
		return NewInvalidArgument(fmt.Sprintf("unknown mouse button %q", c.Button))
	}
	if c.Count > 3 {
		return NewInvalidArgument(fmt.Sprintf("click count %d exceeds 3", c.Count))
	}
	return RequireOnScreen(c.Point)
}

// TypeText enters text into whatever element of the window accepts it.
type TypeText struct {
	Text string
}

func (TypeText) Kind() CommandKind { return KindTypeText }
func (TypeText) sealed()           {}

func (t TypeText) String() string {
	return fmt.Sprintf("type_text(%d chars)", len([]rune(t.Text)))
}

func (t TypeText) Validate() error {
	if t.Text == "" {
		return NewInvalidArgument("text must not be empty")
	}
	if strings.ContainsRune(t.Text, 0) {
		return NewInvalidArgument("text must not contain NUL")
	}
	return nil
}

// Drag presses at From, moves to To over Duration, then releases.
type Drag struct {
	From     geometry.WindowPoint
	To       geometry.WindowPoint
	Duration time.Duration
}

func (Drag) Kind() CommandKind              { return KindDrag }
func (Drag) sealed()                        {}
func (d Drag) Anchor() geometry.WindowPoint { return d.To }

func (d Drag) String() string {
	return fmt.Sprintf("drag(%s -> %s over %s)", d.From, d.To, d.Duration)
}

func (d Drag) Validate() error {
	if d.Duration < 0 {
		return NewInvalidArgument("drag duration must not be negative")
	}
	if err := RequireOnScreen(d.From); err != nil {
		return err
	}
	return RequireOnScreen(d.To)
}

// GestureType selects a Gesture variant.
type GestureType string

const (
	GestureScroll GestureType = "scroll"
	GesturePinch  GestureType = "pinch"
	GestureRotate GestureType = "rotate"
	GestureDrag   GestureType = "drag"
	GestureSwipe  GestureType = "swipe"
)

// Gesture is a multi-touch style gesture centred on At. Which parameters
// apply depends on Type: Delta for scroll, Scale for pinch, Angle (degrees)
// for rotate, To for drag and swipe.
type Gesture struct {
	Type     GestureType
	At       geometry.WindowPoint
	DeltaX   float64
	DeltaY   float64
	Scale    float64
	Angle    float64
	To       geometry.WindowPoint
	Duration time.Duration
}

func (Gesture) Kind() CommandKind              { return KindGesture }
func (Gesture) sealed()                        {}
func (g Gesture) Anchor() geometry.WindowPoint { return g.At }

func (g Gesture) String() string {
	switch g.Type {
	case GestureScroll:
		return fmt.Sprintf("gesture.scroll(%s delta=%g,%g)", g.At, g.DeltaX, g.DeltaY)
	case GesturePinch:
		return fmt.Sprintf("gesture.pinch(%s scale=%g)", g.At, g.Scale)
	case GestureRotate:
		return fmt.Sprintf("gesture.rotate(%s angle=%g)", g.At, g.Angle)
	default:
		return fmt.Sprintf("gesture.%s(%s -> %s)", g.Type, g.At, g.To)
	}
}

func (g Gesture) Validate() error {
	if g.Duration < 0 {
		return NewInvalidArgument("gesture duration must not be negative")
	}
	switch g.Type {
	case GestureScroll:
		if g.DeltaX == 0 && g.DeltaY == 0 {
			return NewInvalidArgument("scroll delta must not be zero")
		}
	case GesturePinch:
		if g.Scale <= 0 {
			return NewInvalidArgument(fmt.Sprintf("pinch scale must be positive, got %g", g.Scale))
		}
	case GestureRotate:
		if g.Angle == 0 {
			return NewInvalidArgument("rotation angle must not be zero")
		}
	case GestureDrag, GestureSwipe:
		if err := RequireOnScreen(g.To); err != nil {
			return err
		}
	default:
		return NewInvalidArgument(fmt.Sprintf("unknown gesture type %q", g.Type))
	}
	return RequireOnScreen(g.At)
}

// ParseGestureType maps a user supplied name onto a GestureType.
func ParseGestureType(s string) (GestureType, error) {
	switch t := GestureType(strings.ToLower(strings.TrimSpace(s))); t {
	case GestureScroll, GesturePinch, GestureRotate, GestureDrag, GestureSwipe:
		return t, nil
	}
	return "", NewInvalidArgument(fmt.Sprintf("unknown gesture type %q", s))
}
