// Package xinput implements the synthetic input channel: raw pointer and
// keyboard events injected through the X server's XTEST extension. Events
// land on whatever window is under the pointer or holds focus, so the
// target must be frontmost before anything is sent.
package xinput

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"golang.org/x/time/rate"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/driver"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/wait"
	"github.com/1broseidon/steer/internal/x11"
)

const (
	defaultPointerSteps = 20
	defaultScrollStepPx = 40
	defaultSwipe        = 150 * time.Millisecond

	// pinchNotch is the zoom factor most applications apply per
	// Ctrl+wheel step.
	pinchNotch = 1.1
)

// Injector sends raw input events. *x11.Connection satisfies it.
type Injector interface {
	MovePointer(x, y int) error
	Button(button byte, press bool) error
	Key(code xproto.Keycode, press bool) error
	Keycode(name string) (xproto.Keycode, bool, error)
	Sync()
}

var _ Injector = (*x11.Connection)(nil)

// Options tunes event pacing.
type Options struct {
	// KeystrokesPerSecond limits typing speed. Zero or less types as fast
	// as the server accepts.
	KeystrokesPerSecond float64
	// PointerSteps is the number of motion events in a drag path.
	PointerSteps int
	// ScrollStepPx is the distance one wheel click represents.
	ScrollStepPx float64
	Logger       *slog.Logger
}

// Channel is the synthetic input route.
type Channel struct {
	inj    Injector
	keys   *rate.Limiter
	steps  int
	scroll float64
	logger *slog.Logger
}

var _ driver.Channel = (*Channel)(nil)

// New creates a synthetic input channel on top of an injector.
func New(inj Injector, opts Options) *Channel {
	limit := rate.Inf
	if opts.KeystrokesPerSecond > 0 {
		limit = rate.Limit(opts.KeystrokesPerSecond)
	}
	if opts.PointerSteps <= 0 {
		opts.PointerSteps = defaultPointerSteps
	}
	if opts.ScrollStepPx <= 0 {
		opts.ScrollStepPx = defaultScrollStepPx
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Channel{
		inj:    inj,
		keys:   rate.NewLimiter(limit, 1),
		steps:  opts.PointerSteps,
		scroll: opts.ScrollStepPx,
		logger: logger.With("route", automation.RouteSyntheticInput),
	}
}

func (c *Channel) Route() automation.Route { return automation.RouteSyntheticInput }

// Supports reports true for every command kind. Rotation has no pointer
// equivalent and is declined at execution time.
func (c *Channel) Supports(_ context.Context, kind automation.CommandKind, _ automation.Window) (bool, error) {
	if c.inj == nil {
		return false, nil
	}
	switch kind {
	case automation.KindClick, automation.KindTypeText, automation.KindDrag, automation.KindGesture:
		return true, nil
	}
	return false, nil
}

// Execute injects the events for cmd relative to win's frame.
func (c *Channel) Execute(ctx context.Context, cmd automation.Command, win automation.Window) (driver.Effect, error) {
	var (
		at  geometry.ScreenPoint
		err error
	)
	if err := addressable(cmd, win); err != nil {
		return driver.Effect{}, err
	}

	switch cmd := cmd.(type) {
	case automation.Click:
		at = geometry.WindowToScreen(cmd.Point, win.Frame)
		err = c.click(ctx, at, cmd.EffectiveButton(), cmd.EffectiveCount())
	case automation.TypeText:
		err = c.typeText(ctx, cmd.Text)
		if err == nil {
			return driver.Effect{}, nil
		}
	case automation.Drag:
		from := geometry.WindowToScreen(cmd.From, win.Frame)
		at = geometry.WindowToScreen(cmd.To, win.Frame)
		err = c.drag(ctx, x11.ButtonLeft, from, at, cmd.Duration)
	case automation.Gesture:
		at, err = c.gesture(ctx, cmd, win)
	default:
		return driver.Effect{}, automation.NewInvalidArgument(fmt.Sprintf("unsupported command %T", cmd))
	}
	if err != nil {
		return driver.Effect{}, err
	}
	c.inj.Sync()
	return driver.Effect{Point: &at}, nil
}

// addressable rejects commands whose screen points fall outside the signed
// 16-bit range of core protocol coordinates, before any event is sent.
func addressable(cmd automation.Command, win automation.Window) error {
	var points []geometry.WindowPoint
	switch cmd := cmd.(type) {
	case automation.Click:
		points = append(points, cmd.Point)
	case automation.Drag:
		points = append(points, cmd.From, cmd.To)
	case automation.Gesture:
		points = append(points, cmd.At)
		if cmd.Type == automation.GestureDrag || cmd.Type == automation.GestureSwipe {
			points = append(points, cmd.To)
		}
	}
	for _, p := range points {
		s := geometry.WindowToScreen(p, win.Frame)
		x, y := s.Round()
		if x < math.MinInt16 || x > math.MaxInt16 || y < math.MinInt16 || y > math.MaxInt16 {
			return automation.NewScreenCoordinateOutOfBounds(s)
		}
	}
	return nil
}

func (c *Channel) click(ctx context.Context, at geometry.ScreenPoint, button automation.MouseButton, count int) error {
	code, err := buttonCode(button)
	if err != nil {
		return err
	}
	if err := c.move(at); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.press(code); err != nil {
			return err
		}
	}
	return nil
}

type keystroke struct {
	code  xproto.Keycode
	shift bool
}

// typeText resolves every rune before sending anything so unmappable text
// fails without partial input.
func (c *Channel) typeText(ctx context.Context, text string) error {
	strokes := make([]keystroke, 0, len(text))
	needShift := false
	for _, r := range text {
		name, err := keysymName(r)
		if err != nil {
			return automation.NewEventCreationFailed(err.Error())
		}
		code, shift, err := c.inj.Keycode(name)
		if err != nil {
			return automation.NewEventCreationFailed(err.Error())
		}
		strokes = append(strokes, keystroke{code: code, shift: shift})
		needShift = needShift || shift
	}

	var shiftCode xproto.Keycode
	if needShift {
		code, _, err := c.inj.Keycode("Shift_L")
		if err != nil {
			return automation.NewEventCreationFailed("no keycode for Shift_L")
		}
		shiftCode = code
	}

	c.logger.Debug("typing", "keystrokes", len(strokes))
	for _, k := range strokes {
		if err := c.keys.Wait(ctx); err != nil {
			return err
		}
		if k.shift {
			if err := c.inj.Key(shiftCode, true); err != nil {
				return injectFailed(err)
			}
		}
		err := c.tap(k.code)
		if k.shift {
			if rerr := c.inj.Key(shiftCode, false); err == nil && rerr != nil {
				err = injectFailed(rerr)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) drag(ctx context.Context, button byte, from, to geometry.ScreenPoint, d time.Duration) error {
	if err := c.move(from); err != nil {
		return err
	}
	if err := c.inj.Button(button, true); err != nil {
		return injectFailed(err)
	}

	pause := d / time.Duration(c.steps)
	var err error
	for i := 1; i <= c.steps && err == nil; i++ {
		if err = wait.For(ctx, pause); err != nil {
			break
		}
		err = c.move(geometry.Lerp(from, to, float64(i)/float64(c.steps)))
	}

	// Always release so a cancelled drag does not leave the button held.
	if rerr := c.inj.Button(button, false); err == nil && rerr != nil {
		err = injectFailed(rerr)
	}
	return err
}

func (c *Channel) gesture(ctx context.Context, g automation.Gesture, win automation.Window) (geometry.ScreenPoint, error) {
	at := geometry.WindowToScreen(g.At, win.Frame)

	switch g.Type {
	case automation.GestureScroll:
		if err := c.move(at); err != nil {
			return at, err
		}
		if err := c.wheel(ctx, x11.ButtonWheelDown, x11.ButtonWheelUp, g.DeltaY); err != nil {
			return at, err
		}
		return at, c.wheel(ctx, x11.ButtonWheelRight, x11.ButtonWheelLeft, g.DeltaX)

	case automation.GesturePinch:
		return at, c.pinch(ctx, at, g.Scale)

	case automation.GestureDrag, automation.GestureSwipe:
		to := geometry.WindowToScreen(g.To, win.Frame)
		d := g.Duration
		if g.Type == automation.GestureSwipe && d == 0 {
			d = defaultSwipe
		}
		return to, c.drag(ctx, x11.ButtonLeft, at, to, d)

	case automation.GestureRotate:
		return at, automation.NewDeclined(automation.RouteSyntheticInput, "rotation has no pointer equivalent")
	}
	return at, automation.NewInvalidArgument(fmt.Sprintf("unknown gesture type %q", g.Type))
}

// wheel clicks positive or negative for delta, one click per scroll step.
func (c *Channel) wheel(ctx context.Context, positive, negative byte, delta float64) error {
	clicks := int(math.Round(math.Abs(delta) / c.scroll))
	if clicks == 0 && delta != 0 {
		clicks = 1
	}
	button := positive
	if delta < 0 {
		button = negative
	}
	for i := 0; i < clicks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.press(button); err != nil {
			return err
		}
	}
	return nil
}

// pinch zooms with Ctrl held over the wheel, the binding most X
// applications honour.
func (c *Channel) pinch(ctx context.Context, at geometry.ScreenPoint, scale float64) error {
	ctrl, _, err := c.inj.Keycode("Control_L")
	if err != nil {
		return automation.NewEventCreationFailed("no keycode for Control_L")
	}
	notches := int(math.Round(math.Log(scale) / math.Log(pinchNotch)))
	if notches == 0 {
		return nil
	}
	if err := c.move(at); err != nil {
		return err
	}
	if err := c.inj.Key(ctrl, true); err != nil {
		return injectFailed(err)
	}

	// Zooming in is wheel up.
	err = c.wheel(ctx, x11.ButtonWheelDown, x11.ButtonWheelUp, -float64(notches)*c.scroll)

	if rerr := c.inj.Key(ctrl, false); err == nil && rerr != nil {
		err = injectFailed(rerr)
	}
	return err
}

func (c *Channel) move(p geometry.ScreenPoint) error {
	x, y := p.Round()
	if err := c.inj.MovePointer(x, y); err != nil {
		return injectFailed(err)
	}
	return nil
}

func (c *Channel) press(button byte) error {
	if err := c.inj.Button(button, true); err != nil {
		return injectFailed(err)
	}
	if err := c.inj.Button(button, false); err != nil {
		return injectFailed(err)
	}
	return nil
}

func (c *Channel) tap(code xproto.Keycode) error {
	if err := c.inj.Key(code, true); err != nil {
		return injectFailed(err)
	}
	if err := c.inj.Key(code, false); err != nil {
		return injectFailed(err)
	}
	return nil
}

func buttonCode(b automation.MouseButton) (byte, error) {
	switch b {
	case automation.ButtonLeft:
		return x11.ButtonLeft, nil
	case automation.ButtonMiddle:
		return x11.ButtonMiddle, nil
	case automation.ButtonRight:
		return x11.ButtonRight, nil
	}
	return 0, automation.NewInvalidArgument(fmt.Sprintf("unknown mouse button %q", b))
}

func injectFailed(err error) error {
	return automation.NewOSFailure("XTestFakeInput", 0, err)
}
