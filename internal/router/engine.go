// Package router selects an automation channel for each command, enforces
// the visibility policy, and falls back through channels in a fixed order.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/driver"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/identity"
	"github.com/1broseidon/steer/internal/wait"
)

const (
	defaultSettleTimeout  = 750 * time.Millisecond
	defaultSettleInterval = 25 * time.Millisecond
)

// Request is one command addressed to a window.
type Request struct {
	Command automation.Command
	Handle  string
	Policy  automation.Policy
}

// Recorder receives every terminal result.
type Recorder interface {
	Record(req Request, win automation.Window, res automation.Result)
}

// Options configures an Engine. Nil channels are treated as unavailable.
type Options struct {
	Scripting      driver.Channel
	Accessibility  driver.Channel
	SyntheticInput driver.Channel

	Visibility driver.Visibility
	Windows    driver.Windows
	Identity   *identity.Table

	Logger   *slog.Logger
	Recorder Recorder

	// SettleTimeout bounds how long the engine waits for a restored window
	// to report itself frontmost. Negative disables waiting.
	SettleTimeout time.Duration
}

// Engine routes commands. It keeps no per-command state, so concurrent
// Dispatch calls are independent.
type Engine struct {
	channels   map[automation.Route]driver.Channel
	visibility driver.Visibility
	windows    driver.Windows
	identity   *identity.Table
	logger     *slog.Logger
	recorder   Recorder
	settle     time.Duration
}

// New creates an engine from the given collaborators.
func New(opts Options) (*Engine, error) {
	if opts.Windows == nil {
		return nil, fmt.Errorf("router: window source is required")
	}

	channels := make(map[automation.Route]driver.Channel, 3)
	for route, ch := range map[automation.Route]driver.Channel{
		automation.RouteScripting:      opts.Scripting,
		automation.RouteAccessibility:  opts.Accessibility,
		automation.RouteSyntheticInput: opts.SyntheticInput,
	} {
		if ch == nil {
			continue
		}
		if ch.Route() != route {
			return nil, fmt.Errorf("router: channel for %s reports route %s", route, ch.Route())
		}
		channels[route] = ch
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	table := opts.Identity
	if table == nil {
		table = identity.NewTable()
	}
	settle := opts.SettleTimeout
	if settle == 0 {
		settle = defaultSettleTimeout
	}

	return &Engine{
		channels:   channels,
		visibility: opts.Visibility,
		windows:    opts.Windows,
		identity:   table,
		logger:     logger,
		recorder:   opts.Recorder,
		settle:     settle,
	}, nil
}

// Identity returns the handle mapping table used to resolve windows.
func (e *Engine) Identity() *identity.Table { return e.identity }

// Windows returns the window source.
func (e *Engine) Windows() driver.Windows { return e.windows }

// Available lists the routes that have a channel configured.
func (e *Engine) Available() []automation.Route {
	var out []automation.Route
	for _, r := range pointerAndTextOrder {
		if _, ok := e.channels[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Dispatch routes one command. The returned result is terminal: it either
// reports success with the route that performed the command, or carries the
// same error that is returned.
func (e *Engine) Dispatch(ctx context.Context, req Request) (automation.Result, error) {
	res := automation.Result{InvocationID: ulid.Make().String()}
	log := e.logger.With("invocation", res.InvocationID, "window", req.Handle)

	win, err := e.prepare(ctx, req)
	if err != nil {
		return e.finish(log, req, win, res, err)
	}
	log = log.With("command", req.Command.String(), "policy", string(req.Policy))

	route, effect, win, err := e.run(ctx, log, req, win)
	if err != nil {
		return e.finish(log, req, win, res, err)
	}

	res.Success = true
	res.Route = route
	res.Point = effect.Point
	if res.Point == nil {
		if a, ok := req.Command.(automation.Anchored); ok {
			p := geometry.WindowToScreen(a.Anchor(), win.Frame)
			res.Point = &p
		}
	}
	return e.finish(log, req, win, res, nil)
}

// prepare validates the request and resolves the target window. Policy is
// checked here once, before any channel is consulted.
func (e *Engine) prepare(ctx context.Context, req Request) (automation.Window, error) {
	if req.Command == nil {
		return automation.Window{}, automation.NewInvalidArgument("command is required")
	}
	if !req.Policy.Valid() {
		return automation.Window{}, automation.NewInvalidArgument(fmt.Sprintf("unknown policy %q", req.Policy))
	}
	if err := req.Command.Validate(); err != nil {
		return automation.Window{}, err
	}
	return e.Resolve(ctx, req.Handle)
}

// Resolve looks a handle up directly and, failing that, through its
// registered counterpart.
func (e *Engine) Resolve(ctx context.Context, handle string) (automation.Window, error) {
	if strings.TrimSpace(handle) == "" {
		return automation.Window{}, automation.NewInvalidArgument("window handle is required")
	}

	win, err := e.windows.Lookup(ctx, handle)
	if err == nil {
		return win, nil
	}
	if !errors.Is(err, automation.WindowNotFound) {
		return automation.Window{}, err
	}

	if alt, ok := e.identity.Resolve(handle); ok {
		win, altErr := e.windows.Lookup(ctx, alt)
		if altErr == nil {
			return win, nil
		}
		if !errors.Is(altErr, automation.WindowNotFound) {
			return automation.Window{}, altErr
		}
	}
	return automation.Window{}, automation.NewWindowNotFound(handle)
}

// run walks the candidate list: probe, policy, execute, fall back.
func (e *Engine) run(ctx context.Context, log *slog.Logger, req Request, win automation.Window) (automation.Route, driver.Effect, automation.Window, error) {
	kind := req.Command.Kind()
	blockedByPolicy := false

	for _, route := range Candidates(kind) {
		ch, ok := e.channels[route]
		if !ok {
			log.Debug("channel unavailable", "route", route)
			continue
		}

		supported, err := ch.Supports(ctx, kind, win)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", driver.Effect{}, win, ctxErr
		}
		if err != nil {
			log.Warn("capability probe failed", "route", route, "error", err)
			continue
		}
		if !supported {
			log.Debug("channel not capable", "route", route)
			continue
		}

		if requiresFrontmost(route) && !win.Frontmost() {
			if req.Policy != automation.PolicyAllowRestore {
				log.Info("skipping route: target not frontmost and policy forbids restoring", "route", route)
				blockedByPolicy = true
				continue
			}
			restored, err := e.restore(ctx, log, win)
			if err != nil {
				if automation.Recoverable(err) {
					log.Warn("restore failed, trying next route", "route", route, "error", err)
					continue
				}
				return "", driver.Effect{}, win, err
			}
			win = restored
		}

		log.Debug("executing", "route", route)
		effect, err := ch.Execute(ctx, req.Command, win)
		if err == nil {
			return route, effect, win, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", driver.Effect{}, win, ctxErr
		}
		if !automation.Recoverable(err) {
			log.Warn("route failed", "route", route, "error", err)
			return "", driver.Effect{}, win, err
		}
		log.Info("route declined, falling back", "route", route, "error", err)
	}

	exhausted := automation.NewRouteExhausted(req.Command, win.Handle)
	if blockedByPolicy {
		return "", driver.Effect{}, win, automation.NewPolicyViolation(exhausted, win.Handle, req.Policy)
	}
	return "", driver.Effect{}, win, exhausted
}

// restore unminimizes and raises win, then returns a fresh snapshot. A target
// that is still not frontmost afterwards declines the synthetic-input route.
func (e *Engine) restore(ctx context.Context, log *slog.Logger, win automation.Window) (automation.Window, error) {
	if e.visibility == nil {
		return win, automation.NewDeclined(automation.RouteSyntheticInput, "no visibility control available")
	}

	if win.Minimized {
		log.Info("unminimizing target")
		if err := e.visibility.Unminimize(ctx, win); err != nil {
			return win, err
		}
	}
	if !win.Active || win.Minimized {
		log.Info("raising target")
		if err := e.visibility.Raise(ctx, win); err != nil {
			return win, err
		}
	}

	if e.settle < 0 {
		fresh, err := e.refetch(ctx, win)
		if err != nil {
			return win, err
		}
		if !fresh.Frontmost() {
			return win, automation.NewDeclined(automation.RouteSyntheticInput, "target did not become frontmost")
		}
		return fresh, nil
	}

	fresh := win
	err := wait.Until(ctx, defaultSettleInterval, e.settle, func(ctx context.Context) (bool, error) {
		w, err := e.windows.Lookup(ctx, win.Handle)
		if err != nil {
			return false, err
		}
		fresh = w
		return w.Frontmost(), nil
	})
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return win, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("target did not become frontmost in time", "timeout", e.settle)
		return win, automation.NewDeclined(automation.RouteSyntheticInput, "target did not become frontmost")
	default:
		return win, err
	}
	return fresh, nil
}

func (e *Engine) refetch(ctx context.Context, win automation.Window) (automation.Window, error) {
	fresh, err := e.windows.Lookup(ctx, win.Handle)
	if err != nil {
		return win, err
	}
	return fresh, nil
}

func (e *Engine) finish(log *slog.Logger, req Request, win automation.Window, res automation.Result, err error) (automation.Result, error) {
	if err != nil {
		res.Success = false
		res.Route = ""
		res.Point = nil
		res.Err = err
		log.Warn("command failed", "error", err)
	} else {
		log.Info("command routed", "route", res.Route)
	}
	if e.recorder != nil {
		e.recorder.Record(req, win, res)
	}
	return res, err
}
