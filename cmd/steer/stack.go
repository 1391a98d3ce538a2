package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/1broseidon/steer/internal/audit"
	"github.com/1broseidon/steer/internal/config"
	"github.com/1broseidon/steer/internal/driver"
	"github.com/1broseidon/steer/internal/driver/atspi"
	"github.com/1broseidon/steer/internal/driver/scripting"
	"github.com/1broseidon/steer/internal/driver/xinput"
	"github.com/1broseidon/steer/internal/identity"
	"github.com/1broseidon/steer/internal/platform"
	"github.com/1broseidon/steer/internal/router"
	"github.com/1broseidon/steer/internal/runtimepath"
	"github.com/1broseidon/steer/internal/session"
)

const a11yConnectTimeout = 3 * time.Second

// stack is everything needed to route commands in this process.
type stack struct {
	backend *platform.LinuxBackend
	engine  *router.Engine
	table   *identity.Table
	closers []func()
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// openStack connects to the session's display server and accessibility bus
// and builds the routing engine over whichever channels are enabled and
// reachable.
func openStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	if err := session.Apply(cfg); err != nil {
		return nil, err
	}

	backend, err := platform.NewLinuxBackendFromDisplay()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to display: %w", err)
	}
	s := &stack{
		backend: backend,
		table:   identity.NewTable(),
		closers: []func(){backend.Disconnect},
	}

	opts := router.Options{
		Visibility:    backend,
		Windows:       backend,
		Identity:      s.table,
		Logger:        logger,
		SettleTimeout: cfg.SettleTimeout(),
	}

	if cfg.Channels.Scripting.Enabled {
		dir := cfg.Scripting.SocketDir
		if dir == "" {
			if dir, err = runtimepath.ScriptingDir(); err != nil {
				s.Close()
				return nil, err
			}
		}
		opts.Scripting = scripting.NewChannel(dir, cfg.ScriptingTimeout(), logger)
		logger.Info("scripting channel enabled", "socket_dir", dir)
	}

	if cfg.Channels.Accessibility.Enabled {
		if ch := s.openAccessibility(ctx, cfg, logger); ch != nil {
			opts.Accessibility = ch
		}
	}

	if cfg.Channels.SyntheticInput.Enabled {
		if slices.Contains(backend.Available(), driver.KindSyntheticInput) {
			opts.SyntheticInput = xinput.New(backend.Connection(), xinput.Options{
				KeystrokesPerSecond: cfg.SyntheticInput.KeystrokesPerSecond,
				PointerSteps:        cfg.SyntheticInput.PointerSteps,
				ScrollStepPx:        cfg.SyntheticInput.ScrollStepPx,
				Logger:              logger,
			})
			logger.Info("synthetic input channel enabled")
		} else {
			logger.Warn("XTEST extension missing, synthetic input disabled")
		}
	}

	recorder, err := audit.NewLogger(audit.ConfigFrom(cfg))
	if err != nil {
		logger.Warn("audit log disabled", "error", err)
	} else {
		opts.Recorder = recorder
		s.closers = append(s.closers, func() { recorder.Close() })
	}

	engine, err := router.New(opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.engine = engine

	if len(engine.Available()) == 0 {
		logger.Warn("no automation channel is available; every command will fail")
	}
	return s, nil
}

func (s *stack) openAccessibility(ctx context.Context, cfg *config.Config, logger *slog.Logger) driver.Channel {
	ctx, cancel := context.WithTimeout(ctx, a11yConnectTimeout)
	defer cancel()

	conn, err := atspi.Connect(ctx)
	if err != nil {
		logger.Warn("accessibility channel unavailable", "error", err)
		return nil
	}
	s.closers = append(s.closers, func() { conn.Close() })
	logger.Info("accessibility channel enabled")
	return atspi.New(conn, s.table, cfg.Accessibility.MaxDepth, logger)
}

// Close releases resources in reverse order of acquisition.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
