// Package audit writes one structured record per routed command to a
// rotating log file.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/config"
	"github.com/1broseidon/steer/internal/router"
)

// ActionType is the audit label of a routed command.
type ActionType string

const (
	ActionClick    ActionType = "CLICK"
	ActionTypeText ActionType = "TYPE-TEXT"
	ActionDrag     ActionType = "DRAG"
	ActionGesture  ActionType = "GESTURE"
)

func actionFor(kind automation.CommandKind) ActionType {
	switch kind {
	case automation.KindClick:
		return ActionClick
	case automation.KindTypeText:
		return ActionTypeText
	case automation.KindDrag:
		return ActionDrag
	case automation.KindGesture:
		return ActionGesture
	}
	return ActionType(kind)
}

// LogConfig holds configuration for the audit logger.
type LogConfig struct {
	Enabled        bool
	Level          slog.Level
	FilePath       string
	MaxSizeMB      int
	MaxFiles       int
	IncludeContent bool
	PreviewLength  int
}

// ConfigFrom converts the logging section of the user config.
func ConfigFrom(cfg *config.Config) LogConfig {
	lc := cfg.GetLoggingConfig()
	return LogConfig{
		Enabled:        lc.Enabled,
		Level:          config.ParseLevel(lc.Level),
		FilePath:       lc.File,
		MaxSizeMB:      lc.MaxSizeMB,
		MaxFiles:       lc.MaxFiles,
		IncludeContent: lc.IncludeContent,
		PreviewLength:  lc.PreviewLength,
	}
}

// Logger records routed commands. A nil or disabled Logger drops records.
type Logger struct {
	mu     sync.Mutex
	config LogConfig
	out    io.Closer
	log    *slog.Logger
}

var _ router.Recorder = (*Logger)(nil)

// NewLogger opens the audit log described by cfg.
func NewLogger(cfg LogConfig) (*Logger, error) {
	if !cfg.Enabled {
		return &Logger{config: cfg}, nil
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	w := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
	}
	l := newLogger(cfg, w)
	l.out = w
	return l, nil
}

func newLogger(cfg LogConfig, w io.Writer) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	return &Logger{config: cfg, log: slog.New(h)}
}

// Record implements router.Recorder. Successful commands are logged at info,
// failures at warn.
func (l *Logger) Record(req router.Request, win automation.Window, res automation.Result) {
	if l == nil || l.log == nil {
		return
	}

	level := slog.LevelInfo
	if !res.Success {
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("invocation", res.InvocationID),
		slog.String("window", req.Handle),
		slog.String("policy", string(req.Policy)),
		slog.Bool("success", res.Success),
	}
	if win.Handle != "" && win.Handle != req.Handle {
		attrs = append(attrs, slog.String("resolved", win.Handle))
	}
	if req.Command != nil {
		attrs = append(attrs, slog.String("command", req.Command.String()))
		if t, ok := req.Command.(automation.TypeText); ok {
			attrs = append(attrs, l.textAttr(t.Text))
		}
	}
	if res.Route != "" {
		attrs = append(attrs, slog.String("route", string(res.Route)))
	}
	if res.Point != nil {
		attrs = append(attrs, slog.Float64("x", res.Point.X), slog.Float64("y", res.Point.Y))
	}
	if res.Err != nil {
		attrs = append(attrs,
			slog.String("error_kind", string(res.ErrorKind())),
			slog.String("error", res.Err.Error()))
	}

	action := ActionType("UNKNOWN")
	if req.Command != nil {
		action = actionFor(req.Command.Kind())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.LogAttrs(ctx, level, string(action), attrs...)
}

func (l *Logger) textAttr(text string) slog.Attr {
	if l.config.IncludeContent {
		return slog.String("text", text)
	}
	return slog.String("preview", Truncate(text, l.config.PreviewLength))
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.out.Close()
	l.out = nil
	l.log = nil
	return err
}

// Truncate returns a preview of s of at most maxLen runes.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
