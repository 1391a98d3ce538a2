package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/steer/internal/automation"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// ChannelToggle enables or disables one automation route.
type ChannelToggle struct {
	Enabled bool `yaml:"enabled"`
}

type ChannelsConfig struct {
	Scripting      ChannelToggle `yaml:"scripting"`
	Accessibility  ChannelToggle `yaml:"accessibility"`
	SyntheticInput ChannelToggle `yaml:"synthetic_input"`
}

type ScriptingConfig struct {
	// SocketDir holds one <pid>.sock per scriptable application
	// (default: $XDG_RUNTIME_DIR/steer/scripting)
	SocketDir string `yaml:"socket_dir,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type AccessibilityConfig struct {
	// MaxDepth bounds the focus search in the accessible tree
	MaxDepth int `yaml:"max_depth"`
}

type SyntheticInputConfig struct {
	// KeystrokesPerSecond paces typing; 0 means unlimited
	KeystrokesPerSecond float64 `yaml:"keystrokes_per_second"`
	PointerSteps        int     `yaml:"pointer_steps"`
	ScrollStepPx        float64 `yaml:"scroll_step_px"`
}

type DaemonConfig struct {
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`
	// SettleTimeoutMS bounds the wait for a restored window to become
	// frontmost. Zero disables the wait.
	SettleTimeoutMS int `yaml:"settle_timeout_ms"`
}

// LoggingConfig configures the routed command audit log.
type LoggingConfig struct {
	// Enabled turns audit logging on/off
	Enabled bool `yaml:"enabled,omitempty"`
	// Level controls logging verbosity: debug, info, warn, error
	Level string `yaml:"level,omitempty"`
	// File is the log file path (default: ~/.local/share/steer/actions.log)
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxFiles is the number of rotated files to keep (default: 3)
	MaxFiles int `yaml:"max_files,omitempty"`
	// IncludeContent logs full typed text (security risk, default: false)
	IncludeContent bool `yaml:"include_content,omitempty"`
	// PreviewLength is the number of characters to preview in log (default: 50)
	PreviewLength int `yaml:"preview_length,omitempty"`
}

// Config holds the application configuration.
type Config struct {
	Include        IncludeList          `yaml:"include,omitempty"`
	DefaultPolicy  string               `yaml:"default_policy"`
	Display        string               `yaml:"display,omitempty"`
	XAuthority     string               `yaml:"xauthority,omitempty"`
	LogLevel       string               `yaml:"log_level"`
	Channels       ChannelsConfig       `yaml:"channels"`
	Scripting      ScriptingConfig      `yaml:"scripting"`
	Accessibility  AccessibilityConfig  `yaml:"accessibility"`
	SyntheticInput SyntheticInputConfig `yaml:"synthetic_input"`
	Daemon         DaemonConfig         `yaml:"daemon"`
	Logging        LoggingConfig        `yaml:"logging,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		DefaultPolicy: string(automation.PolicyPreserve),
		LogLevel:      "info",
		Channels: ChannelsConfig{
			Scripting:      ChannelToggle{Enabled: true},
			Accessibility:  ChannelToggle{Enabled: true},
			SyntheticInput: ChannelToggle{Enabled: true},
		},
		Scripting: ScriptingConfig{
			TimeoutMS: 2000,
		},
		Accessibility: AccessibilityConfig{
			MaxDepth: 32,
		},
		SyntheticInput: SyntheticInputConfig{
			KeystrokesPerSecond: 60,
			PointerSteps:        20,
			ScrollStepPx:        40,
		},
		Daemon: DaemonConfig{
			RefreshIntervalSeconds: 2,
			SettleTimeoutMS:        750,
		},
	}
}

// Policy returns the parsed default visibility policy.
func (c *Config) Policy() automation.Policy {
	p, err := automation.ParsePolicy(c.DefaultPolicy)
	if err != nil {
		return automation.PolicyPreserve
	}
	return p
}

func (c *Config) ScriptingTimeout() time.Duration {
	return time.Duration(c.Scripting.TimeoutMS) * time.Millisecond
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Daemon.RefreshIntervalSeconds) * time.Second
}

// SettleTimeout returns a negative duration when waiting is disabled.
func (c *Config) SettleTimeout() time.Duration {
	if c.Daemon.SettleTimeoutMS == 0 {
		return -1
	}
	return time.Duration(c.Daemon.SettleTimeoutMS) * time.Millisecond
}

// SlogLevel maps log_level onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}

// GetLoggingConfig returns the logging configuration with defaults applied.
func (c *Config) GetLoggingConfig() LoggingConfig {
	if c == nil {
		return LoggingConfig{}
	}
	cfg := c.Logging
	if cfg.File == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = os.Getenv("HOME")
		}
		if home == "" {
			// Last resort fallback - use current directory
			home = "."
		}
		cfg.File = filepath.Join(home, ".local/share/steer/actions.log")
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = 3
	}
	if cfg.PreviewLength == 0 {
		cfg.PreviewLength = 50
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	return cfg
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	out.Include = nil
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// ValidationError points at the offending key and, when known, where it was
// set.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (c *Config) Validate() error {
	if _, err := automation.ParsePolicy(c.DefaultPolicy); err != nil {
		return &ValidationError{Path: "default_policy", Err: fmt.Errorf("default_policy must be one of: preserve, allow-restore")}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warning", "warn", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if !c.Channels.Scripting.Enabled && !c.Channels.Accessibility.Enabled && !c.Channels.SyntheticInput.Enabled {
		return &ValidationError{Path: "channels", Err: fmt.Errorf("at least one channel must be enabled")}
	}
	if c.Scripting.TimeoutMS <= 0 {
		return &ValidationError{Path: "scripting.timeout_ms", Err: fmt.Errorf("timeout_ms must be > 0")}
	}
	if c.Accessibility.MaxDepth <= 0 {
		return &ValidationError{Path: "accessibility.max_depth", Err: fmt.Errorf("max_depth must be > 0")}
	}
	if c.SyntheticInput.KeystrokesPerSecond < 0 {
		return &ValidationError{Path: "synthetic_input.keystrokes_per_second", Err: fmt.Errorf("keystrokes_per_second must be >= 0")}
	}
	if c.SyntheticInput.PointerSteps <= 0 {
		return &ValidationError{Path: "synthetic_input.pointer_steps", Err: fmt.Errorf("pointer_steps must be > 0")}
	}
	if c.SyntheticInput.ScrollStepPx <= 0 {
		return &ValidationError{Path: "synthetic_input.scroll_step_px", Err: fmt.Errorf("scroll_step_px must be > 0")}
	}
	if c.Daemon.RefreshIntervalSeconds <= 0 {
		return &ValidationError{Path: "daemon.refresh_interval_seconds", Err: fmt.Errorf("refresh_interval_seconds must be > 0")}
	}
	if c.Daemon.SettleTimeoutMS < 0 {
		return &ValidationError{Path: "daemon.settle_timeout_ms", Err: fmt.Errorf("settle_timeout_ms must be >= 0")}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("level must be one of: debug, info, warn, error")}
	}
	if c.Logging.MaxSizeMB < 0 {
		return &ValidationError{Path: "logging.max_size_mb", Err: fmt.Errorf("max_size_mb must be >= 0")}
	}
	if c.Logging.MaxFiles < 0 {
		return &ValidationError{Path: "logging.max_files", Err: fmt.Errorf("max_files must be >= 0")}
	}
	if c.Logging.PreviewLength < 0 {
		return &ValidationError{Path: "logging.preview_length", Err: fmt.Errorf("preview_length must be >= 0")}
	}
	return nil
}

// ParseLevel maps a level name onto a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	return parseLevel(s)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
