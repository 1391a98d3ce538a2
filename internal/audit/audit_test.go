package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/config"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/router"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad record %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestRecordSuccess(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(LogConfig{Enabled: true, Level: slog.LevelInfo, PreviewLength: 4}, &buf)

	pt := geometry.ScreenPoint{X: 110, Y: 220}
	l.Record(
		router.Request{Command: automation.Click{Point: geometry.WindowPoint{X: 10, Y: 20}}, Handle: "win_1A", Policy: automation.PolicyPreserve},
		automation.Window{Handle: "win_1A"},
		automation.Result{InvocationID: "01J", Success: true, Route: automation.RouteAccessibility, Point: &pt},
	)

	recs := decodeLines(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r["msg"] != "CLICK" || r["level"] != "INFO" {
		t.Fatalf("unexpected header %v", r)
	}
	if r["route"] != "accessibility" || r["window"] != "win_1A" || r["success"] != true {
		t.Fatalf("unexpected record %v", r)
	}
	if r["x"] != 110.0 || r["y"] != 220.0 {
		t.Fatalf("unexpected point %v,%v", r["x"], r["y"])
	}
	if _, ok := r["resolved"]; ok {
		t.Fatalf("resolved should be omitted when handles match")
	}
}

func TestRecordFailureCarriesKind(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(LogConfig{Enabled: true, Level: slog.LevelInfo}, &buf)

	err := automation.NewWindowNotFound("win_FF")
	l.Record(
		router.Request{Command: automation.Drag{}, Handle: "win_FF", Policy: automation.PolicyPreserve},
		automation.Window{},
		automation.Result{InvocationID: "01K", Err: err},
	)

	recs := decodeLines(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0]["msg"] != "DRAG" || recs[0]["level"] != "WARN" {
		t.Fatalf("unexpected header %v", recs[0])
	}
	if recs[0]["error_kind"] != string(automation.ErrWindowNotFound) {
		t.Fatalf("unexpected error kind %v", recs[0]["error_kind"])
	}
}

func TestRecordLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(LogConfig{Enabled: true, Level: slog.LevelWarn}, &buf)

	l.Record(router.Request{Command: automation.TypeText{Text: "x"}, Handle: "win_1"}, automation.Window{}, automation.Result{Success: true})
	if buf.Len() != 0 {
		t.Fatalf("expected info record to be filtered, got %q", buf.String())
	}
}

func TestRecordTextPreview(t *testing.T) {
	tests := []struct {
		name    string
		include bool
		key     string
		want    string
	}{
		{"preview", false, "preview", "héll..."},
		{"full content", true, "text", "héllo world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(LogConfig{Enabled: true, Level: slog.LevelDebug, IncludeContent: tt.include, PreviewLength: 4}, &buf)
			l.Record(router.Request{Command: automation.TypeText{Text: "héllo world"}, Handle: "win_1"}, automation.Window{}, automation.Result{Success: true})

			recs := decodeLines(t, &buf)
			if len(recs) != 1 || recs[0]["msg"] != "TYPE-TEXT" {
				t.Fatalf("unexpected records %v", recs)
			}
			if recs[0][tt.key] != tt.want {
				t.Fatalf("%s = %v, want %q", tt.key, recs[0][tt.key], tt.want)
			}
		})
	}
}

func TestDisabledLoggerIsNoop(t *testing.T) {
	l, err := NewLogger(LogConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Record(router.Request{Command: automation.Click{}}, automation.Window{}, automation.Result{})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var nilLogger *Logger
	nilLogger.Record(router.Request{}, automation.Window{}, automation.Result{})
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "actions.log")
	l, err := NewLogger(LogConfig{Enabled: true, Level: slog.LevelInfo, FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Record(router.Request{Command: automation.Gesture{Type: automation.GestureScroll, DeltaY: 1}, Handle: "win_2"}, automation.Window{}, automation.Result{Success: true})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"GESTURE"`) {
		t.Fatalf("unexpected log contents %q", data)
	}
}

func TestConfigFrom(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	cfg := config.DefaultConfig()
	cfg.Logging.Enabled = true
	cfg.Logging.Level = "debug"

	lc := ConfigFrom(cfg)
	if !lc.Enabled || lc.Level != slog.LevelDebug || lc.MaxFiles != 3 || lc.PreviewLength != 50 {
		t.Fatalf("unexpected config %+v", lc)
	}
	if lc.FilePath != "/home/tester/.local/share/steer/actions.log" {
		t.Fatalf("unexpected path %q", lc.FilePath)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abc", 0); got != "abc" {
		t.Fatalf("Truncate(abc, 0) = %q", got)
	}
	if got := Truncate("abc", 3); got != "abc" {
		t.Fatalf("Truncate(abc, 3) = %q", got)
	}
	if got := Truncate("日本語テキスト", 3); got != "日本語..." {
		t.Fatalf("Truncate = %q", got)
	}
}
