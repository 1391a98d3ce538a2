package scripting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/geometry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testPID = 4242

type recordingHandler struct {
	mu      sync.Mutex
	clicks  []ClickPayload
	texts   []string
	windows []string
	err     error
	block   chan struct{}
}

func (h *recordingHandler) Click(_ context.Context, window string, p ClickPayload) error {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clicks = append(h.clicks, p)
	h.windows = append(h.windows, window)
	return h.err
}

func (h *recordingHandler) TypeText(_ context.Context, window string, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.texts = append(h.texts, text)
	h.windows = append(h.windows, window)
	return h.err
}

func startServer(t *testing.T, h Handler) string {
	t.Helper()
	dir := t.TempDir()
	srv := NewServer(SocketPath(dir, testPID), h, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return dir
}

var scriptable = automation.Window{
	Handle: "win_2A",
	Frame:  geometry.NewRect(0, 0, 640, 480),
	App:    testPID,
}

func TestSupportsRequiresSocket(t *testing.T) {
	h := &recordingHandler{}
	dir := startServer(t, h)
	ch := NewChannel(dir, time.Second, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		kind automation.CommandKind
		win  automation.Window
		want bool
	}{
		{"click", automation.KindClick, scriptable, true},
		{"type", automation.KindTypeText, scriptable, true},
		{"drag never scriptable", automation.KindDrag, scriptable, false},
		{"gesture never scriptable", automation.KindGesture, scriptable, false},
		{"other pid", automation.KindClick, automation.Window{Handle: "win_1", App: 1}, false},
		{"no pid", automation.KindClick, automation.Window{Handle: "win_1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ch.Supports(ctx, tt.kind, tt.win)
			if err != nil {
				t.Fatalf("Supports: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Supports = %v, want %v", got, tt.want)
			}
		})
	}

	if len(h.clicks)+len(h.texts) != 0 {
		t.Fatal("probe reached the application")
	}
}

func TestSupportsIgnoresRegularFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(SocketPath(dir, testPID), nil, 0600); err != nil {
		t.Fatal(err)
	}
	ok, err := NewChannel(dir, time.Second, nil).Supports(context.Background(), automation.KindClick, scriptable)
	if err != nil || ok {
		t.Fatalf("Supports = %v, %v; want false", ok, err)
	}
}

func TestExecuteClick(t *testing.T) {
	h := &recordingHandler{}
	ch := NewChannel(startServer(t, h), time.Second, nil)

	_, err := ch.Execute(context.Background(), automation.Click{
		Point: geometry.WindowPoint{X: 12.5, Y: 40},
		Count: 2,
	}, scriptable)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	want := ClickPayload{X: 12.5, Y: 40, Button: "left", Count: 2}
	if len(h.clicks) != 1 || h.clicks[0] != want {
		t.Fatalf("clicks = %+v, want [%+v]", h.clicks, want)
	}
	if h.windows[0] != scriptable.Handle {
		t.Fatalf("window = %q, want %q", h.windows[0], scriptable.Handle)
	}
}

func TestExecuteTypeText(t *testing.T) {
	h := &recordingHandler{}
	ch := NewChannel(startServer(t, h), time.Second, nil)

	if _, err := ch.Execute(context.Background(), automation.TypeText{Text: "héllo\n"}, scriptable); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.texts) != 1 || h.texts[0] != "héllo\n" {
		t.Fatalf("texts = %q", h.texts)
	}
}

func TestExecuteErrorCodes(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		want        *automation.Error
		recoverable bool
	}{
		{"declined", Decline("menu is modal"), automation.Declined, true},
		{"not addressable", NotAddressable("no element at %v", "1,2"), automation.Declined, true},
		{"invalid", &Error{Code: CodeInvalidArgument, Message: "bad"}, automation.InvalidArgument, false},
		{"permission", &Error{Code: CodePermissionDenied, Message: "sandboxed"}, automation.PermissionDenied, false},
		{"uncoded", errors.New("boom"), automation.OSFailure, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{err: tt.err}
			ch := NewChannel(startServer(t, h), time.Second, nil)

			_, err := ch.Execute(context.Background(), automation.Click{Point: geometry.WindowPoint{X: 1, Y: 1}}, scriptable)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want kind %s", err, tt.want.Kind)
			}
			if got := automation.Recoverable(err); got != tt.recoverable {
				t.Fatalf("Recoverable = %v, want %v", got, tt.recoverable)
			}
		})
	}
}

func TestExecuteWithoutListenerDeclines(t *testing.T) {
	ch := NewChannel(t.TempDir(), time.Second, nil)
	_, err := ch.Execute(context.Background(), automation.TypeText{Text: "x"}, scriptable)
	if !errors.Is(err, automation.Declined) {
		t.Fatalf("err = %v, want Declined", err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	h := &recordingHandler{block: make(chan struct{})}
	ch := NewChannel(startServer(t, h), 50*time.Millisecond, nil)
	defer close(h.block)

	_, err := ch.Execute(context.Background(), automation.Click{Point: geometry.WindowPoint{X: 1, Y: 1}}, scriptable)
	if !errors.Is(err, automation.Timeout) {
		t.Fatalf("err = %v, want Timeout", err)
	}
	if automation.Recoverable(err) {
		t.Fatal("timeout after the request was sent must not fall back")
	}
}

// answerRaw serves one connection with a fixed response line.
func answerRaw(t *testing.T, line string) string {
	t.Helper()
	dir := t.TempDir()
	ln, err := net.Listen("unix", SocketPath(dir, testPID))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte(line + "\n"))
	}()
	t.Cleanup(func() {
		ln.Close()
		<-done
	})
	return dir
}

func TestExecuteRejectsUnknownStatus(t *testing.T) {
	for _, line := range []string{`{}`, `{"status":"ok"}`, `{"status":"DONE"}`} {
		t.Run(line, func(t *testing.T) {
			ch := NewChannel(answerRaw(t, line), time.Second, nil)
			_, err := ch.Execute(context.Background(), automation.TypeText{Text: "x"}, scriptable)
			if !errors.Is(err, automation.OSFailure) {
				t.Fatalf("err = %v, want OSFailure", err)
			}
			if automation.Recoverable(err) {
				t.Fatal("unexpected status must not fall back")
			}
		})
	}
}

func TestExecuteRejectsUnscriptableKinds(t *testing.T) {
	ch := NewChannel(t.TempDir(), time.Second, nil)
	_, err := ch.Execute(context.Background(), automation.Drag{}, scriptable)
	if !errors.Is(err, automation.Declined) {
		t.Fatalf("err = %v, want Declined", err)
	}
}

func TestServerRejectsGarbage(t *testing.T) {
	dir := startServer(t, &recordingHandler{})

	conn, err := net.Dial("unix", SocketPath(dir, testPID))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	fmt.Fprintln(conn, "{not json")

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := string(buf[:n]); !strings.Contains(got, `"code":"INVALID_ARGUMENT"`) {
		t.Fatalf("response = %s", got)
	}
}

func TestPing(t *testing.T) {
	dir := startServer(t, &recordingHandler{})
	if err := NewChannel(dir, time.Second, nil).Ping(context.Background(), testPID); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

