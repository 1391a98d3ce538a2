package session

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/1broseidon/steer/internal/config"
)

func TestResolve_UsesExistingEnv(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return ":99", "/tmp/should-not-be-used" },
		func(string) string { return ":88" },
	)
	defer restore()

	env := []string{
		"HOME=" + t.TempDir(),
		"DISPLAY=:7",
		"XAUTHORITY=/tmp/xauth-existing",
	}

	got, err := Resolve(env, &config.Config{Display: ":1", XAuthority: "/tmp/cfg"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v := envLookup(got, "DISPLAY"); v != ":7" {
		t.Fatalf("DISPLAY = %q, want %q", v, ":7")
	}
	if v := envLookup(got, "XAUTHORITY"); v != "/tmp/xauth-existing" {
		t.Fatalf("XAUTHORITY = %q, want %q", v, "/tmp/xauth-existing")
	}
}

func TestResolve_UsesConfigAndFallsBackToHomeXAuthority(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return "", "" },
		func(string) string { return "" },
	)
	defer restore()

	home := t.TempDir()
	xauth := filepath.Join(home, ".Xauthority")
	if err := os.WriteFile(xauth, []byte("cookie"), 0600); err != nil {
		t.Fatalf("write xauthority: %v", err)
	}

	got, err := Resolve([]string{"HOME=" + home}, &config.Config{Display: ":1"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v := envLookup(got, "DISPLAY"); v != ":1" {
		t.Fatalf("DISPLAY = %q, want %q", v, ":1")
	}
	if v := envLookup(got, "XAUTHORITY"); v != xauth {
		t.Fatalf("XAUTHORITY = %q, want %q", v, xauth)
	}
}

func TestResolve_UsesDetectedValues(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return ":5", "/tmp/xauth-detected" },
		func(string) string { return "" },
	)
	defer restore()

	got, err := Resolve([]string{"HOME=" + t.TempDir()}, &config.Config{})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v := envLookup(got, "DISPLAY"); v != ":5" {
		t.Fatalf("DISPLAY = %q, want %q", v, ":5")
	}
	if v := envLookup(got, "XAUTHORITY"); v != "/tmp/xauth-detected" {
		t.Fatalf("XAUTHORITY = %q, want %q", v, "/tmp/xauth-detected")
	}
}

func TestResolve_FallsBackToSocketDir(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return "", "" },
		func(string) string { return ":3" },
	)
	defer restore()

	got, err := Resolve([]string{"HOME=" + t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v := envLookup(got, "DISPLAY"); v != ":3" {
		t.Fatalf("DISPLAY = %q, want %q", v, ":3")
	}
}

func TestResolve_SetsXdgRuntimeDirWhenMissing(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return "", "" },
		func(string) string { return "" },
	)
	defer restore()

	xdg := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", xdg)

	got, err := Resolve([]string{"HOME=" + t.TempDir()}, &config.Config{Display: ":1"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v := envLookup(got, "XDG_RUNTIME_DIR"); v != xdg {
		t.Fatalf("XDG_RUNTIME_DIR = %q, want %q", v, xdg)
	}
}

func TestResolve_ReturnsClearErrorWhenDisplayUnavailable(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return "", "" },
		func(string) string { return "" },
	)
	defer restore()

	_, err := Resolve([]string{"HOME=" + t.TempDir()}, &config.Config{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "no X11 display found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return "", "" },
		func(string) string { return "" },
	)
	defer restore()

	env := []string{"DISPLAY=", "HOME=" + t.TempDir()}
	if _, err := Resolve(env, &config.Config{Display: ":4"}); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if env[0] != "DISPLAY=" {
		t.Fatalf("input env modified: %v", env)
	}
}

func TestDetectDisplayFromSockets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"X0", "X2", "not-a-display"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{}, 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if got := detectDisplayFromSockets(dir); got != ":2" {
		t.Fatalf("detectDisplayFromSockets = %q, want %q", got, ":2")
	}
}

func TestParseLoginctlSessions(t *testing.T) {
	out := strings.Join([]string{
		"1 1000 george seat0",
		"2 1001 alice seat0",
		"3 1000 george seat1",
		"",
	}, "\n")
	got := parseLoginctlSessions(out, "1000")
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Fatalf("parseLoginctlSessions = %v, want [1 3]", got)
	}
}

func TestDetectSessionX11EnvReadsLeaderEnviron(t *testing.T) {
	origRun, origRead := runCommandOutputFn, readFileFn
	defer func() { runCommandOutputFn, readFileFn = origRun, origRead }()

	uid := strconv.Itoa(os.Getuid())
	runCommandOutputFn = func(name string, args ...string) (string, error) {
		if len(args) > 0 && args[0] == "list-sessions" {
			return "7 " + uid + " someone seat0\n", nil
		}
		switch args[len(args)-2] {
		case "Display":
			return ":0\n", nil
		case "Leader":
			return "4242\n", nil
		}
		return "", nil
	}
	readFileFn = func(path string) ([]byte, error) {
		if path != "/proc/4242/environ" {
			t.Fatalf("unexpected read of %s", path)
		}
		return []byte("DISPLAY=:1\x00XAUTHORITY=/run/user/1000/xauth\x00"), nil
	}

	display, xauth := detectSessionX11Env()
	if display != ":1" || xauth != "/run/user/1000/xauth" {
		t.Fatalf("detectSessionX11Env = %q, %q", display, xauth)
	}
}

func stubDetectFns(
	detectSession func() (string, string),
	detectSocket func(string) string,
) func() {
	origSession := detectSessionX11EnvFn
	origSocket := detectDisplayFromSocketFn
	detectSessionX11EnvFn = detectSession
	detectDisplayFromSocketFn = detectSocket
	return func() {
		detectSessionX11EnvFn = origSession
		detectDisplayFromSocketFn = origSocket
	}
}
