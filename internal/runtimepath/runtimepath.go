// Package runtimepath locates the per-user runtime directory that holds the
// daemon socket, scripting sockets and session state.
package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	socketName   = "steer.sock"
	stateName    = "steer-identity.json"
	scriptingSub = "steer/scripting"
)

// Dir returns XDG_RUNTIME_DIR when set, otherwise /run/user/<uid> when it
// exists, otherwise a private directory under /tmp that it creates.
func Dir() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}

	uid := strconv.Itoa(os.Getuid())
	if dir := filepath.Join("/run/user", uid); isDir(dir) {
		return dir, nil
	}

	dir := filepath.Join(os.TempDir(), "steer-runtime-"+uid)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create runtime dir %s: %w", dir, err)
	}
	return dir, nil
}

// SocketPath is the daemon's IPC socket.
func SocketPath() (string, error) { return under(socketName) }

// ScriptingDir holds one <pid>.sock per scriptable application.
func ScriptingDir() (string, error) { return under(scriptingSub) }

// IdentityStatePath is where the daemon keeps handle mappings between
// restarts within a session.
func IdentityStatePath() (string, error) { return under(stateName) }

func under(rel string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
