// relay-pty-host owns one PTY session: it spawns the child program,
// records its output into a bounded replay buffer, and serves attach
// clients over a Unix socket.
//
// Usage: relay-pty-host <id> <cols> <rows> <cwd> <command> [args...]
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/ddrscott/relay-tty/internal/config"
	"github.com/ddrscott/relay-tty/internal/host"
	"github.com/ddrscott/relay-tty/internal/meta"
	"github.com/ddrscott/relay-tty/internal/pty"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	args := os.Args
	if len(args) < 6 {
		fmt.Fprintf(os.Stderr, "Usage: %s <id> <cols> <rows> <cwd> <command> [args...]\n", args[0])
		os.Exit(1)
	}
	id := args[1]
	cols := parseDim(args[2], 80)
	rows := parseDim(args[3], 24)
	cwdArg := args[4]
	command := args[5]
	cmdArgs := args[6:]

	// The outer CLI may wrap the target in a login shell; the RELAY_ORIG_*
	// variables carry what the user actually asked for, for metadata only.
	displayCmd, displayArgs := displayOverrides(command, cmdArgs)
	childEnviron := childEnv(os.Environ())
	os.Unsetenv("RELAY_ORIG_COMMAND")
	os.Unsetenv("RELAY_ORIG_ARGS")

	home := os.Getenv("HOME")
	if home == "" {
		home = "/"
	}

	cfg, err := config.Load(home)
	if err != nil {
		slog.Error("failed to load host config", "error", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirs(); err != nil {
		slog.Error("failed to create data directories", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	cwd := cwdArg
	if cwd == "" {
		cwd = home
	}
	if info, statErr := os.Stat(cwd); statErr != nil || !info.IsDir() {
		slog.Warn("working directory unavailable, falling back to home", "cwd", cwd)
		cwd = home
	}

	// The host must survive its controlling terminal going away.
	signal.Ignore(syscall.SIGHUP)

	now := meta.NowMillis()
	doc := &meta.Session{
		ID:           id,
		Command:      displayCmd,
		Args:         displayArgs,
		Cwd:          cwd,
		CreatedAt:    now,
		LastActivity: now,
		Status:       meta.StatusRunning,
		Cols:         cols,
		Rows:         rows,
		StartedAt:    meta.ISONow(),
		LastActiveAt: meta.ISONow(),
	}

	sess, err := pty.Spawn(pty.SpawnOptions{
		Command: command,
		Args:    cmdArgs,
		Cols:    cols,
		Rows:    rows,
		Cwd:     cwd,
		Env:     childEnviron,
	})
	if err != nil {
		slog.Error("failed to spawn child",
			"command", shellquote.Join(append([]string{displayCmd}, displayArgs...)...),
			"error", err)
		code := 127
		exitedAt := meta.NowMillis()
		doc.Status = meta.StatusExited
		doc.ExitCode = &code
		doc.ExitedAt = &exitedAt
		doc.Error = err.Error()
		doc.Pid = os.Getpid()
		_ = meta.WriteAtomic(cfg.SessionPath(id), doc)
		os.Exit(127)
	}
	doc.Pid = sess.Pid()

	h, err := host.New(host.Options{ID: id, Session: sess, Meta: doc, Config: cfg})
	if err != nil {
		slog.Error("failed to start session host", "session", id, "error", err)
		sess.Terminate()
		os.Exit(1)
	}

	slog.Info("session host started",
		"session", id,
		"pid", sess.Pid(),
		"command", shellquote.Join(append([]string{displayCmd}, displayArgs...)...),
		"socket", cfg.SocketPath(id))

	os.Exit(h.Run())
}

func parseDim(s string, fallback uint16) uint16 {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil || v == 0 {
		return fallback
	}
	return uint16(v)
}

// displayOverrides resolves the command and args recorded in metadata.
// RELAY_ORIG_ARGS is a JSON string array; a malformed value falls back to
// the real argv tail.
func displayOverrides(command string, args []string) (string, []string) {
	cmd := command
	if v := os.Getenv("RELAY_ORIG_COMMAND"); v != "" {
		cmd = v
	}
	display := args
	if v := os.Getenv("RELAY_ORIG_ARGS"); v != "" {
		var parsed []string
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			display = parsed
		}
	}
	return cmd, display
}

// childEnv builds the child's environment: the host's environment minus
// the RELAY_ORIG_* passthrough variables, with TERM pinned.
func childEnv(environ []string) []string {
	env := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if strings.HasPrefix(kv, "RELAY_ORIG_COMMAND=") ||
			strings.HasPrefix(kv, "RELAY_ORIG_ARGS=") ||
			strings.HasPrefix(kv, "TERM=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "TERM=xterm-256color")
}
