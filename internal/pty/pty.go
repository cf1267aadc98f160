// Package pty spawns and supervises the child program inside a
// pseudo-terminal.
package pty

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"

	creackpty "github.com/creack/pty"
)

// ErrClosed is returned for operations on a closed session.
var ErrClosed = errors.New("pty: session is closed")

// SpawnOptions describe the child to start.
type SpawnOptions struct {
	Command string
	Args    []string
	Cols    uint16
	Rows    uint16
	// Cwd must already be validated by the caller; an empty value keeps
	// the host's working directory.
	Cwd string
	// Env is the child's full environment.
	Env []string
}

// Session wraps a child process running inside a PTY. The multiplexer is
// the only reader and the only writer of the master fd.
type Session struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Spawn starts the command in a fresh PTY with the given window size.
func Spawn(opts SpawnOptions) (*Session, error) {
	if opts.Command == "" {
		return nil, errors.New("pty: command must not be empty")
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Cwd
	cmd.Env = opts.Env

	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{
		Cols: opts.Cols,
		Rows: opts.Rows,
	})
	if err != nil {
		return nil, err
	}

	return &Session{cmd: cmd, ptmx: ptmx}, nil
}

// Pid returns the child's process id.
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// Read reads output from the master fd. After the child exits the read
// fails (EOF or EIO depending on the platform); callers treat any error
// as end of stream.
func (s *Session) Read(p []byte) (int, error) {
	return s.ptmx.Read(p)
}

// Write sends data to the PTY, which the child sees as keyboard input.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.ptmx.Write(p)
}

// Resize changes the PTY window size via TIOCSWINSZ. Metadata is the
// multiplexer's concern, not updated here.
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return creackpty.Setsize(s.ptmx, &creackpty.Winsize{Cols: cols, Rows: rows})
}

// Terminate sends SIGTERM to the child.
func (s *Session) Terminate() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Wait reaps the child and classifies its status: the exit code for a
// normal exit, 128 plus the signal number for a signal death, -1 for
// anything else.
func (s *Session) Wait() int {
	err := s.cmd.Wait()
	if err == nil {
		return s.cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			switch {
			case ws.Exited():
				return ws.ExitStatus()
			case ws.Signaled():
				return 128 + int(ws.Signal())
			}
		}
	}
	return -1
}

// Close closes the master fd. Safe to call multiple times.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.ptmx.Close()
	})
	return err
}
