// Package execx runs external programs behind an interface so callers can be
// tested with a fake
package execx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command describes one process invocation
type Command struct {
	Name string
	Args []string
	Env  []string // added to the current environment
	Dir  string

	// Interactive attaches the terminal; Run then returns no output
	Interactive bool
}

// String renders the command line for logs
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands and resolves executables
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
	LookPath(file string) (string, error)
}

// ExitError is returned when the process ran but failed
type ExitError struct {
	Command Command
	Err     error
	Stdout  []byte
	Stderr  []byte
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Command.Name, e.Err)
	if stderr := strings.TrimSpace(string(e.Stderr)); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// OSRunner runs commands with os/exec
type OSRunner struct{}

// Run executes cmd and returns its stdout
func (OSRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	if c.Interactive {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := cmd.Run(); err != nil {
			return nil, &ExitError{Command: c, Err: err}
		}
		return nil, nil
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, ctx.Err())
		}
		return nil, &ExitError{Command: c, Err: err, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	}
	return stdout.Bytes(), nil
}

// LookPath resolves file on PATH
func (OSRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}
