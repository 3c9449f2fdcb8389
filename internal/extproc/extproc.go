// Package extproc runs external tools as child processes with bounded
// output capture and first-class timeouts.
//
// Every invocation returns a structured Result rather than a bare error:
// callers report exit codes and captured streams to their own callers, and
// a timeout is reported distinctly from a non-zero exit.
package extproc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CaptureLimit bounds how many characters of each stream are retained.
// Capture keeps the tail, where failing tools print their diagnostics.
const CaptureLimit = 20000

// Command describes one external tool invocation.
type Command struct {
	Binary  string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Result captures the outcome of an invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// CommandLine renders the invocation for diagnostics.
func (c Command) CommandLine() string {
	return strings.Join(append([]string{c.Binary}, c.Args...), " ")
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// New returns the default process-backed executor.
func New() Executor {
	return processExecutor{}
}

type processExecutor struct{}

func (processExecutor) Run(ctx context.Context, cmd Command) (Result, error) {
	if strings.TrimSpace(cmd.Binary) == "" {
		return Result{ExitCode: -1}, errors.New("binary required")
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	var stdout, stderr tailBuffer
	proc := exec.CommandContext(runCtx, cmd.Binary, cmd.Args...) //nolint:gosec
	proc.Dir = cmd.Dir
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	started := time.Now()
	err := proc.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", cmd.Binary, err)
	}

	result.ExitCode = 0
	return result, nil
}

// tailBuffer retains the last CaptureLimit bytes written to it.
type tailBuffer struct {
	data []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if overflow := len(b.data) - CaptureLimit; overflow > 0 {
		b.data = b.data[overflow:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
