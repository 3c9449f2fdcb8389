package extproc_test

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"bootforge/internal/extproc"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests shell out to /bin/sh")
	}
}

func TestRunCapturesStreamsAndExitCode(t *testing.T) {
	requireShell(t)
	exec := extproc.New()

	result, err := exec.Run(context.Background(), extproc.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo out; echo err >&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("unexpected exit code: %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "out" {
		t.Fatalf("unexpected stdout: %q", result.Stdout)
	}
	if strings.TrimSpace(result.Stderr) != "err" {
		t.Fatalf("unexpected stderr: %q", result.Stderr)
	}
	if result.TimedOut {
		t.Fatal("unexpected timeout")
	}
}

func TestRunSuccess(t *testing.T) {
	requireShell(t)
	result, err := extproc.New().Run(context.Background(), extproc.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "true"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 0 || result.TimedOut {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunTimeout(t *testing.T) {
	requireShell(t)
	result, err := extproc.New().Run(context.Background(), extproc.Command{
		Binary:  "/bin/sh",
		Args:    []string{"-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.TimedOut {
		t.Fatalf("expected timeout, got %+v", result)
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := extproc.New().Run(context.Background(), extproc.Command{
		Binary: "/nonexistent/bootforge-tool",
	})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestRunCapsCaptureToTail(t *testing.T) {
	requireShell(t)
	result, err := extproc.New().Run(context.Background(), extproc.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", `i=0; while [ $i -lt 3000 ]; do echo "line-$i"; i=$((i+1)); done; echo LAST`},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Stdout) > extproc.CaptureLimit {
		t.Fatalf("stdout exceeds capture limit: %d", len(result.Stdout))
	}
	if !strings.Contains(result.Stdout, "LAST") {
		t.Fatal("capture should keep the tail of the stream")
	}
	if strings.Contains(result.Stdout, "line-0\n") {
		t.Fatal("capture should drop the head of the stream")
	}
}

func TestCommandLine(t *testing.T) {
	cmd := extproc.Command{Binary: "payload.sh", Args: []string{"-u", "-s", "data"}}
	if got := cmd.CommandLine(); got != "payload.sh -u -s data" {
		t.Fatalf("unexpected command line: %q", got)
	}
}
