//go:build unix

package process

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/testutil"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
)

// lockedBuffer is a bytes.Buffer safe for the concurrent writes the runner
// performs in console mode.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newScriptRunner returns a runner whose Tool executable is a shell script
// with the given body.
func newScriptRunner(t *testing.T, body string) (*ExecRunner, string) {
	t.Helper()
	testutil.SkipIfNoShell(t)

	dir := t.TempDir()
	testutil.WriteScript(t, dir, "tool", body)
	profile := toolkit.Profile{
		Name:    "test",
		BaseDir: dir,
		Tools:   map[toolkit.ToolType]string{toolkit.Tool: "tool"},
	}
	logDir := filepath.Join(dir, "logs")
	r := NewExecRunner(profile, logDir, nil)
	r.GracePeriod = 200 * time.Millisecond
	return r, logDir
}

func logSpec(index int, args ...string) Spec {
	s := NewSpec(toolkit.Tool, args...)
	s.Output = OutputLogFile
	s.LogName = "lightmaps_dam"
	s.LogIndex = index
	return s
}

func TestExecRunner_ExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantFailed bool
	}{
		{"success", "exit 0", 0, false},
		{"tool failure", "exit 2", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newScriptRunner(t, tt.body)
			res, err := r.Run(context.Background(), logSpec(NoIndex))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.ExitCode != tt.wantCode || res.Failed() != tt.wantFailed {
				t.Errorf("Run() = %+v, want exit %d failed=%v", res, tt.wantCode, tt.wantFailed)
			}
			if res.Terminated {
				t.Error("natural exit must not be reported as terminated")
			}
			if res.PID == 0 {
				t.Error("expected PID to be recorded")
			}
		})
	}
}

func TestExecRunner_LogFile(t *testing.T) {
	r, logDir := newScriptRunner(t, `echo "baking $1"; echo "warning" >&2`)

	res, err := r.Run(context.Background(), logSpec(2, "dam"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := filepath.Join(logDir, "lightmaps_dam-2.log")
	if res.LogPath != want {
		t.Errorf("LogPath = %q, want %q", res.LogPath, want)
	}
	if got := testutil.ReadFile(t, want); got != "baking dam\nwarning\n" {
		t.Errorf("log content = %q", got)
	}
}

func TestExecRunner_Console(t *testing.T) {
	r, _ := newScriptRunner(t, `echo one; printf two`)
	var out lockedBuffer
	r.Console = &out

	spec := logSpec(1)
	spec.Output = OutputConsole
	res, err := r.Run(context.Background(), spec)
	if err != nil || res.Failed() {
		t.Fatalf("Run() = %+v, %v", res, err)
	}
	if res.LogPath != "" {
		t.Errorf("console output should not produce a log path, got %q", res.LogPath)
	}
	if got := out.String(); got != "[lightmaps_dam-1] one\n[lightmaps_dam-1] two\n" {
		t.Errorf("console output = %q", got)
	}
}

func TestExecRunner_MissingExecutable(t *testing.T) {
	testutil.SkipIfNoShell(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "not_exec", "#!/bin/sh\nexit 0\n")

	tests := []struct {
		name string
		rel  string
	}{
		{"does not exist", "missing"},
		{"not executable", "not_exec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := toolkit.Profile{BaseDir: dir, Tools: map[toolkit.ToolType]string{toolkit.Tool: tt.rel}}
			r := NewExecRunner(profile, dir, nil)

			_, err := r.Run(context.Background(), NewSpec(toolkit.Tool))
			var missing *errors.MissingExecutableError
			if !errors.As(err, &missing) {
				t.Fatalf("Run() error = %v, want MissingExecutableError", err)
			}
			if !errors.Is(err, errors.ErrMissingExecutable) {
				t.Error("error should match ErrMissingExecutable")
			}
			if errors.IsRetryable(err) {
				t.Error("missing executable must not be retryable")
			}
		})
	}
}

func TestExecRunner_Cancellation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"honours SIGTERM", "sleep 30"},
		{"ignores SIGTERM", "trap '' TERM; sleep 30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newScriptRunner(t, tt.body)
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(100*time.Millisecond, cancel)

			start := time.Now()
			res, err := r.Run(ctx, logSpec(0))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !res.Terminated || !res.Failed() {
				t.Errorf("Run() = %+v, want terminated", res)
			}
			if elapsed := time.Since(start); elapsed > 10*time.Second {
				t.Errorf("cancellation took %v", elapsed)
			}
		})
	}
}

func TestWasTerminated(t *testing.T) {
	exitErr := fmt.Errorf("exit status 3")
	tests := []struct {
		name     string
		killed   bool
		waitErr  error
		exitCode int
		want     bool
	}{
		{"killed and failed", true, exitErr, 3, true},
		{"killed by signal", true, exitErr, -1, true},
		{"killed but exited zero", true, nil, 0, false},
		{"natural failure during cancel", false, exitErr, 3, false},
		{"natural success", false, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wasTerminated(tt.killed, tt.waitErr, tt.exitCode); got != tt.want {
				t.Errorf("wasTerminated(%v, %v, %d) = %v, want %v", tt.killed, tt.waitErr, tt.exitCode, got, tt.want)
			}
		})
	}
}

func TestExecRunner_AlreadyCancelled(t *testing.T) {
	r, logDir := newScriptRunner(t, "exit 0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx, logSpec(NoIndex))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Terminated || res.PID != 0 {
		t.Errorf("Run() = %+v, want terminated without a process", res)
	}
	if logs, _ := filepath.Glob(filepath.Join(logDir, "*.log")); len(logs) != 0 {
		t.Errorf("no log should be created, found %v", logs)
	}
}

func TestExecRunner_LowPriority(t *testing.T) {
	r, _ := newScriptRunner(t, "sleep 0.2")
	spec := logSpec(0)
	spec.Priority = PriorityLow

	res, err := r.Run(context.Background(), spec)
	if err != nil || res.Failed() {
		t.Errorf("Run() = %+v, %v", res, err)
	}
}

func TestPrefixWriter(t *testing.T) {
	var out bytes.Buffer
	pw := newPrefixWriter(&out, "[w-0] ")

	_, _ = pw.Write([]byte("par"))
	_, _ = pw.Write([]byte("tial\nsecond\nthi"))
	if got := out.String(); got != "[w-0] partial\n[w-0] second\n" {
		t.Errorf("before flush = %q", got)
	}
	pw.Flush()
	pw.Flush()
	if !strings.HasSuffix(out.String(), "[w-0] thi\n") {
		t.Errorf("after flush = %q", out.String())
	}
}

func TestSpec(t *testing.T) {
	s := NewSpec(toolkit.ToolFast, "lightmaps")
	if s.LogIndex != NoIndex || s.Label() != "tool_fast" {
		t.Errorf("NewSpec() = %+v, label %q", s, s.Label())
	}
	s.LogName, s.LogIndex = "lightmaps_dam", 0
	if s.Label() != "lightmaps_dam-0" {
		t.Errorf("Label() = %q", s.Label())
	}
}

func TestParseOutputMode(t *testing.T) {
	for in, want := range map[string]OutputMode{"window": OutputWindow, "console": OutputConsole, "log": OutputLogFile} {
		got, err := ParseOutputMode(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputMode(%q) = %v, %v", in, got, err)
		}
		if got.String() != in {
			t.Errorf("%v.String() = %q", got, got.String())
		}
	}
	if _, err := ParseOutputMode("popup"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ParseOutputMode(popup) error = %v", err)
	}
}
