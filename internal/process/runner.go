package process

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/logging"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
)

// Priority is a scheduling hint for a launched tool.
type Priority int

const (
	PriorityNormal Priority = iota
	// PriorityLow lowers the child's niceness after it starts.
	PriorityLow
)

func (p Priority) String() string {
	if p == PriorityLow {
		return "low"
	}
	return "normal"
}

// OutputMode selects where a tool's stdout and stderr go.
type OutputMode int

const (
	// OutputWindow attaches the tool to the launcher's terminal.
	OutputWindow OutputMode = iota
	// OutputConsole merges output into the runner's shared console writer,
	// one prefixed line at a time.
	OutputConsole
	// OutputLogFile redirects output to a per-invocation file in the log
	// directory.
	OutputLogFile
)

// ParseOutputMode maps the configuration spelling to an OutputMode.
func ParseOutputMode(s string) (OutputMode, error) {
	switch s {
	case "window":
		return OutputWindow, nil
	case "console":
		return OutputConsole, nil
	case "log", "logfile":
		return OutputLogFile, nil
	default:
		return OutputWindow, errors.NewValidationError(`output must be "window", "console" or "log"`).WithValue(s)
	}
}

func (m OutputMode) String() string {
	switch m {
	case OutputWindow:
		return "window"
	case OutputConsole:
		return "console"
	case OutputLogFile:
		return "log"
	default:
		return fmt.Sprintf("output(%d)", int(m))
	}
}

// NoIndex is the LogIndex of an invocation that is not a fan-out worker.
const NoIndex = -1

// Spec describes one tool invocation. Treat it as immutable once built.
type Spec struct {
	Tool     toolkit.ToolType
	Args     []string
	Dir      string
	Priority Priority
	Output   OutputMode
	// LogName is the logical operation name used for log files and console
	// prefixes, e.g. "lightmaps_dam".
	LogName string
	// LogIndex is the worker index appended to LogName, or NoIndex.
	LogIndex int
}

// NewSpec returns a Spec without a worker index.
func NewSpec(tool toolkit.ToolType, args ...string) Spec {
	return Spec{Tool: tool, Args: args, LogIndex: NoIndex}
}

// Label is the name shown for this invocation in logs and console output.
func (s Spec) Label() string {
	name := s.LogName
	if name == "" {
		name = s.Tool.String()
	}
	if s.LogIndex >= 0 {
		return fmt.Sprintf("%s-%d", name, s.LogIndex)
	}
	return name
}

// Result is the outcome of one completed invocation.
type Result struct {
	ExitCode int
	// Terminated is set when the process was killed because its context was
	// cancelled, as opposed to exiting on its own.
	Terminated bool
	// LogPath is the captured output file, empty unless output went to a log.
	LogPath  string
	PID      int
	Duration time.Duration
}

// Failed reports whether the invocation did not succeed.
func (r Result) Failed() bool {
	return r.ExitCode != 0 || r.Terminated
}

// Runner launches one tool process per call and waits for it.
type Runner interface {
	// Run starts spec and blocks until the process exits. Cancelling ctx
	// terminates the process; the returned Result then has Terminated set.
	// A non-nil error means the process could not be started (or waited on)
	// at all; a tool that ran and exited non-zero is reported only through
	// the Result.
	Run(ctx context.Context, spec Spec) (Result, error)
}

// DefaultGracePeriod is how long a cancelled tool gets between SIGTERM and
// SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// ExecRunner runs tools as local OS processes.
type ExecRunner struct {
	resolver toolkit.Resolver
	logDir   string
	logger   *logging.Logger

	// Console receives OutputConsole output. Defaults to os.Stdout.
	Console io.Writer
	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration

	consoleOnce sync.Once
	console     *syncWriter
}

// NewExecRunner creates a runner that resolves executables through resolver
// and writes OutputLogFile captures into logDir.
func NewExecRunner(resolver toolkit.Resolver, logDir string, logger *logging.Logger) *ExecRunner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ExecRunner{
		resolver: resolver,
		logDir:   logDir,
		logger:   logger,
	}
}

func (r *ExecRunner) consoleWriter() *syncWriter {
	r.consoleOnce.Do(func() {
		w := r.Console
		if w == nil {
			w = os.Stdout
		}
		r.console = &syncWriter{w: w}
	})
	return r.console
}

func (r *ExecRunner) gracePeriod() time.Duration {
	if r.GracePeriod > 0 {
		return r.GracePeriod
	}
	return DefaultGracePeriod
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	log := r.logger.With("tool", spec.Tool.String(), "label", spec.Label())

	path, err := r.resolver.Resolve(spec.Tool)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	if ctx.Err() != nil {
		log.Debug("not launching, already cancelled")
		return Result{ExitCode: -1, Terminated: true}, nil
	}

	cmd := exec.CommandContext(ctx, path, spec.Args...)
	cmd.Dir = spec.Dir
	isolated := spec.Output != OutputWindow
	if isolated {
		isolate(cmd)
	}
	// killed is set only when the signal reached a live process, so a tool
	// that exits on its own while ctx is being cancelled keeps its exit code.
	var killed atomic.Bool
	cmd.Cancel = func() error {
		err := terminate(cmd.Process, isolated)
		if !errors.Is(err, os.ErrProcessDone) {
			killed.Store(true)
		}
		return err
	}
	cmd.WaitDelay = r.gracePeriod()

	var result Result
	var flush func()
	switch spec.Output {
	case OutputWindow:
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	case OutputConsole:
		pw := newPrefixWriter(r.consoleWriter(), "["+spec.Label()+"] ")
		cmd.Stdout, cmd.Stderr = pw, pw
		flush = pw.Flush
	case OutputLogFile:
		f, logPath, err := r.openLog(spec)
		if err != nil {
			return Result{ExitCode: -1}, err
		}
		defer func() { _ = f.Close() }()
		cmd.Stdout, cmd.Stderr = f, f
		result.LogPath = logPath
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return Result{ExitCode: -1}, errors.NewMissingExecutable(spec.Tool.String(), path).WithCause(err)
		}
		if ctx.Err() != nil {
			return Result{ExitCode: -1, Terminated: true}, nil
		}
		return Result{ExitCode: -1}, fmt.Errorf("%w: %s: %w", errors.ErrLaunchFailed, path, err)
	}
	result.PID = cmd.Process.Pid
	log.Info("tool started", "pid", result.PID, "args", spec.Args, "priority", spec.Priority.String())

	if spec.Priority == PriorityLow {
		if err := lowerPriority(result.PID); err != nil {
			log.Warn("failed to lower process priority", "pid", result.PID, "error", err)
		}
	}

	waitErr := cmd.Wait()
	result.Duration = time.Since(start)
	if flush != nil {
		flush()
	}

	result.ExitCode = -1
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if wasTerminated(killed.Load(), waitErr, result.ExitCode) {
		result.Terminated = true
		// Children the tool spawned share its process group.
		if isolated {
			killGroup(result.PID)
		}
	}

	log.Info("tool exited",
		"pid", result.PID,
		"exit_code", result.ExitCode,
		"terminated", result.Terminated,
		"duration_ms", result.Duration.Milliseconds(),
	)

	var exitErr *exec.ExitError
	if waitErr != nil && !result.Terminated && !errors.As(waitErr, &exitErr) {
		return result, fmt.Errorf("waiting for %s: %w", spec.Label(), waitErr)
	}
	return result, nil
}

// wasTerminated reports whether a finished process counts as killed by
// cancellation. A tool that handled the signal and still exited zero did
// not fail.
func wasTerminated(killed bool, waitErr error, exitCode int) bool {
	return killed && (waitErr != nil || exitCode != 0)
}

func (r *ExecRunner) openLog(spec Spec) (*os.File, string, error) {
	dir := r.logDir
	if dir == "" {
		dir = spec.Dir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create log directory: %w", err)
	}
	name := spec.LogName
	if name == "" {
		name = spec.Tool.String()
	}
	path := logging.ToolLogPath(dir, name, spec.LogIndex)
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create tool log: %w", err)
	}
	return f, path, nil
}
