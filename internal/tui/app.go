package tui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/Iron-Ham/launchkit/internal/event"
	"github.com/Iron-Ham/launchkit/internal/progress"
)

// Options configures how an operation's progress is shown.
type Options struct {
	Title   string
	Tracker *progress.Tracker
	Bus     *event.Bus
	Output  io.Writer
	Input   io.Reader
	// Interactive selects the live view. Use IsTerminal to decide.
	Interactive bool
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Run runs op in its own goroutine and shows its progress until it returns.
// It returns op's error. In interactive mode ctrl+c cancels the tracker
// instead of interrupting the launcher.
func Run(opts Options, op func() error) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if !opts.Interactive {
		return runPlain(opts, op)
	}
	return runLive(opts, op)
}

func runLive(opts Options, op func() error) error {
	model := NewModel(opts.Title, opts.Tracker)
	progOpts := []tea.ProgramOption{tea.WithOutput(opts.Output)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	program := tea.NewProgram(model, progOpts...)

	opts.Tracker.Subscribe(func(s progress.Snapshot) {
		program.Send(SnapshotMsg(s))
	})
	var subID string
	if opts.Bus != nil {
		subID = opts.Bus.SubscribeAll(func(e event.Event) {
			program.Send(EventMsg{Event: e})
		})
		defer opts.Bus.Unsubscribe(subID)
	}

	var opErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		opErr = op()
		program.Send(DoneMsg{Err: opErr})
	}()

	if _, err := program.Run(); err != nil {
		// The view is gone; the operation still has to finish.
		opts.Tracker.Cancel(progress.ReasonInterrupted)
		<-done
		if opErr == nil {
			return fmt.Errorf("progress view: %w", err)
		}
		return opErr
	}
	<-done
	return opErr
}

// runPlain prints one line per status change and step, for logs and pipes.
func runPlain(opts Options, op func() error) error {
	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(opts.Output, format, args...)
	}

	lastStatus := ""
	opts.Tracker.Subscribe(func(s progress.Snapshot) {
		mu.Lock()
		changed := s.Status != lastStatus
		lastStatus = s.Status
		mu.Unlock()
		if changed && s.Status != "" {
			printf("[%d/%d] %s\n", s.Current, s.Max, s.Status)
		}
	})

	if opts.Bus != nil {
		id := opts.Bus.Subscribe(event.TypeStepFinished, func(e event.Event) {
			printf("%s\n", describeStep(e.(event.StepFinishedEvent)))
		})
		defer opts.Bus.Unsubscribe(id)
	}

	printf("%s\n", opts.Title)
	err := op()
	snap := opts.Tracker.Snapshot()
	switch {
	case err == nil:
		printf("[%d/%d] completed\n", snap.Current, snap.Max)
	case snap.Cancelled:
		printf("[%d/%d] cancelled: %s\n", snap.Current, snap.Max, snap.Reason)
	default:
		printf("[%d/%d] failed: %v\n", snap.Current, snap.Max, err)
	}
	return err
}

func describeStep(e event.StepFinishedEvent) string {
	name := e.Step
	if e.Worker >= 0 {
		name = fmt.Sprintf("%s %d", e.Step, e.Worker)
	}
	switch {
	case e.Skipped:
		return name + ": not launched"
	case e.Error != "":
		return name + ": " + e.Error
	case e.Terminated:
		return name + ": terminated"
	case e.ExitCode != 0:
		return fmt.Sprintf("%s: exit code %d", name, e.ExitCode)
	default:
		return fmt.Sprintf("%s: done in %s", name, e.Duration.Round(time.Millisecond))
	}
}
