package build

import (
	"context"
	"time"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/event"
	"github.com/Iron-Ham/launchkit/internal/logging"
	"github.com/Iron-Ham/launchkit/internal/process"
	"github.com/Iron-Ham/launchkit/internal/progress"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
)

// Step names as they appear in logs and events.
const (
	stepSingle    = "single"
	stepWorker    = "worker"
	stepMerge     = "merge"
	stepStructure = "structure"
	stepCache     = "cache"
	stepBitmaps   = "bitmaps"
	stepStrings   = "strings"
	stepSound     = "sound"
)

// DelayFunc blocks for d or until ctx is done, returning the context's cause
// in the latter case.
type DelayFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default DelayFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Orchestrator runs build operations against one toolchain profile.
// It holds no per-operation state and may run several operations at once.
type Orchestrator struct {
	runner  process.Runner
	profile toolkit.Profile
	logger  *logging.Logger
	bus     *event.Bus
	delay   DelayFunc
	output  process.OutputMode
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBus publishes state and step events to bus.
func WithBus(bus *event.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithDelay replaces the function used for the legacy startup delay.
func WithDelay(fn DelayFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.delay = fn
		}
	}
}

// WithOutput sets the output mode of steps other than lightmap baking, which
// carries its own in LightmapRequest.
func WithOutput(mode process.OutputMode) Option {
	return func(o *Orchestrator) { o.output = mode }
}

// New creates an Orchestrator that launches tools through runner using the
// verbs and policies of profile's variant.
func New(runner process.Runner, profile toolkit.Profile, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:  runner,
		profile: profile,
		logger:  logging.NopLogger(),
		delay:   Sleep,
		output:  process.OutputWindow,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Profile returns the toolchain profile the orchestrator was built with.
func (o *Orchestrator) Profile() toolkit.Profile {
	return o.profile
}

// tracker returns tr, or a fresh Tracker derived from ctx together with the
// function that releases it.
func (o *Orchestrator) tracker(ctx context.Context, tr *progress.Tracker) (*progress.Tracker, func()) {
	if tr != nil {
		return tr, func() {}
	}
	tr = progress.New(ctx)
	return tr, tr.Close
}

func (o *Orchestrator) spec(tool toolkit.ToolType, args []string, output process.OutputMode, logName string, index int) process.Spec {
	return process.Spec{
		Tool:     tool,
		Args:     args,
		Dir:      o.profile.WorkDir(),
		Output:   output,
		LogName:  logName,
		LogIndex: index,
	}
}

// run is the state of one operation.
type run struct {
	o       *Orchestrator
	tracker *progress.Tracker
	log     *logging.Logger
	outcome *Outcome
	start   time.Time
}

func (o *Orchestrator) newRun(operation string, tr *progress.Tracker) *run {
	return &run{
		o:       o,
		tracker: tr,
		log:     o.logger.WithOperation(operation),
		outcome: &Outcome{Operation: operation, State: StateIdle},
		start:   time.Now(),
	}
}

func (r *run) transition(to State) {
	from := r.outcome.State
	if from.Terminal() {
		r.log.Warn("state transition after terminal state ignored", "from", from.String(), "to", to.String())
		return
	}
	r.outcome.State = to
	r.log.Debug("state transition", "from", from.String(), "to", to.String())
	r.o.bus.Publish(event.NewBuildStateEvent(r.outcome.Operation, from.String(), to.String()))
}

// finish records the terminal state and returns the outcome with err.
func (r *run) finish(state State, err error) (*Outcome, error) {
	r.transition(state)
	r.outcome.Reason = r.tracker.Reason()
	r.outcome.Duration = time.Since(r.start)

	switch state {
	case StateCompleted:
		r.log.Info("build completed", "duration_ms", r.outcome.Duration.Milliseconds())
	case StateCancelled:
		r.log.Info("build cancelled", "reason", r.outcome.Reason)
	default:
		r.log.Error("build failed", "error", err.Error(), "reason", r.outcome.Reason)
	}
	r.o.bus.Publish(event.NewBuildCompletedEvent(
		r.outcome.Operation, state.String(), r.outcome.Reason, err, r.outcome.Duration,
	))
	return r.outcome, err
}

// invoke runs task.Spec to completion and fills in task.Result or task.Err.
func (r *run) invoke(ctx context.Context, task *WorkerTask) {
	log := r.log.WithStep(task.Step)
	if task.Index >= 0 {
		log = log.WithWorker(task.Index)
	}
	r.o.bus.Publish(event.NewStepStartedEvent(r.outcome.Operation, task.Step, task.Index, task.Spec.Args))

	res, err := r.o.runner.Run(ctx, task.Spec)
	done := event.NewStepFinishedEvent(r.outcome.Operation, task.Step, task.Index)
	if err != nil {
		task.Err = err
		done.Error = err.Error()
		log.Error("tool could not be launched", "error", err.Error())
	} else {
		task.Result = &res
		done.ExitCode = res.ExitCode
		done.Terminated = res.Terminated
		done.LogPath = res.LogPath
		done.Duration = res.Duration
		if res.Failed() {
			log.Warn("tool failed", "exit_code", res.ExitCode, "terminated", res.Terminated, "log", res.LogPath)
		}
	}
	r.o.bus.Publish(done)
}

// skip records a task that was never launched because the operation was
// cancelled.
func (r *run) skip(task *WorkerTask) {
	r.log.WithStep(task.Step).WithWorker(task.Index).Info("not launched", "reason", r.tracker.Reason())
	done := event.NewStepFinishedEvent(r.outcome.Operation, task.Step, task.Index)
	done.Skipped = true
	r.o.bus.Publish(done)
}

// taskError classifies a finished sequential task. A nil error means the
// task succeeded.
func taskError(task WorkerTask, reason string) error {
	if task.Err != nil {
		return task.Err
	}
	if task.Result == nil || task.Result.Terminated {
		return errors.NewCancelledError(task.Step, reason)
	}
	if task.Result.ExitCode != 0 {
		e := errors.NewToolExecutionError(task.Step, task.Result.ExitCode)
		if task.Index >= 0 {
			e = e.WithWorkerIndex(task.Index)
		}
		return e
	}
	return nil
}

// sequence runs tasks one after another as a single uncancellable step,
// accounting one progress unit per task. It stops at the first failure.
func (r *run) sequence(tasks []WorkerTask) (*Outcome, error) {
	tr := r.tracker
	tr.DisableCancellation()
	if tr.IsCancelled() {
		return r.finish(StateCancelled, errors.NewCancelledError(tasks[0].Step, tr.Reason()))
	}
	tr.IncreaseMax(len(tasks))
	r.transition(StateSingleStep)

	for i := range tasks {
		task := tasks[i]
		r.invoke(tr.Context(), &task)
		r.outcome.Steps = append(r.outcome.Steps, task)

		if err := taskError(task, tr.Reason()); err != nil {
			if errors.IsCancellation(err) {
				return r.finish(StateCancelled, err)
			}
			return r.finish(StateFailed, err)
		}
		tr.Report(1)
	}
	return r.finish(StateCompleted, nil)
}
