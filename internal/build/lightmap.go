package build

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/logging"
	"github.com/Iron-Ham/launchkit/internal/process"
	"github.com/Iron-Ham/launchkit/internal/progress"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
)

// Status texts shown while a lightmap bake runs.
const (
	StatusDelaying = "Delaying launch of zeroth instance"
	StatusMerging  = "Merging output"
)

// StatusRunning returns the status text for a fan-out of n workers.
func StatusRunning(n int) string {
	return fmt.Sprintf("Running %d instances", n)
}

// LightmapRequest describes one lightmap bake.
type LightmapRequest struct {
	Scenario string
	BSP      string
	Quality  string
	// Instances is the requested worker count. Values below one mean one,
	// and variants without multi-instance support always get one.
	Instances int
	// NoAssert selects the assert-free tool build where the variant has one.
	NoAssert bool
	Output   process.OutputMode
}

// Operation returns the operation name, which is also the tool log base
// name: "lightmaps_" followed by the scenario file's base name.
func (r LightmapRequest) Operation() string {
	return OperationName(OpLightmaps, r.Scenario)
}

func (r LightmapRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Scenario) == "":
		return errors.NewValidationError("scenario is required").WithField("scenario")
	case strings.TrimSpace(r.BSP) == "":
		return errors.NewValidationError("bsp is required").WithField("bsp")
	case strings.TrimSpace(r.Quality) == "":
		return errors.NewValidationError("quality is required").WithField("quality")
	}
	return nil
}

// baseName strips directories (either separator) and the extension.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return strings.TrimSuffix(p, path.Ext(p))
}

// BuildLightmap bakes lightmaps for one BSP of a scenario.
//
// With one instance the bake is a single uncancellable invocation. With N > 1
// instances, N workers run concurrently and, once all of them have finished
// and none failed, a single merge invocation consolidates their output. tr
// receives N+1 units of work in that case, or 1 otherwise. A nil tr makes
// BuildLightmap track progress privately.
//
// A worker that fails cancels tr with the reason
// "tool worker <i> has failed - exit code <c>". That prevents the merge and
// ends a startup delay still in progress, but every other worker is launched
// and runs to its natural end. A cancel request through tr for any other
// reason, or through ctx, terminates running workers. That holds even after
// a worker failure, when tr keeps the failure as its reason and Cancel
// returns false.
//
// The returned Outcome is nil only when req is invalid. The error is a
// *errors.BuildError (cancellation included), a
// *errors.MissingExecutableError or a launch failure.
func (o *Orchestrator) BuildLightmap(ctx context.Context, req LightmapRequest, tr *progress.Tracker) (*Outcome, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	tr, release := o.tracker(ctx, tr)
	defer release()

	r := o.newRun(req.Operation(), tr)
	return r.lightmap(ctx, req)
}

func (r *run) lightmap(ctx context.Context, req LightmapRequest) (*Outcome, error) {
	r.transition(StateDispatching)

	variant := r.o.profile.Variant
	n := clampInstances(req.Instances, variant, r.log)
	r.outcome.Instances = n
	tool := variant.LightmapTool(req.NoAssert)

	r.log.Info("dispatching lightmaps",
		"scenario", req.Scenario,
		"bsp", req.BSP,
		"quality", req.Quality,
		"instances", n,
		"variant", variant.Name,
		"tool", tool.String(),
	)

	if n == 1 {
		args := variant.LightmapArgs(req.Scenario, req.BSP, req.Quality)
		return r.sequence([]WorkerTask{{
			Index: process.NoIndex,
			Step:  stepSingle,
			Spec:  r.o.spec(tool, args, req.Output, r.outcome.Operation, process.NoIndex),
		}})
	}
	return r.fanOut(ctx, req, n, tool)
}

func clampInstances(requested int, v toolkit.Variant, log *logging.Logger) int {
	if requested <= 0 {
		return 1
	}
	if requested > 1 && !v.MultiInstance {
		log.Warn("variant does not support multiple instances, using one",
			"variant", v.Name, "requested", requested)
		return 1
	}
	return requested
}

func (r *run) fanOut(ctx context.Context, req LightmapRequest, n int, tool toolkit.ToolType) (*Outcome, error) {
	tr := r.tracker
	variant := r.o.profile.Variant
	op := r.outcome.Operation

	if ctx.Err() != nil {
		tr.Cancel(progress.ReasonInterrupted)
	}
	if tr.IsCancelled() {
		return r.finish(StateCancelled, errors.NewCancelledError(stepWorker, tr.Reason()))
	}

	tr.IncreaseMax(n + 1)
	r.transition(StateFanOut)
	tr.SetStatus(StatusRunning(n))

	ws := newWorkerSet(ctx, tr)
	tasks := make([]WorkerTask, n)
	var wg conc.WaitGroup
	for i := n - 1; i >= 0; i-- {
		args := variant.WorkerArgs(req.Scenario, req.BSP, req.Quality, i, n)
		tasks[i] = WorkerTask{
			Index: i,
			Step:  stepWorker,
			Spec:  r.o.spec(tool, args, req.Output, op, i),
		}
		delayed := i == 0 && variant.HasStartupDelay()
		if delayed {
			tasks[i].Spec.Priority = process.PriorityLow
		}

		task := &tasks[i]
		wg.Go(func() {
			if delayed {
				tr.SetStatus(StatusDelaying)
				r.log.WithWorker(task.Index).Info("delaying launch", "delay", variant.StartupDelay.String())
				if err := r.o.delay(tr.Context(), variant.StartupDelay); err != nil || tr.IsCancelled() {
					r.skip(task)
					return
				}
				tr.SetStatus(StatusRunning(n))
			}
			// A failed sibling does not stop the launch; only an outside
			// cancellation does.
			if ws.ctx.Err() != nil {
				r.skip(task)
				return
			}
			r.invoke(ws.ctx, task)
			switch {
			case task.Succeeded():
				tr.Report(1)
			case task.Result != nil && task.Result.Terminated:
				// Killed by an external cancellation already on record.
			default:
				ws.fail(task)
			}
		})
	}
	wg.Wait()
	ws.stop()
	r.outcome.Workers = tasks

	if tr.IsCancelled() {
		state, err := fanOutError(tasks, tr.Reason())
		return r.finish(state, err)
	}

	tr.DisableCancellation()
	if tr.IsCancelled() {
		state, err := fanOutError(tasks, tr.Reason())
		return r.finish(state, err)
	}

	r.transition(StateMerging)
	tr.SetStatus(StatusMerging)
	merge := WorkerTask{
		Index: process.NoIndex,
		Step:  stepMerge,
		Spec:  r.o.spec(tool, variant.MergeArgs(req.Scenario, req.BSP, n), req.Output, op, process.NoIndex),
	}
	r.invoke(tr.Context(), &merge)
	r.outcome.Merge = &merge

	if merge.Err != nil {
		return r.finish(StateFailed, merge.Err)
	}
	if merge.Result.Failed() {
		return r.finish(StateFailed, errors.NewMergeError(stepMerge, merge.Result.ExitCode))
	}
	tr.Report(1)
	return r.finish(StateCompleted, nil)
}

// fanOutError picks the error that explains a fan-out that ended cancelled.
// Launch failures come first, then the lowest-index worker that exited
// non-zero on its own. Anything else was an external cancellation.
func fanOutError(tasks []WorkerTask, reason string) (State, error) {
	for _, t := range tasks {
		var missing *errors.MissingExecutableError
		if errors.As(t.Err, &missing) {
			return StateFailed, t.Err
		}
	}
	for _, t := range tasks {
		if t.Err != nil {
			return StateFailed, t.Err
		}
	}
	for _, t := range tasks {
		if t.Launched() && !t.Result.Terminated && t.Result.ExitCode != 0 {
			return StateFailed, errors.NewToolExecutionError(t.Step, t.Result.ExitCode).
				WithWorkerIndex(t.Index).
				WithReason(reason)
		}
	}
	return StateCancelled, errors.NewCancelledError(stepWorker, reason)
}

// workerSet is the cancellation scope of running fan-out workers. It is
// cancelled by any cancel request made from outside, including one that
// arrives after a worker failure already cancelled the tracker, but not by
// the failure itself.
type workerSet struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	tr     *progress.Tracker

	mu       sync.Mutex
	failures map[string]bool
	remove   func()
	stopCtx  func() bool
}

func newWorkerSet(parent context.Context, tr *progress.Tracker) *workerSet {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	ws := &workerSet{
		ctx:      ctx,
		cancel:   cancel,
		tr:       tr,
		failures: make(map[string]bool),
	}
	ws.remove = tr.OnCancelRequest(ws.request)
	ws.stopCtx = context.AfterFunc(parent, func() {
		tr.Cancel(progress.ReasonInterrupted)
		cancel(context.Cause(parent))
	})
	// A request that landed before the hook was registered.
	if tr.IsCancelled() {
		ws.request(tr.Reason())
	}
	return ws
}

func (ws *workerSet) request(reason string) {
	if !ws.isFailure(reason) {
		ws.cancel(&progress.CancelledError{Reason: reason})
	}
}

// fail records task's failure as the cancellation reason of the operation.
func (ws *workerSet) fail(task *WorkerTask) {
	reason := failureReason(task)
	ws.mu.Lock()
	ws.failures[reason] = true
	ws.mu.Unlock()
	ws.tr.Cancel(reason)
}

func (ws *workerSet) isFailure(reason string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.failures[reason]
}

func (ws *workerSet) stop() {
	ws.remove()
	ws.stopCtx()
	ws.cancel(context.Canceled)
}

func failureReason(task *WorkerTask) string {
	if task.Err != nil {
		return fmt.Sprintf("tool worker %d could not be launched - %v", task.Index, task.Err)
	}
	return fmt.Sprintf("tool worker %d has failed - exit code %d", task.Index, task.Result.ExitCode)
}
