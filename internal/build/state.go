package build

import (
	"time"

	"github.com/Iron-Ham/launchkit/internal/process"
)

// State is a phase of a build operation.
type State int

const (
	StateIdle State = iota
	StateDispatching
	StateSingleStep
	StateFanOut
	StateMerging
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateSingleStep:
		return "single_step"
	case StateFanOut:
		return "fan_out"
	case StateMerging:
		return "merging"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// WorkerTask is one tool invocation of an operation and what became of it.
type WorkerTask struct {
	// Index is the fan-out worker index, or process.NoIndex for sequential
	// steps and the merge.
	Index int
	// Step names the invocation in logs and errors ("worker", "merge", ...).
	Step string
	Spec process.Spec
	// Result is nil until the process has exited, and stays nil when the
	// task was never launched.
	Result *process.Result
	// Err is set when the process could not be launched.
	Err error
}

// Launched reports whether a process ran for this task.
func (t WorkerTask) Launched() bool {
	return t.Result != nil && t.Result.PID != 0
}

// Succeeded reports whether the task ran and exited zero.
func (t WorkerTask) Succeeded() bool {
	return t.Err == nil && t.Result != nil && !t.Result.Failed()
}

// Outcome is the record of one finished operation.
type Outcome struct {
	Operation string
	State     State
	// Instances is the worker count actually used after clamping.
	Instances int
	// Steps holds sequential invocations, including the lone SingleStep
	// lightmap invocation.
	Steps []WorkerTask
	// Workers holds fan-out workers ordered by index.
	Workers []WorkerTask
	// Merge is nil unless the merge step was attempted.
	Merge *WorkerTask
	// Reason is the first recorded cancellation reason, if any.
	Reason   string
	Duration time.Duration
}

// Succeeded reports whether the operation completed.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.State == StateCompleted
}
