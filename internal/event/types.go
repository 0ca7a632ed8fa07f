package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "build.state", "step.finished")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeBuildState     = "build.state"
	TypeBuildCompleted = "build.completed"
	TypeStepStarted    = "step.started"
	TypeStepFinished   = "step.finished"
	TypeToolOutput     = "tool.output"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Build Lifecycle Events
// -----------------------------------------------------------------------------

// BuildStateEvent is emitted on every orchestrator state transition.
type BuildStateEvent struct {
	baseEvent
	Operation string // Logical operation, e.g. "lightmaps_dam"
	From      string
	To        string
}

// NewBuildStateEvent creates a BuildStateEvent.
func NewBuildStateEvent(operation, from, to string) BuildStateEvent {
	return BuildStateEvent{
		baseEvent: newBaseEvent(TypeBuildState),
		Operation: operation,
		From:      from,
		To:        to,
	}
}

// BuildCompletedEvent is emitted once when an operation reaches a terminal
// state.
type BuildCompletedEvent struct {
	baseEvent
	Operation string
	State     string // "completed", "failed" or "cancelled"
	Reason    string // Cancellation reason, if any
	Error     string // Error message, empty on success
	Duration  time.Duration
}

// NewBuildCompletedEvent creates a BuildCompletedEvent.
func NewBuildCompletedEvent(operation, state, reason string, err error, duration time.Duration) BuildCompletedEvent {
	e := BuildCompletedEvent{
		baseEvent: newBaseEvent(TypeBuildCompleted),
		Operation: operation,
		State:     state,
		Reason:    reason,
		Duration:  duration,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// -----------------------------------------------------------------------------
// Step Events
// -----------------------------------------------------------------------------

// StepStartedEvent is emitted right before a tool process is launched.
type StepStartedEvent struct {
	baseEvent
	Operation string
	Step      string // "single", "worker", "merge", "structure", ...
	Worker    int    // Worker index, -1 when the step has none
	Args      []string
}

// NewStepStartedEvent creates a StepStartedEvent.
func NewStepStartedEvent(operation, step string, worker int, args []string) StepStartedEvent {
	return StepStartedEvent{
		baseEvent: newBaseEvent(TypeStepStarted),
		Operation: operation,
		Step:      step,
		Worker:    worker,
		Args:      args,
	}
}

// StepFinishedEvent is emitted after a tool process has exited, or when it
// could not be launched at all.
type StepFinishedEvent struct {
	baseEvent
	Operation  string
	Step       string
	Worker     int
	ExitCode   int
	Terminated bool
	Skipped    bool   // Never launched because the operation was cancelled
	LogPath    string // Captured output, if redirected
	Error      string // Launch error, if any
	Duration   time.Duration
}

// Success reports whether the step ran and exited zero.
func (e StepFinishedEvent) Success() bool {
	return e.Error == "" && !e.Skipped && !e.Terminated && e.ExitCode == 0
}

// NewStepFinishedEvent creates a StepFinishedEvent.
func NewStepFinishedEvent(operation, step string, worker int) StepFinishedEvent {
	return StepFinishedEvent{
		baseEvent: newBaseEvent(TypeStepFinished),
		Operation: operation,
		Step:      step,
		Worker:    worker,
	}
}

// -----------------------------------------------------------------------------
// Tool Output Events
// -----------------------------------------------------------------------------

// ToolOutputEvent carries one line appended to a tool log file.
type ToolOutputEvent struct {
	baseEvent
	Path   string
	Name   string // Log name without worker suffix
	Worker int    // -1 when the log has no worker suffix
	Line   string
}

// NewToolOutputEvent creates a ToolOutputEvent.
func NewToolOutputEvent(path, name string, worker int, line string) ToolOutputEvent {
	return ToolOutputEvent{
		baseEvent: newBaseEvent(TypeToolOutput),
		Path:      path,
		Name:      name,
		Worker:    worker,
		Line:      line,
	}
}
