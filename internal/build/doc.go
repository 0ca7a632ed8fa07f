// Package build runs toolkit operations: lightmap bakes, with their
// multi-instance fan-out and merge, and the single-step import and
// packaging operations.
//
// # Lightmap bakes
//
// [Orchestrator.BuildLightmap] walks a small state machine:
//
//	Idle → Dispatching → SingleStep | FanOut → [Merging] → Completed | Failed | Cancelled
//
// Every transition is published on the event bus as an event.BuildStateEvent
// and every tool invocation as a pair of step events.
//
// A single-instance bake cannot be cancelled once dispatched. A fan-out runs
// one goroutine per worker and joins all of them before deciding whether to
// merge; a worker failure stops the merge but not its running siblings.
//
// # Progress
//
// All operations report through a [progress.Tracker]. Callers that want to
// observe or cancel an operation pass their own tracker; nil makes the
// orchestrator use a private one.
//
// # Toolkit variants
//
// Command verbs, argument order, the fast tool and the legacy startup delay
// all come from the profile's toolkit.Variant. The orchestrator itself has
// no per-variant code.
package build
