// Package event provides a pub-sub event bus that decouples the build
// orchestrator from whoever is watching it (the terminal progress view, the
// launcher log, tests).
//
// # Event Categories
//
// Build lifecycle:
//   - [BuildStateEvent]: every orchestrator state transition
//   - [BuildCompletedEvent]: the terminal state of an operation
//
// Steps:
//   - [StepStartedEvent]: a tool process is about to launch
//   - [StepFinishedEvent]: a tool process exited, or was never launched
//
// Tool output:
//   - [ToolOutputEvent]: a line appended to a tool log file
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Fan-out workers publish from their own
// goroutines and handlers run synchronously on the publisher's goroutine, so
// handlers must tolerate concurrent calls. A panicking handler is logged and
// does not stop delivery to the others.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeStepFinished, func(e event.Event) {
//	    done := e.(event.StepFinishedEvent)
//	    log.Printf("%s worker %d exited %d", done.Operation, done.Worker, done.ExitCode)
//	})
package event
