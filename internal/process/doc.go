// Package process launches toolchain executables.
//
// A [Spec] names the tool by its [toolkit.ToolType], never by a free-form
// path; the [ExecRunner] resolves it through the active profile at run time.
// Each Run call owns exactly one OS process and does not return until that
// process has exited, so callers can join on Run to know a tool is gone.
//
// Cancellation is driven by the context passed to Run. On unix, tools that do
// not write to the terminal are started in their own process group; a
// cancelled context sends SIGTERM to the group, the process is killed after
// the grace period, and any stragglers in the group are killed afterwards.
package process
