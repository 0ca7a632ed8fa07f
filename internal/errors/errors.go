// Package errors provides centralized error definitions and error handling utilities
// for launchkit. It defines sentinel errors, typed build and toolkit errors with
// context builders, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - MissingExecutableError: a toolchain binary could not be located on disk
//   - BuildError: a build step failed, was cancelled, or could not be merged
//   - ProfileError: a toolkit profile or variant is unusable
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewMissingExecutable("tool", "/opt/h2ek/tool.exe")
//	err := errors.NewToolExecutionError("lightmaps-farm-worker", 2).WithWorkerIndex(1)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrToolExecution) { ... }
//
//	var buildErr *errors.BuildError
//	if errors.As(err, &buildErr) && buildErr.Kind == errors.KindMerge { ... }
//
//	if errors.IsCancellation(err) { ... }
//
// # Error Classification
//
// None of the build errors are retryable: toolchain binaries are not safe to
// re-run blindly, so IsRetryable reports false for every error in this package.
// GetSeverity separates a requested stop (SeverityInfo) from a failure, and
// IsUserFacing marks the errors whose message is meant for the terminal.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Build-related sentinel errors
var (
	// ErrMissingExecutable indicates that a toolchain binary does not exist on disk.
	ErrMissingExecutable = New("toolchain executable not found")
	// ErrToolExecution indicates that a tool process exited with a non-zero code.
	ErrToolExecution = New("tool execution failed")
	// ErrMergeFailed indicates that every worker succeeded but the merge step failed.
	ErrMergeFailed = New("merge step failed")
	// ErrCancelled indicates that a build was cancelled before producing an artifact.
	ErrCancelled = New("build cancelled")
	// ErrLaunchFailed indicates that the operating system refused to start a process.
	ErrLaunchFailed = New("process launch failed")
)

// Toolkit-related sentinel errors
var (
	// ErrProfileNotFound indicates that the requested toolkit profile is not configured.
	ErrProfileNotFound = New("profile not found")
	// ErrUnknownVariant indicates that a profile names a variant that is not registered.
	ErrUnknownVariant = New("unknown toolkit variant")
	// ErrUnsupportedTool indicates that a profile has no path for the requested tool.
	ErrUnsupportedTool = New("tool not configured for profile")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LaunchkitError is the base interface for all launchkit errors.
type LaunchkitError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// MissingExecutableError is returned when a toolchain binary cannot be
// located. It is fatal for the current operation and never retried.
//
// Example:
//
//	err := errors.NewMissingExecutable("tool", "/opt/h2ek/tool.exe")
//	fmt.Println(err) // "missing executable [tool=tool]: /opt/h2ek/tool.exe: toolchain executable not found"
type MissingExecutableError struct {
	baseError
	Tool string
	Path string
}

// NewMissingExecutable creates a new MissingExecutableError.
func NewMissingExecutable(tool, path string) *MissingExecutableError {
	return &MissingExecutableError{
		baseError: baseError{
			message:    path,
			cause:      ErrMissingExecutable,
			severity:   SeverityCritical,
			userFacing: true,
		},
		Tool: tool,
		Path: path,
	}
}

// WithCause replaces the underlying cause while keeping ErrMissingExecutable matchable.
func (e *MissingExecutableError) WithCause(cause error) *MissingExecutableError {
	e.cause = Join(ErrMissingExecutable, cause)
	return e
}

// Error returns the formatted error message.
func (e *MissingExecutableError) Error() string {
	prefix := "missing executable"
	if e.Tool != "" {
		prefix = fmt.Sprintf("missing executable [tool=%s]", e.Tool)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Path, ErrMissingExecutable)
}

// Is checks if this error matches the target.
func (e *MissingExecutableError) Is(target error) bool {
	if _, ok := target.(*MissingExecutableError); ok {
		return true
	}
	if target == ErrMissingExecutable {
		return true
	}
	return e.baseError.Is(target)
}

// BuildErrorKind classifies a BuildError.
type BuildErrorKind int

const (
	// KindToolExecution is a worker or single-step process that exited non-zero.
	KindToolExecution BuildErrorKind = iota
	// KindMerge is a merge process that exited non-zero after all workers succeeded.
	KindMerge
	// KindCancelled is a build that stopped because cancellation was requested.
	KindCancelled
)

// String returns the string representation of the kind.
func (k BuildErrorKind) String() string {
	switch k {
	case KindToolExecution:
		return "tool_execution"
	case KindMerge:
		return "merge"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// BuildError describes the terminal failure or cancellation of a build step.
//
// Example:
//
//	err := errors.NewToolExecutionError("lightmaps-farm-worker", 2).WithWorkerIndex(1)
//	fmt.Println(err) // "build error [step=lightmaps-farm-worker, worker=1, exit=2]: tool execution failed"
type BuildError struct {
	baseError
	Kind        BuildErrorKind
	Step        string
	WorkerIndex int
	ExitCode    int
	Reason      string
}

func newBuildError(kind BuildErrorKind, step string, sentinel error, severity Severity) *BuildError {
	return &BuildError{
		baseError: baseError{
			message:    sentinel.Error(),
			cause:      sentinel,
			severity:   severity,
			userFacing: true,
		},
		Kind:        kind,
		Step:        step,
		WorkerIndex: -1, // -1 indicates not set
	}
}

// NewToolExecutionError creates a BuildError for a process that exited non-zero.
func NewToolExecutionError(step string, exitCode int) *BuildError {
	e := newBuildError(KindToolExecution, step, ErrToolExecution, SeverityError)
	e.ExitCode = exitCode
	return e
}

// NewMergeError creates a BuildError for a failed merge step.
func NewMergeError(step string, exitCode int) *BuildError {
	e := newBuildError(KindMerge, step, ErrMergeFailed, SeverityError)
	e.ExitCode = exitCode
	return e
}

// NewCancelledError creates a BuildError for a cancelled build.
// Cancellation is a terminal outcome rather than a failure, so it carries
// SeverityInfo.
func NewCancelledError(step, reason string) *BuildError {
	e := newBuildError(KindCancelled, step, ErrCancelled, SeverityInfo)
	e.Reason = reason
	return e
}

// WithWorkerIndex adds the failing worker index to the error context.
func (e *BuildError) WithWorkerIndex(idx int) *BuildError {
	e.WorkerIndex = idx
	return e
}

// WithReason records the first cancellation reason.
func (e *BuildError) WithReason(reason string) *BuildError {
	e.Reason = reason
	return e
}

// WithCause chains an underlying error behind the kind's sentinel.
func (e *BuildError) WithCause(cause error) *BuildError {
	e.cause = Join(e.cause, cause)
	return e
}

// Error returns the formatted error message.
func (e *BuildError) Error() string {
	var parts []string
	if e.Step != "" {
		parts = append(parts, fmt.Sprintf("step=%s", e.Step))
	}
	if e.WorkerIndex >= 0 {
		parts = append(parts, fmt.Sprintf("worker=%d", e.WorkerIndex))
	}
	if e.Kind != KindCancelled {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}

	prefix := "build error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("build error [%s]", strings.Join(parts, ", "))
	}

	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", prefix, e.message, e.Reason)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *BuildError) Is(target error) bool {
	if _, ok := target.(*BuildError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ProfileError represents errors resolving a toolkit profile or variant.
//
// Example:
//
//	err := errors.NewProfileError("cannot resolve tool", errors.ErrUnsupportedTool).WithProfile("mcc")
type ProfileError struct {
	baseError
	Profile string
	Variant string
}

// NewProfileError creates a new ProfileError.
func NewProfileError(message string, cause error) *ProfileError {
	return &ProfileError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithProfile adds a profile name to the error context.
func (e *ProfileError) WithProfile(name string) *ProfileError {
	e.Profile = name
	return e
}

// WithVariant adds a variant name to the error context.
func (e *ProfileError) WithVariant(name string) *ProfileError {
	e.Variant = name
	return e
}

// Error returns the formatted error message.
func (e *ProfileError) Error() string {
	var parts []string
	if e.Profile != "" {
		parts = append(parts, fmt.Sprintf("profile=%s", e.Profile))
	}
	if e.Variant != "" {
		parts = append(parts, fmt.Sprintf("variant=%s", e.Variant))
	}

	prefix := "profile error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("profile error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ProfileError) Is(target error) bool {
	if _, ok := target.(*ProfileError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("profile", "mcc")
//	fmt.Println(err) // "profile 'mcc' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("scenario path cannot be empty").WithField("scenario")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error implements LaunchkitError and reports
// itself as retryable. Build errors never do by default.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var lkErr LaunchkitError
	if As(err, &lkErr) {
		return lkErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var lkErr LaunchkitError
	if As(err, &lkErr) {
		return lkErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement LaunchkitError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    logger.Error("toolchain unusable", "error", err)
//	case errors.SeverityInfo:
//	    logger.Info("build stopped", "error", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var lkErr LaunchkitError
	if As(err, &lkErr) {
		return lkErr.Severity()
	}
	return SeverityError
}

// IsCancellation reports whether err represents a requested cancellation
// rather than a tool failure.
func IsCancellation(err error) bool {
	return err != nil && Is(err, ErrCancelled)
}

// ExitCode extracts the process exit code carried by a BuildError.
// The second result is false when err carries no exit code.
func ExitCode(err error) (int, bool) {
	var buildErr *BuildError
	if !As(err, &buildErr) || buildErr.Kind == KindCancelled {
		return 0, false
	}
	return buildErr.ExitCode, true
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to open worker log")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to start worker %d", index)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
