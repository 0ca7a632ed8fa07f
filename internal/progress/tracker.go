package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ReasonInterrupted is recorded when the parent context of a Tracker is
// cancelled without an explicit Cancel call.
const ReasonInterrupted = "interrupted"

// Snapshot is a point-in-time copy of a Tracker's state.
type Snapshot struct {
	Current              int
	Max                  int
	Status               string
	Cancelled            bool
	Reason               string
	CancellationDisabled bool
}

// Fraction returns Current/Max clamped to [0, 1]. A zero Max yields 0.
func (s Snapshot) Fraction() float64 {
	if s.Max <= 0 {
		return 0
	}
	f := float64(s.Current) / float64(s.Max)
	if f > 1 {
		return 1
	}
	return f
}

// Done reports whether every unit of work has been reported.
func (s Snapshot) Done() bool {
	return s.Max > 0 && s.Current == s.Max
}

// Listener is notified after every state change with the new snapshot.
// Listeners run synchronously on the goroutine that changed the state and
// must not call back into the Tracker.
type Listener func(Snapshot)

// Tracker is the shared progress and cancellation state of a single build
// operation. All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	current   int
	max       int
	status    string
	cancelled bool
	reason    string
	disabled  bool
	listeners []Listener
	requests  map[int]func(reason string)
	nextReq   int

	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   func() bool
}

// New creates a Tracker whose cancellation signal is independent of parent's
// cancellation but listens to it: when parent is cancelled the tracker
// receives Cancel(ReasonInterrupted), which is refused once cancellation has
// been disabled. Values stored in parent remain visible through Context.
func New(parent context.Context) *Tracker {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	t := &Tracker{ctx: ctx, cancel: cancel}
	t.stop = context.AfterFunc(parent, func() {
		t.Cancel(ReasonInterrupted)
	})
	return t
}

// Close detaches the Tracker from its parent context and releases the
// cancellation signal's resources. The Tracker's state remains readable.
func (t *Tracker) Close() {
	t.stop()
	t.mu.Lock()
	cancelled := t.cancelled
	t.mu.Unlock()
	if !cancelled {
		t.cancel(context.Canceled)
	}
}

// IncreaseMax adds delta units of expected work.
// A negative delta is a programming error.
func (t *Tracker) IncreaseMax(delta int) {
	if delta < 0 {
		panic(fmt.Sprintf("progress: IncreaseMax with negative delta %d", delta))
	}
	t.mu.Lock()
	t.max += delta
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

// Report records delta completed units. Reporting past Max or a negative
// delta is a programming error.
func (t *Tracker) Report(delta int) {
	if delta < 0 {
		panic(fmt.Sprintf("progress: Report with negative delta %d", delta))
	}
	t.mu.Lock()
	if t.current+delta > t.max {
		current, max := t.current, t.max
		t.mu.Unlock()
		panic(fmt.Sprintf("progress: Report(%d) would exceed max (current=%d, max=%d)", delta, current, max))
	}
	t.current += delta
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

// SetStatus replaces the status text. Concurrent writers race; the last
// write wins.
func (t *Tracker) SetStatus(text string) {
	t.mu.Lock()
	t.status = text
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

// Cancel requests cancellation of the operation. Only the first reason is
// recorded. It returns true if this call transitioned the tracker into the
// cancelled state, and false if the tracker was already cancelled or
// cancellation has been disabled.
//
// Every request that is not refused reaches the OnCancelRequest callbacks,
// including requests made after the tracker was already cancelled.
func (t *Tracker) Cancel(reason string) bool {
	t.mu.Lock()
	if t.disabled {
		t.mu.Unlock()
		return false
	}
	requests := make([]func(string), 0, len(t.requests))
	for _, fn := range t.requests {
		requests = append(requests, fn)
	}
	first := !t.cancelled
	var snap Snapshot
	if first {
		t.cancelled = true
		t.reason = reason
		snap = t.snapshotLocked()
	}
	t.mu.Unlock()

	if first {
		t.cancel(&CancelledError{Reason: reason})
		t.notify(snap)
	}
	for _, fn := range requests {
		fn(reason)
	}
	return first
}

// OnCancelRequest registers fn to be called with the reason of every Cancel
// call that is not refused. It lets a participant react to a later request
// with a different reason once the first one has been recorded. The
// returned function unregisters fn.
func (t *Tracker) OnCancelRequest(fn func(reason string)) (remove func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.requests == nil {
		t.requests = make(map[int]func(string))
	}
	id := t.nextReq
	t.nextReq++
	t.requests[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.requests, id)
	}
}

// DisableCancellation permanently refuses all future Cancel calls.
// It does not undo a cancellation that already happened.
func (t *Tracker) DisableCancellation() {
	t.mu.Lock()
	t.disabled = true
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

// Context returns the cancellation signal. It is done once Cancel has taken
// effect, and context.Cause reports a *CancelledError carrying the reason.
func (t *Tracker) Context() context.Context {
	return t.ctx
}

// IsCancelled reports whether Cancel has taken effect.
func (t *Tracker) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// CancellationDisabled reports whether DisableCancellation has been called.
func (t *Tracker) CancellationDisabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disabled
}

// Reason returns the first recorded cancellation reason.
func (t *Tracker) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Subscribe registers a listener for state changes.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		Current:              t.current,
		Max:                  t.max,
		Status:               t.status,
		Cancelled:            t.cancelled,
		Reason:               t.reason,
		CancellationDisabled: t.disabled,
	}
}

func (t *Tracker) notify(snap Snapshot) {
	t.mu.Lock()
	listeners := make([]Listener, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// CancelledError is the cause attached to a Tracker's context when Cancel
// takes effect.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "cancelled"
	}
	return "cancelled: " + e.Reason
}

// Is lets errors.Is(err, context.Canceled) match a tracker cancellation.
func (e *CancelledError) Is(target error) bool {
	return target == context.Canceled
}

// ReasonFromContext extracts the cancellation reason recorded on ctx by a
// Tracker, or "" if ctx was not cancelled by one.
func ReasonFromContext(ctx context.Context) string {
	var ce *CancelledError
	if errors.As(context.Cause(ctx), &ce) {
		return ce.Reason
	}
	return ""
}
