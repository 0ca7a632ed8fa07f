package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTracker_IncreaseMaxAndReport(t *testing.T) {
	tr := New(context.Background())
	defer tr.Close()

	tr.IncreaseMax(3)
	tr.IncreaseMax(1)
	tr.Report(2)

	snap := tr.Snapshot()
	if snap.Max != 4 {
		t.Errorf("Max = %d, want 4", snap.Max)
	}
	if snap.Current != 2 {
		t.Errorf("Current = %d, want 2", snap.Current)
	}
	if snap.Done() {
		t.Error("Done() = true before all units reported")
	}

	tr.Report(2)
	if !tr.Snapshot().Done() {
		t.Error("Done() = false after all units reported")
	}
}

func TestTracker_ReportPastMaxPanics(t *testing.T) {
	tr := New(context.Background())
	defer tr.Close()
	tr.IncreaseMax(1)
	tr.Report(1)

	defer func() {
		if recover() == nil {
			t.Error("expected Report past max to panic")
		}
	}()
	tr.Report(1)
}

func TestTracker_NegativeDeltaPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*Tracker)
	}{
		{"IncreaseMax", func(tr *Tracker) { tr.IncreaseMax(-1) }},
		{"Report", func(tr *Tracker) { tr.Report(-1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(context.Background())
			defer tr.Close()
			defer func() {
				if recover() == nil {
					t.Errorf("%s with negative delta should panic", tt.name)
				}
			}()
			tt.fn(tr)
		})
	}
}

func TestTracker_ConcurrentReportsNeverDecrease(t *testing.T) {
	const workers = 16
	const perWorker = 50

	tr := New(context.Background())
	defer tr.Close()
	tr.IncreaseMax(workers * perWorker)

	var mu sync.Mutex
	last := 0
	decreased := false
	tr.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		// Listener order across goroutines is unspecified, but the value a
		// listener sees must never be below zero or above max.
		if s.Current < 0 || s.Current > s.Max {
			decreased = true
		}
		if s.Current > last {
			last = s.Current
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := 0
			for j := 0; j < perWorker; j++ {
				tr.Report(1)
				cur := tr.Snapshot().Current
				if cur < prev {
					mu.Lock()
					decreased = true
					mu.Unlock()
				}
				prev = cur
			}
		}()
	}
	wg.Wait()

	if decreased {
		t.Error("Current was observed decreasing or out of range")
	}
	if got := tr.Snapshot().Current; got != workers*perWorker {
		t.Errorf("Current = %d, want %d", got, workers*perWorker)
	}
}

func TestTracker_CancelFirstReasonWins(t *testing.T) {
	tr := New(context.Background())
	defer tr.Close()

	if !tr.Cancel("first") {
		t.Fatal("first Cancel should take effect")
	}

	done := make(chan bool)
	go func() { done <- tr.Cancel("second") }()
	if <-done {
		t.Error("second Cancel should report no effect")
	}

	if got := tr.Reason(); got != "first" {
		t.Errorf("Reason() = %q, want %q", got, "first")
	}
	if !tr.IsCancelled() {
		t.Error("IsCancelled() = false after Cancel")
	}

	select {
	case <-tr.Context().Done():
	default:
		t.Fatal("cancellation signal not fired")
	}
	if got := ReasonFromContext(tr.Context()); got != "first" {
		t.Errorf("ReasonFromContext() = %q, want %q", got, "first")
	}
	if !errors.Is(context.Cause(tr.Context()), context.Canceled) {
		t.Error("cause should match context.Canceled")
	}
}

func TestTracker_ConcurrentCancelRecordsExactlyOneReason(t *testing.T) {
	tr := New(context.Background())
	defer tr.Close()

	reasons := []string{"a", "b", "c", "d", "e", "f"}
	results := make(chan bool, len(reasons))
	var wg sync.WaitGroup
	for _, r := range reasons {
		wg.Add(1)
		go func(r string) {
			defer wg.Done()
			results <- tr.Cancel(r)
		}(r)
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("%d Cancel calls took effect, want exactly 1", wins)
	}
	if tr.Reason() == "" {
		t.Error("a reason should be recorded")
	}
}

func TestTracker_DisableCancellation(t *testing.T) {
	tr := New(context.Background())
	defer tr.Close()

	tr.DisableCancellation()
	if tr.Cancel("too late") {
		t.Error("Cancel should have no effect after DisableCancellation")
	}
	if tr.IsCancelled() {
		t.Error("IsCancelled() = true after refused Cancel")
	}
	if tr.Reason() != "" {
		t.Errorf("Reason() = %q, want empty", tr.Reason())
	}
	if err := tr.Context().Err(); err != nil {
		t.Errorf("Context().Err() = %v, want nil", err)
	}
	if !tr.Snapshot().CancellationDisabled {
		t.Error("snapshot should report cancellation disabled")
	}
}

func TestTracker_OnCancelRequest(t *testing.T) {
	tr := New(context.Background())
	defer tr.Close()

	var mu sync.Mutex
	var got []string
	remove := tr.OnCancelRequest(func(reason string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, reason)
	})

	if !tr.Cancel("worker failed") {
		t.Fatal("first Cancel() = false")
	}
	if tr.Cancel("cancelled by user") {
		t.Error("second Cancel() = true, want false")
	}
	if tr.Reason() != "worker failed" {
		t.Errorf("Reason() = %q, want the first reason", tr.Reason())
	}

	tr.DisableCancellation()
	tr.Cancel("refused")
	remove()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"worker failed", "cancelled by user"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestTracker_OnCancelRequestRemove(t *testing.T) {
	tr := New(context.Background())
	defer tr.Close()

	calls := 0
	remove := tr.OnCancelRequest(func(string) { calls++ })
	remove()
	tr.Cancel("stop")
	if calls != 0 {
		t.Errorf("removed callback ran %d times", calls)
	}
}

func TestTracker_ParentCancellationForwards(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	tr := New(parent)
	defer tr.Close()

	cancel()

	select {
	case <-tr.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("parent cancellation was not forwarded")
	}
	if got := tr.Reason(); got != ReasonInterrupted {
		t.Errorf("Reason() = %q, want %q", got, ReasonInterrupted)
	}
}

func TestTracker_ParentCancellationRefusedWhenDisabled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	tr := New(parent)
	defer tr.Close()

	tr.DisableCancellation()
	cancel()

	// The forwarding hook runs asynchronously; give it a moment.
	time.Sleep(50 * time.Millisecond)
	if tr.IsCancelled() {
		t.Error("parent cancellation should be refused once disabled")
	}
	if tr.Context().Err() != nil {
		t.Error("tracker context should stay live")
	}
}

func TestTracker_ContextKeepsParentValues(t *testing.T) {
	type key struct{}
	parent := context.WithValue(context.Background(), key{}, "v")
	tr := New(parent)
	defer tr.Close()

	if got := tr.Context().Value(key{}); got != "v" {
		t.Errorf("Value() = %v, want %q", got, "v")
	}
}

func TestTracker_SetStatusAndSubscribe(t *testing.T) {
	tr := New(context.Background())
	defer tr.Close()

	var got []string
	tr.Subscribe(func(s Snapshot) { got = append(got, s.Status) })

	tr.SetStatus("Running 3 instances")
	tr.SetStatus("Merging output")

	if tr.Snapshot().Status != "Merging output" {
		t.Errorf("Status = %q", tr.Snapshot().Status)
	}
	if len(got) != 2 || got[1] != "Merging output" {
		t.Errorf("listener saw %v", got)
	}
}

func TestSnapshot_Fraction(t *testing.T) {
	tests := []struct {
		snap Snapshot
		want float64
	}{
		{Snapshot{}, 0},
		{Snapshot{Current: 1, Max: 4}, 0.25},
		{Snapshot{Current: 4, Max: 4}, 1},
	}
	for _, tt := range tests {
		if got := tt.snap.Fraction(); got != tt.want {
			t.Errorf("Fraction(%+v) = %v, want %v", tt.snap, got, tt.want)
		}
	}
}

func TestCancelledError(t *testing.T) {
	if got := (&CancelledError{}).Error(); got != "cancelled" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&CancelledError{Reason: "x"}).Error(); got != "cancelled: x" {
		t.Errorf("Error() = %q", got)
	}
	if ReasonFromContext(context.Background()) != "" {
		t.Error("uncancelled context should have no reason")
	}
}
