// Package progress tracks progress and cooperative cancellation for a single
// build operation shared by many concurrent workers.
//
// A [Tracker] holds a monotonically increasing current value, an additive
// maximum, a best-effort status line and a cancellation flag whose first
// reason wins. The cancellation signal is exposed as a [context.Context] so
// that every suspension point (timers, process waits) can observe it.
//
// # Cancellation Policy
//
// Operations that must not be aborted halfway call
// [Tracker.DisableCancellation] before starting. From then on [Tracker.Cancel]
// is a no-op, including cancellations forwarded from the parent context
// passed to [New].
//
// # Basic Usage
//
//	tr := progress.New(ctx)
//	defer tr.Close()
//
//	tr.IncreaseMax(workers + 1)
//	go func() {
//	    if failed {
//	        tr.Cancel("worker 1 has failed")
//	        return
//	    }
//	    tr.Report(1)
//	}()
//
//	<-tr.Context().Done()
//	fmt.Println(tr.Reason())
package progress
