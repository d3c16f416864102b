// Package runstate holds the process-wide state shared by every task in a
// run: the cooperative cancellation flag, the outstanding-task countdown the
// monitor uses to detect full shutdown, and the object counters.
//
// All fields are updated concurrently by many workers; everything here is
// atomic and lock-free. A State is created once at startup and shared by
// reference for the lifetime of the run.
package runstate

import "sync/atomic"

// State is the shared run state.
//
// The cancellation flag transitions false→true at most once. Every
// long-running loop polls Cancelled at each unit-of-work boundary (queue pop,
// page fetch) and exits promptly when it is set.
type State struct {
	cancelled   atomic.Bool
	outstanding atomic.Int64

	objectsListed   atomic.Int64
	objectsFiltered atomic.Int64
	objectsEmitted  atomic.Int64
	rangesSkipped   atomic.Int64
	fatalErrors     atomic.Int64
}

// New creates a State expecting the given number of tasks to report
// completion before the run is considered fully shut down.
func New(tasks int) *State {
	s := &State{}
	s.outstanding.Store(int64(tasks))
	return s
}

// RequestCancel sets the cancellation flag. It is idempotent; duplicate
// signals are no-ops. Returns true on the first call only.
func (s *State) RequestCancel() bool {
	return s.cancelled.CompareAndSwap(false, true)
}

// Cancelled reports whether cancellation has been requested.
func (s *State) Cancelled() bool {
	return s.cancelled.Load()
}

// TaskDone decrements the outstanding-task counter. Each task must call this
// exactly once on its way out, regardless of exit path.
func (s *State) TaskDone() {
	s.outstanding.Add(-1)
}

// Outstanding returns the number of tasks that have not yet completed.
func (s *State) Outstanding() int64 {
	return s.outstanding.Load()
}

// AddListed records objects returned by the provider (pre-filter).
func (s *State) AddListed(n int64) { s.objectsListed.Add(n) }

// AddFiltered records objects rejected by the filter expression.
func (s *State) AddFiltered(n int64) { s.objectsFiltered.Add(n) }

// AddEmitted records objects accepted and written to the output sink.
func (s *State) AddEmitted(n int64) { s.objectsEmitted.Add(n) }

// AddRangeSkipped records a range abandoned after retry exhaustion.
func (s *State) AddRangeSkipped() { s.rangesSkipped.Add(1) }

// AddFatalError records a fatal configuration/auth failure on one side.
func (s *State) AddFatalError() { s.fatalErrors.Add(1) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Outstanding     int64
	ObjectsListed   int64
	ObjectsFiltered int64
	ObjectsEmitted  int64
	RangesSkipped   int64
	FatalErrors     int64
	Cancelled       bool
}

// Snap returns a consistent-enough view of the counters for reporting.
// Individual loads are atomic; the set as a whole is advisory.
func (s *State) Snap() Snapshot {
	return Snapshot{
		Outstanding:     s.outstanding.Load(),
		ObjectsListed:   s.objectsListed.Load(),
		ObjectsFiltered: s.objectsFiltered.Load(),
		ObjectsEmitted:  s.objectsEmitted.Load(),
		RangesSkipped:   s.rangesSkipped.Load(),
		FatalErrors:     s.fatalErrors.Load(),
		Cancelled:       s.cancelled.Load(),
	}
}

// Incomplete reports whether the run should be flagged as incomplete:
// cancelled mid-run, ranges abandoned after retries, or a side lost to a
// fatal configuration/auth error.
func (s *State) Incomplete() bool {
	return s.Cancelled() || s.rangesSkipped.Load() > 0 || s.fatalErrors.Load() > 0
}
