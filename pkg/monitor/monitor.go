// Package monitor reports run progress and detects full shutdown.
//
// The monitor samples the shared run state on a fixed interval and logs
// throughput. It is the only component that decides normal termination: it
// returns once the outstanding-task counter reaches zero or cancellation is
// requested, after one final report.
package monitor

import (
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/fastls/pkg/runstate"
)

// DefaultInterval is the sampling interval when none is configured.
const DefaultInterval = 5 * time.Second

// Monitor observes one run. Create with New, run once with Run.
type Monitor struct {
	state    *runstate.State
	log      *zap.Logger
	interval time.Duration
}

// New creates a monitor over the shared run state.
func New(state *runstate.State, log *zap.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{state: state, log: log, interval: interval}
}

// Run blocks until all producer/consumer tasks have finished or cancellation
// is requested, emitting a progress report each tick and a final report on
// the way out. The final snapshot is returned for the exit decision.
func (m *Monitor) Run() runstate.Snapshot {
	// Poll finely so shutdown is detected promptly; report on the
	// configured interval.
	const poll = 200 * time.Millisecond
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	start := time.Now()
	last := m.state.Snap()
	lastAt := start

	for range ticker.C {
		snap := m.state.Snap()
		if snap.Outstanding <= 0 || snap.Cancelled {
			m.final(snap, time.Since(start))
			return snap
		}
		if time.Since(lastAt) >= m.interval {
			m.report(snap, last, time.Since(lastAt))
			last = snap
			lastAt = time.Now()
		}
	}
	return m.state.Snap()
}

// report logs one progress sample with interval rates.
func (m *Monitor) report(snap, last runstate.Snapshot, elapsed time.Duration) {
	secs := elapsed.Seconds()
	var rate float64
	if secs > 0 {
		rate = float64(snap.ObjectsListed-last.ObjectsListed) / secs
	}
	m.log.Info("progress",
		zap.Int64("listed", snap.ObjectsListed),
		zap.Int64("filtered", snap.ObjectsFiltered),
		zap.Int64("emitted", snap.ObjectsEmitted),
		zap.Float64("rate_per_s", rate),
		zap.Int64("outstanding", snap.Outstanding))
}

// final logs the closing report.
func (m *Monitor) final(snap runstate.Snapshot, elapsed time.Duration) {
	fields := []zap.Field{
		zap.Int64("listed", snap.ObjectsListed),
		zap.Int64("filtered", snap.ObjectsFiltered),
		zap.Int64("emitted", snap.ObjectsEmitted),
		zap.Int64("ranges_skipped", snap.RangesSkipped),
		zap.Duration("elapsed", elapsed.Round(time.Millisecond)),
	}
	switch {
	case snap.Cancelled:
		m.log.Warn("run cancelled, results incomplete", fields...)
	case snap.RangesSkipped > 0 || snap.FatalErrors > 0:
		m.log.Warn("run finished with skipped work, results incomplete", fields...)
	default:
		m.log.Info("run complete", fields...)
	}
}
