// Package datamap implements the aggregation side of the pipeline: it
// consumes object records from the listing tasks' shared channel and
// produces either a full listing or a three-way diff.
//
// Records arrive interleaved and unordered because partitions complete
// independently on both sides. In diff mode a key cannot be classified until
// both producers have finished (or the key has been matched from both
// sides), so every seen key is held in memory for the duration of the run.
// Memory usage is proportional to the larger bucket's key count; that
// retention is the dominant scalability constraint of diff mode. The map
// could be swapped for a spill-to-disk or sorted-merge structure without
// changing this task's external contract.
package datamap

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/fastls/pkg/lister"
	"github.com/3leaps/fastls/pkg/match"
	"github.com/3leaps/fastls/pkg/output"
	"github.com/3leaps/fastls/pkg/runstate"
)

// Mode selects list or diff aggregation.
type Mode string

const (
	// ModeList accumulates a single bucket's records into the sinks.
	ModeList Mode = "list"

	// ModeDiff compares two buckets and emits only their differences.
	ModeDiff Mode = "diff"
)

// diffEntry is the per-key state held until both sides complete.
type diffEntry struct {
	left  *output.DiffSide
	right *output.DiffSide
}

// Task consumes records until the channel is closed (every sender done),
// then finalizes output. Create with New, run once with Run.
type Task struct {
	in     <-chan lister.Record
	mode   Mode
	filter *match.KeyFilter
	writer output.Writer
	ks     *output.KeySpaceWriter
	state  *runstate.State
	log    *zap.Logger

	entries map[string]*diffEntry

	leftOnly  int64
	rightOnly int64
	mismatch  int64
}

// New creates an aggregation task. filter may be nil (match everything);
// ks may be nil to skip key-space output.
func New(in <-chan lister.Record, mode Mode, filter *match.KeyFilter, writer output.Writer, ks *output.KeySpaceWriter, state *runstate.State, log *zap.Logger) *Task {
	t := &Task{
		in:     in,
		mode:   mode,
		filter: filter,
		writer: writer,
		ks:     ks,
		state:  state,
		log:    log,
	}
	if mode == ModeDiff {
		t.entries = make(map[string]*diffEntry)
	}
	return t
}

// Run drains the channel and finalizes output once it closes. The channel
// closing is the completion signal from the producers; if it closes early
// (a producer aborted), Run finalizes with whatever was collected and the
// run is reported incomplete. The outstanding-task counter is decremented
// exactly once on the way out.
//
// A sink write failure must not stop the drain: producers block on channel
// sends, so Run keeps consuming (and discarding) records until the channel
// closes, requesting cancellation so the producers wind down instead of
// enumerating the rest of the bucket into a dead sink.
func (t *Task) Run() error {
	defer t.state.TaskDone()
	start := time.Now()

	var writeErr error
	for rec := range t.in {
		if writeErr != nil {
			continue
		}
		if !t.filter.Matches(rec.Key) {
			t.state.AddFiltered(1)
			continue
		}
		if t.ks != nil {
			t.ks.Add(parentPrefix(rec.Key))
		}

		switch t.mode {
		case ModeDiff:
			t.merge(rec)
		default:
			if err := t.writer.WriteObject(&output.ObjectRecord{
				Key:          rec.Key,
				Size:         rec.Size,
				ETag:         rec.ETag,
				LastModified: rec.LastModified,
			}); err != nil {
				t.log.Error("object write failed, abandoning output",
					zap.String("key", rec.Key), zap.Error(err))
				writeErr = err
				t.state.RequestCancel()
			} else {
				t.state.AddEmitted(1)
			}
		}
	}

	if writeErr != nil {
		return writeErr
	}
	return t.finalize(time.Since(start))
}

// merge folds one record into the per-key diff state.
func (t *Task) merge(rec lister.Record) {
	e := t.entries[rec.Key]
	if e == nil {
		e = &diffEntry{}
		t.entries[rec.Key] = e
	}
	side := &output.DiffSide{
		Size:         rec.Size,
		ETag:         rec.ETag,
		LastModified: rec.LastModified,
	}
	if rec.Side == lister.SideRight {
		e.right = side
	} else {
		e.left = side
	}
}

// finalize classifies diff entries (diff mode), writes the summary, and
// flushes the key-space sink.
func (t *Task) finalize(elapsed time.Duration) error {
	if t.state.Incomplete() {
		t.log.Warn("producers finished early, results may be incomplete")
	}

	if t.mode == ModeDiff {
		if err := t.classify(); err != nil {
			return err
		}
	}

	snap := t.state.Snap()
	sum := &output.SummaryRecord{
		Mode:            string(t.mode),
		ObjectsListed:   snap.ObjectsListed,
		ObjectsFiltered: snap.ObjectsFiltered,
		ObjectsEmitted:  snap.ObjectsEmitted,
		RangesSkipped:   snap.RangesSkipped,
		Incomplete:      t.state.Incomplete(),
		Duration:        elapsed.Round(time.Millisecond).String(),
	}
	if t.mode == ModeDiff {
		sum.DiffLeftOnly = t.leftOnly
		sum.DiffRightOnly = t.rightOnly
		sum.DiffMismatch = t.mismatch
	}
	if err := t.writer.WriteSummary(sum); err != nil {
		return err
	}

	if t.ks != nil {
		if err := t.ks.Flush(); err != nil {
			return err
		}
		t.log.Info("key space written", zap.Int("prefixes", t.ks.Len()))
	}
	return nil
}

// classify walks the full key map once both sides have completed. Keys
// present on both sides with identical metadata are equal and not emitted.
func (t *Task) classify() error {
	for key, e := range t.entries {
		rec := &output.DiffRecord{Key: key, Left: e.left, Right: e.right}
		switch {
		case e.right == nil:
			rec.Status = output.DiffLeftOnly
			t.leftOnly++
		case e.left == nil:
			rec.Status = output.DiffRightOnly
			t.rightOnly++
		case e.left.Size != e.right.Size || e.left.ETag != e.right.ETag:
			rec.Status = output.DiffMismatch
			t.mismatch++
		default:
			continue
		}
		if err := t.writer.WriteDiff(rec); err != nil {
			return err
		}
		t.state.AddEmitted(1)
	}
	t.log.Info("diff classified",
		zap.Int("keys", len(t.entries)),
		zap.Int64("left_only", t.leftOnly),
		zap.Int64("right_only", t.rightOnly),
		zap.Int64("mismatch", t.mismatch))
	return nil
}

// parentPrefix returns the key's directory part, "" for top-level keys.
func parentPrefix(key string) string {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return ""
	}
	return key[:i+1]
}
