package datamap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/3leaps/fastls/pkg/lister"
	"github.com/3leaps/fastls/pkg/match"
	"github.com/3leaps/fastls/pkg/output"
	"github.com/3leaps/fastls/pkg/runstate"
)

func feed(records ...lister.Record) <-chan lister.Record {
	ch := make(chan lister.Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return ch
}

func rec(key string, size int64, etag string, side lister.Side) lister.Record {
	return lister.Record{
		Key:          key,
		Size:         size,
		ETag:         etag,
		LastModified: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Side:         side,
	}
}

// decode splits the JSONL buffer into typed records.
func decode(t *testing.T, buf *bytes.Buffer) (objects []output.ObjectRecord, diffs []output.DiffRecord, summary *output.SummaryRecord) {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var env output.Record
		require.NoError(t, json.Unmarshal([]byte(line), &env))
		switch env.Type {
		case output.TypeObject:
			var o output.ObjectRecord
			require.NoError(t, json.Unmarshal(env.Data, &o))
			objects = append(objects, o)
		case output.TypeDiff:
			var d output.DiffRecord
			require.NoError(t, json.Unmarshal(env.Data, &d))
			diffs = append(diffs, d)
		case output.TypeSummary:
			require.Nil(t, summary, "exactly one summary record")
			var s output.SummaryRecord
			require.NoError(t, json.Unmarshal(env.Data, &s))
			summary = &s
		default:
			t.Fatalf("unexpected record type %q", env.Type)
		}
	}
	return objects, diffs, summary
}

func TestListMode(t *testing.T) {
	var buf, ksBuf bytes.Buffer
	state := runstate.New(1)
	in := feed(
		rec("data/a.bin", 10, "e1", lister.SideLeft),
		rec("data/b.bin", 20, "e2", lister.SideLeft),
		rec("top.txt", 5, "e3", lister.SideLeft),
	)

	task := New(in, ModeList, nil, output.NewJSONLWriter(&buf, "run-1"), output.NewKeySpaceWriter(&ksBuf), state, zap.NewNop())
	require.NoError(t, task.Run())

	objects, diffs, summary := decode(t, &buf)
	assert.Len(t, objects, 3)
	assert.Empty(t, diffs)

	require.NotNil(t, summary)
	assert.Equal(t, "list", summary.Mode)
	assert.Equal(t, int64(3), summary.ObjectsEmitted)
	assert.Equal(t, int64(0), summary.ObjectsFiltered)
	assert.False(t, summary.Incomplete)
	assert.NotEmpty(t, summary.Duration)

	// Top-level keys have no parent prefix; only data/ lands in the
	// key-space output.
	assert.Equal(t, "data/\n", ksBuf.String())
	assert.Equal(t, int64(0), state.Outstanding())
}

func TestListModeFilter(t *testing.T) {
	var buf bytes.Buffer
	state := runstate.New(1)
	filter, err := match.Compile("logs/**/*.gz")
	require.NoError(t, err)

	in := feed(
		rec("logs/2024/app.gz", 1, "e1", lister.SideLeft),
		rec("logs/2024/app.txt", 1, "e2", lister.SideLeft),
		rec("data/raw.gz", 1, "e3", lister.SideLeft),
	)

	task := New(in, ModeList, filter, output.NewJSONLWriter(&buf, "run-2"), nil, state, zap.NewNop())
	require.NoError(t, task.Run())

	objects, _, summary := decode(t, &buf)
	require.Len(t, objects, 1)
	assert.Equal(t, "logs/2024/app.gz", objects[0].Key)
	assert.Equal(t, int64(2), summary.ObjectsFiltered)
	assert.Equal(t, int64(1), summary.ObjectsEmitted)
}

func TestDiffMode(t *testing.T) {
	var buf bytes.Buffer
	state := runstate.New(1)
	in := feed(
		// a exists left only; d exists right only; b matches exactly;
		// c differs in size. Interleaved arrival order on purpose.
		rec("a", 1, "ea", lister.SideLeft),
		rec("b", 2, "eb", lister.SideRight),
		rec("c", 3, "ec", lister.SideLeft),
		rec("b", 2, "eb", lister.SideLeft),
		rec("d", 4, "ed", lister.SideRight),
		rec("c", 30, "ec2", lister.SideRight),
	)

	task := New(in, ModeDiff, nil, output.NewJSONLWriter(&buf, "run-3"), nil, state, zap.NewNop())
	require.NoError(t, task.Run())

	_, diffs, summary := decode(t, &buf)
	byKey := map[string]output.DiffRecord{}
	for _, d := range diffs {
		byKey[d.Key] = d
	}
	require.Len(t, byKey, 3, "equal keys are not emitted")

	assert.Equal(t, output.DiffLeftOnly, byKey["a"].Status)
	assert.Nil(t, byKey["a"].Right)

	assert.Equal(t, output.DiffRightOnly, byKey["d"].Status)
	assert.Nil(t, byKey["d"].Left)

	assert.Equal(t, output.DiffMismatch, byKey["c"].Status)
	require.NotNil(t, byKey["c"].Left)
	require.NotNil(t, byKey["c"].Right)
	assert.Equal(t, int64(3), byKey["c"].Left.Size)
	assert.Equal(t, int64(30), byKey["c"].Right.Size)

	require.NotNil(t, summary)
	assert.Equal(t, "diff", summary.Mode)
	assert.Equal(t, int64(1), summary.DiffLeftOnly)
	assert.Equal(t, int64(1), summary.DiffRightOnly)
	assert.Equal(t, int64(1), summary.DiffMismatch)
	assert.Equal(t, int64(3), summary.ObjectsEmitted)
}

func TestDiffModeETagMismatch(t *testing.T) {
	var buf bytes.Buffer
	state := runstate.New(1)
	in := feed(
		rec("k", 7, "left-etag", lister.SideLeft),
		rec("k", 7, "right-etag", lister.SideRight),
	)

	task := New(in, ModeDiff, nil, output.NewJSONLWriter(&buf, "run-4"), nil, state, zap.NewNop())
	require.NoError(t, task.Run())

	_, diffs, _ := decode(t, &buf)
	require.Len(t, diffs, 1)
	assert.Equal(t, output.DiffMismatch, diffs[0].Status)
}

// brokenWriter fails every write, simulating a dead sink (full disk,
// revoked file handle).
type brokenWriter struct {
	err error
}

func (w *brokenWriter) WriteObject(*output.ObjectRecord) error   { return w.err }
func (w *brokenWriter) WriteDiff(*output.DiffRecord) error       { return w.err }
func (w *brokenWriter) WriteSummary(*output.SummaryRecord) error { return w.err }
func (w *brokenWriter) Close() error                             { return nil }

func TestSinkFailureStillDrainsProducers(t *testing.T) {
	sinkErr := errors.New("no space left on device")
	state := runstate.New(2)

	// Small buffer so the producer must block on sends; a premature
	// aggregator exit would leave it stuck forever.
	in := make(chan lister.Record, 1)
	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		for i := 0; i < 100; i++ {
			in <- rec(fmt.Sprintf("k/%03d", i), 1, "e", lister.SideLeft)
		}
		close(in)
		state.TaskDone()
	}()

	task := New(in, ModeList, nil, &brokenWriter{err: sinkErr}, nil, state, zap.NewNop())
	err := task.Run()
	require.ErrorIs(t, err, sinkErr)

	select {
	case <-producerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("producer still blocked on channel send after aggregator exit")
	}
	assert.True(t, state.Cancelled(), "producers are told to wind down")
	assert.Equal(t, int64(0), state.Outstanding())
}

func TestIncompleteRunFlagged(t *testing.T) {
	var buf bytes.Buffer
	state := runstate.New(1)
	state.AddRangeSkipped()

	task := New(feed(), ModeList, nil, output.NewJSONLWriter(&buf, "run-5"), nil, state, zap.NewNop())
	require.NoError(t, task.Run())

	_, _, summary := decode(t, &buf)
	require.NotNil(t, summary)
	assert.True(t, summary.Incomplete)
}

func TestParentPrefix(t *testing.T) {
	assert.Equal(t, "", parentPrefix("top.txt"))
	assert.Equal(t, "a/", parentPrefix("a/x"))
	assert.Equal(t, "a/b/", parentPrefix("a/b/c.bin"))
	assert.Equal(t, "a/b/", parentPrefix("a/b/"))
}
