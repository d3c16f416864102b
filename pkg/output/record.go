// Package output provides the run's output sinks: JSONL record output for
// listings and diff results, and the line-oriented key-space file that can
// feed the next run's hints input.
//
// JSONL output is structured as typed record envelopes. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
const (
	// TypeObject identifies object listing records.
	TypeObject = "fastls.object.v1"

	// TypeDiff identifies diff classification records.
	TypeDiff = "fastls.diff.v1"

	// TypeSummary identifies the final summary record.
	TypeSummary = "fastls.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g. "fastls.object.v1").
	Type string `json:"type"`

	// TS is when the record was created.
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this run.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ObjectRecord is the payload for a listed object.
type ObjectRecord struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`

	// Side is "left" or "right"; only meaningful in diff mode.
	Side string `json:"side,omitempty"`
}

// Diff statuses for DiffRecord.
const (
	// DiffLeftOnly marks keys present only in the source bucket.
	DiffLeftOnly = "left-only"

	// DiffRightOnly marks keys present only in the target bucket.
	DiffRightOnly = "right-only"

	// DiffMismatch marks keys present on both sides with differing
	// metadata. Keys equal on both sides are not emitted.
	DiffMismatch = "mismatch"
)

// DiffSide holds one side's metadata in a diff record.
type DiffSide struct {
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// DiffRecord is the payload for one diff classification.
type DiffRecord struct {
	Key    string    `json:"key"`
	Status string    `json:"status"`
	Left   *DiffSide `json:"left,omitempty"`
	Right  *DiffSide `json:"right,omitempty"`
}

// SummaryRecord is the payload for the final run summary.
type SummaryRecord struct {
	Mode            string `json:"mode"`
	ObjectsListed   int64  `json:"objects_listed"`
	ObjectsFiltered int64  `json:"objects_filtered"`
	ObjectsEmitted  int64  `json:"objects_emitted"`
	DiffLeftOnly    int64  `json:"diff_left_only,omitempty"`
	DiffRightOnly   int64  `json:"diff_right_only,omitempty"`
	DiffMismatch    int64  `json:"diff_mismatch,omitempty"`
	RangesSkipped   int64  `json:"ranges_skipped"`
	Incomplete      bool   `json:"incomplete"`
	Duration        string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
