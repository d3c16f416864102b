package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer is the sink contract the aggregation task writes through.
//
// Implementations must be safe for concurrent use. Each Write* method emits
// one complete record; Close flushes buffered output.
type Writer interface {
	// WriteObject emits a listed-object record.
	WriteObject(obj *ObjectRecord) error

	// WriteDiff emits a diff classification record.
	WriteDiff(diff *DiffRecord) error

	// WriteSummary emits the final summary record.
	WriteSummary(sum *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized with a mutex so lines are never interleaved.
type JSONLWriter struct {
	w      io.Writer
	runID  string
	mu     sync.Mutex
	closed bool
}

var _ Writer = (*JSONLWriter)(nil)

// NewJSONLWriter creates a JSONL writer over w. runID is the correlation ID
// stamped into every envelope.
func NewJSONLWriter(w io.Writer, runID string) *JSONLWriter {
	return &JSONLWriter{w: w, runID: runID}
}

// WriteObject emits a listed-object record.
func (jw *JSONLWriter) WriteObject(obj *ObjectRecord) error {
	return jw.writeRecord(TypeObject, obj)
}

// WriteDiff emits a diff classification record.
func (jw *JSONLWriter) WriteDiff(diff *DiffRecord) error {
	return jw.writeRecord(TypeDiff, diff)
}

// WriteSummary emits the final summary record.
func (jw *JSONLWriter) WriteSummary(sum *SummaryRecord) error {
	return jw.writeRecord(TypeSummary, sum)
}

// Close marks the writer as closed. The underlying io.Writer is the
// caller's to close.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

// writeRecord marshals data and writes one complete envelope line.
func (jw *JSONLWriter) writeRecord(recordType string, data any) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		RunID: jw.runID,
		Data:  dataBytes,
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll writes all bytes to w, handling short writes. io.Writer.Write may
// return n < len(p) with a nil error, which would silently truncate lines.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
