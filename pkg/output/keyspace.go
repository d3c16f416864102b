package output

import (
	"bufio"
	"io"
	"sort"
	"sync"
)

// KeySpaceWriter accumulates the distinct prefixes observed during a run and
// writes them out sorted, one per line. The resulting file round-trips as
// the next run's hints input.
type KeySpaceWriter struct {
	mu       sync.Mutex
	prefixes map[string]struct{}
	w        io.Writer
}

// NewKeySpaceWriter creates a key-space writer over w.
func NewKeySpaceWriter(w io.Writer) *KeySpaceWriter {
	return &KeySpaceWriter{
		prefixes: make(map[string]struct{}),
		w:        w,
	}
}

// Add records one prefix. Duplicates collapse; empty prefixes are ignored.
func (kw *KeySpaceWriter) Add(prefix string) {
	if prefix == "" {
		return
	}
	kw.mu.Lock()
	kw.prefixes[prefix] = struct{}{}
	kw.mu.Unlock()
}

// Len returns the number of distinct prefixes recorded so far.
func (kw *KeySpaceWriter) Len() int {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	return len(kw.prefixes)
}

// Flush writes the accumulated prefixes in sorted order.
func (kw *KeySpaceWriter) Flush() error {
	kw.mu.Lock()
	sorted := make([]string, 0, len(kw.prefixes))
	for p := range kw.prefixes {
		sorted = append(sorted, p)
	}
	kw.mu.Unlock()
	sort.Strings(sorted)

	bw := bufio.NewWriter(kw.w)
	for _, p := range sorted {
		if _, err := bw.WriteString(p); err != nil {
			return &WriteError{Op: "write_keyspace", Err: err}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return &WriteError{Op: "write_keyspace", Err: err}
		}
	}
	if err := bw.Flush(); err != nil {
		return &WriteError{Op: "flush_keyspace", Err: err}
	}
	return nil
}
