// Package keyspace builds partition boundaries for concurrent listing.
//
// A hints file is a flat list of "interesting" prefixes. Sorted and
// deduplicated, adjacent entries pair into half-open [start, end) ranges that
// carve the bucket's key space into independent units of listing work. The
// first and last ranges extend to the absolute start and end of the key
// space, so the ranges are non-overlapping and collectively cover everything
// under the starting prefix.
package keyspace

import (
	"bufio"
	"os"
	"sort"
	"strings"
)

// Range is one half-open [Start, End) slice of the key space. An empty Start
// means the absolute beginning; an empty End means no upper bound.
type Range struct {
	Start string
	End   string
}

// Contains reports whether key falls inside the range.
func (r Range) Contains(key string) bool {
	if key < r.Start {
		return false
	}
	return r.End == "" || key < r.End
}

// Hints is an immutable ordered set of partition ranges. Build once, hand to
// a single listing task.
type Hints struct {
	ranges []Range
}

// Build constructs partition ranges from a sorted, deduplicated prefix list.
// The caller is responsible for sort and dedup (Load does both). With fewer
// than two hints the result is a single full range, so the result always has
// max(1, len(prefixes)-1) entries.
func Build(prefixes []string) *Hints {
	if len(prefixes) < 2 {
		return &Hints{ranges: []Range{{}}}
	}

	ranges := make([]Range, 0, len(prefixes)-1)
	for i := 0; i < len(prefixes)-1; i++ {
		r := Range{Start: prefixes[i], End: prefixes[i+1]}
		if i == 0 {
			r.Start = ""
		}
		if i == len(prefixes)-2 {
			r.End = ""
		}
		ranges = append(ranges, r)
	}
	return &Hints{ranges: ranges}
}

// Load reads a hints file (one prefix per line), sorts and deduplicates the
// entries, and returns them. A missing file is not an error: the engine
// falls back to full-range discovery with no hints. Blank lines are skipped.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var prefixes []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		prefixes = append(prefixes, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.Strings(prefixes)
	prefixes = dedup(prefixes)
	return prefixes, nil
}

// Ranges returns the partition ranges in order.
func (h *Hints) Ranges() []Range {
	return h.ranges
}

// Len returns the number of partition ranges.
func (h *Hints) Len() int {
	return len(h.ranges)
}

func dedup(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
