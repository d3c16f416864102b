package lister

import "sync"

// unit is one pending slice of listing work: enumerate every key under
// prefix that is strictly greater than startAfter and below end (end == ""
// means unbounded). Units are created from key-space hints at seed time and
// from discovered common prefixes during the run.
//
// boundaryCheck is set on seeded units with a non-empty lower bound. The
// partition ranges are half-open [start, end), but StartAfter is strictly
// exclusive, so an object whose key equals the bound itself needs a separate
// single-key lookup or neither adjacent range would emit it.
type unit struct {
	prefix        string
	startAfter    string
	end           string
	boundaryCheck bool
}

// workQueue is the concurrent work queue shared by one listing task's
// worker pool. It tracks pending work (queued plus in-process) so workers
// can distinguish "momentarily empty" from "fully drained": pop blocks while
// units may still be produced by in-flight subdivision.
//
// Units are popped LIFO. Depth-first descent keeps the queue small on wide
// key spaces; breadth-first would buffer every sibling prefix at once.
type workQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []unit
	pending int
	closed  bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push adds a unit and accounts for it as pending.
func (q *workQueue) push(u unit) {
	q.mu.Lock()
	q.items = append(q.items, u)
	q.pending++
	q.mu.Unlock()
	q.cond.Signal()
}

// pop returns the next unit. It blocks while the queue is empty but work is
// still in flight. The second result is false once the queue is drained
// (no items and nothing pending) or closed.
func (q *workQueue) pop() (unit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && q.pending > 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed || len(q.items) == 0 {
		return unit{}, false
	}

	u := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return u, true
}

// done marks one popped unit as finished. When the last pending unit
// finishes, blocked poppers are released.
func (q *workQueue) done() {
	q.mu.Lock()
	q.pending--
	drained := q.pending == 0
	q.mu.Unlock()
	if drained {
		q.cond.Broadcast()
	}
}

// close abandons all remaining work and releases blocked poppers. Used on
// cancellation and on fatal errors.
func (q *workQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// remaining reports queued (not yet popped) units.
func (q *workQueue) remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
