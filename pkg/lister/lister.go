// Package lister implements concurrent partitioned enumeration of a
// bucket's key space.
//
// A listing task seeds a work queue from key-space hints (or a single full
// range with no hints) and runs a bounded pool of workers against it. Each
// worker repeatedly pulls a pending range and pages through a delimiter
// listing of it. Discovered common prefixes are pushed back as new, smaller
// ranges, dynamically subdividing hot regions beyond what static hints
// covered, while object keys are emitted onto the outbound channel tagged
// with the task's side.
//
// Emission order across ranges is not guaranteed; partitions complete
// independently and the consumer must be order-insensitive.
package lister

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/fastls/pkg/keyspace"
	"github.com/3leaps/fastls/pkg/provider"
	"github.com/3leaps/fastls/pkg/runstate"
)

// Side tags which bucket a record came from. Meaningful in diff mode only.
type Side string

const (
	// SideLeft is the source bucket.
	SideLeft Side = "left"

	// SideRight is the target bucket in diff mode.
	SideRight Side = "right"
)

// Record is one discovered object, transferred by value through the channel
// to the aggregation task. Never mutated after creation.
type Record struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Side         Side
}

// Config configures a listing task.
type Config struct {
	// Concurrency is the maximum number of in-flight listing calls.
	// Default: 100.
	Concurrency int

	// Delimiter separates path segments. Default: "/".
	Delimiter string

	// MaxKeys caps the listing page size. Zero uses the provider default.
	MaxKeys int

	// MaxAttempts bounds retries of one page fetch on transient errors.
	// Default: 5.
	MaxAttempts int

	// RetryBase is the initial backoff; it doubles per attempt up to
	// RetryMax. Defaults: 200ms and 10s.
	RetryBase time.Duration
	RetryMax  time.Duration

	// RequestTimeout bounds a single listing call. Zero disables the
	// per-call deadline.
	RequestTimeout time.Duration

	// RateLimit is the maximum listing requests per second across the
	// task's workers. Zero means unlimited.
	RateLimit float64
}

// DefaultConfig returns the default listing configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 100,
		Delimiter:   "/",
		MaxAttempts: 5,
		RetryBase:   200 * time.Millisecond,
		RetryMax:    10 * time.Second,
	}
}

// ErrCancelled is returned internally when cancellation interrupts a range.
var ErrCancelled = errors.New("listing cancelled")

// Task enumerates one bucket side. Create with New, run once with Run.
type Task struct {
	pager   provider.Pager
	side    Side
	out     chan<- Record
	state   *runstate.State
	log     *zap.Logger
	cfg     Config
	limiter *rate.Limiter
}

// New creates a listing task writing discovered records to out. The task
// shares state with the rest of the run and tags every record with side.
func New(pager provider.Pager, side Side, out chan<- Record, state *runstate.State, log *zap.Logger, cfg Config) *Task {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = def.Delimiter
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}

	t := &Task{
		pager: pager,
		side:  side,
		out:   out,
		state: state,
		log:   log.With(zap.String("side", string(side))),
		cfg:   cfg,
	}
	if cfg.RateLimit > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return t
}

// Run enumerates every key under startPrefix, seeding partitions from hints.
// It blocks until the key space is exhausted, cancellation is observed, or a
// fatal configuration/auth error aborts the task. The outstanding-task
// counter is decremented exactly once regardless of exit path.
//
// Transient errors on one range are retried with backoff; exhausting retries
// skips that range (counted, non-fatal). Fatal errors abort the whole task.
func (t *Task) Run(ctx context.Context, startPrefix string, hints *keyspace.Hints) error {
	defer t.state.TaskDone()

	queue := newWorkQueue()
	for _, r := range hints.Ranges() {
		queue.push(unit{
			prefix:        startPrefix,
			startAfter:    r.Start,
			end:           r.End,
			boundaryCheck: r.Start != "",
		})
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		fatalErr error
	)
	for i := 0; i < t.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if t.state.Cancelled() {
					queue.close()
					return
				}
				u, ok := queue.pop()
				if !ok {
					return
				}
				err := t.processUnit(ctx, queue, u)
				queue.done()
				if err != nil && provider.IsFatal(err) {
					errOnce.Do(func() {
						fatalErr = err
						t.state.AddFatalError()
					})
					queue.close()
					return
				}
			}
		}()
	}
	wg.Wait()

	switch {
	case fatalErr != nil:
		t.log.Error("listing aborted", zap.Error(fatalErr))
		return fatalErr
	case t.state.Cancelled():
		t.log.Warn("listing cancelled", zap.Int("ranges_abandoned", queue.remaining()))
		return nil
	default:
		t.log.Info("listing complete")
		return nil
	}
}

// processUnit pages through one range. Returns a fatal error to abort the
// task; transient exhaustion and cancellation are absorbed here.
func (t *Task) processUnit(ctx context.Context, queue *workQueue, u unit) error {
	if u.boundaryCheck {
		if err := t.emitBoundaryObject(ctx, u); err != nil {
			if errors.Is(err, ErrCancelled) {
				return nil
			}
			if provider.IsFatal(err) {
				return err
			}
			t.state.AddRangeSkipped()
			t.log.Warn("boundary lookup skipped after retries",
				zap.String("start", u.startAfter),
				zap.Error(err))
		}
	}

	var token string
	for {
		if t.state.Cancelled() {
			return nil
		}

		page, err := t.fetchPage(ctx, u, token)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return nil
			}
			if provider.IsFatal(err) {
				return err
			}
			t.state.AddRangeSkipped()
			t.log.Warn("range skipped after retries",
				zap.String("prefix", u.prefix),
				zap.String("start_after", u.startAfter),
				zap.Error(err))
			return nil
		}

		if done := t.consumePage(queue, u, page); done {
			return nil
		}
		if !page.IsTruncated || page.ContinuationToken == "" {
			return nil
		}
		token = page.ContinuationToken
	}
}

// consumePage emits in-range objects and subdivides common prefixes.
// Returns true when the range's upper bound has been passed, meaning
// pagination can stop early: listings are ascending, so everything on later
// pages is beyond the bound too.
func (t *Task) consumePage(queue *workQueue, u unit, page *provider.Page) bool {
	beyond := false

	for _, obj := range page.Objects {
		if u.end != "" && obj.Key >= u.end {
			beyond = true
			break
		}
		t.state.AddListed(1)
		t.out <- Record{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
			Side:         t.side,
		}
	}

	for _, cp := range page.CommonPrefixes {
		if u.end != "" && cp >= u.end {
			beyond = true
			break
		}
		child := unit{prefix: cp}
		// A sub-prefix inherits the lower bound only when the bound
		// cuts into its subtree; keys under cp are all > cp otherwise.
		if u.startAfter > cp {
			child.startAfter = u.startAfter
		}
		// The upper bound survives only when it falls inside cp's
		// subtree; a bound past the subtree can never be reached.
		if u.end != "" && strings.HasPrefix(u.end, cp) {
			child.end = u.end
		}
		queue.push(child)
	}

	return beyond
}

// emitBoundaryObject looks up the single key equal to the unit's lower
// bound and emits it when it names a real object. Range lower bounds are
// inclusive; the exclusive StartAfter covers everything past the bound and
// this lookup covers the bound itself.
func (t *Task) emitBoundaryObject(ctx context.Context, u unit) error {
	page, err := t.fetchWithRetry(ctx, provider.PageOptions{
		Prefix:  u.startAfter,
		MaxKeys: 1,
	})
	if err != nil {
		return err
	}
	if len(page.Objects) == 0 || page.Objects[0].Key != u.startAfter {
		return nil
	}

	obj := page.Objects[0]
	t.state.AddListed(1)
	t.out <- Record{
		Key:          obj.Key,
		Size:         obj.Size,
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
		Side:         t.side,
	}
	return nil
}

// fetchPage fetches one listing page of a range with bounded retry.
func (t *Task) fetchPage(ctx context.Context, u unit, token string) (*provider.Page, error) {
	return t.fetchWithRetry(ctx, provider.PageOptions{
		Prefix:            u.prefix,
		Delimiter:         t.cfg.Delimiter,
		StartAfter:        u.startAfter,
		ContinuationToken: token,
		MaxKeys:           t.cfg.MaxKeys,
	})
}

// fetchWithRetry issues one listing call with bounded retry and backoff.
func (t *Task) fetchWithRetry(ctx context.Context, opts provider.PageOptions) (*provider.Page, error) {
	var lastErr error
	backoff := t.cfg.RetryBase
	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		if t.state.Cancelled() {
			return nil, ErrCancelled
		}
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, ErrCancelled
			}
		}

		page, err := t.listOnce(ctx, opts)
		if err == nil {
			return page, nil
		}
		if provider.IsFatal(err) {
			return nil, err
		}
		lastErr = err

		if attempt == t.cfg.MaxAttempts {
			break
		}
		t.log.Debug("transient listing error, backing off",
			zap.String("prefix", opts.Prefix),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if cancelled := t.sleep(backoff); cancelled {
			return nil, ErrCancelled
		}
		backoff *= 2
		if backoff > t.cfg.RetryMax {
			backoff = t.cfg.RetryMax
		}
	}
	return nil, lastErr
}

// listOnce issues a single listing call under the per-call deadline.
func (t *Task) listOnce(ctx context.Context, opts provider.PageOptions) (*provider.Page, error) {
	if t.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.RequestTimeout)
		defer cancel()
	}
	return t.pager.ListPage(ctx, opts)
}

// sleep waits for d, polling cancellation so backoff does not delay
// shutdown. Returns true if cancellation was observed.
func (t *Task) sleep(d time.Duration) bool {
	const step = 50 * time.Millisecond
	for d > 0 {
		if t.state.Cancelled() {
			return true
		}
		s := step
		if d < s {
			s = d
		}
		time.Sleep(s)
		d -= s
	}
	return t.state.Cancelled()
}
