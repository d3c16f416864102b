package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/fastls/internal/observability"
	"github.com/3leaps/fastls/internal/server"
	"github.com/3leaps/fastls/pkg/datamap"
	"github.com/3leaps/fastls/pkg/keyspace"
	"github.com/3leaps/fastls/pkg/lister"
	"github.com/3leaps/fastls/pkg/match"
	"github.com/3leaps/fastls/pkg/monitor"
	"github.com/3leaps/fastls/pkg/output"
	"github.com/3leaps/fastls/pkg/provider/s3"
	"github.com/3leaps/fastls/pkg/runstate"
)

const (
	// channelBuffer sizes the producer→aggregator channel. Large enough
	// that a burst of pages does not stall workers, small enough to
	// bound memory.
	channelBuffer = 10000

	// requestTimeout bounds one listing call; expiry is a retryable
	// transient at the range level, never a global run timeout.
	requestTimeout = 30 * time.Second
)

// bucketSpec identifies one side of a run.
type bucketSpec struct {
	bucket string
	region string
	side   lister.Side
}

// executeRun assembles and drives one run: N listing tasks feeding one
// aggregation task over a shared channel, observed by the monitor.
func executeRun(ctx context.Context, mode datamap.Mode, buckets []bucketSpec) error {
	opts, err := loadGlobalOptions()
	if err != nil {
		return fmt.Errorf("resolve options: %w", err)
	}

	flush, err := setupLogging(opts)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer flush()
	log := observability.CLILogger

	if opts.Threads > 0 {
		runtime.GOMAXPROCS(opts.Threads)
	}

	filter, err := match.Compile(opts.Filter)
	if err != nil {
		return err
	}

	src := buckets[0]
	hintPrefixes, hintsPath, err := loadHints(opts, src)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	startedAt := time.Now()
	dt := startedAt.Format("20060102T150405Z")

	log.Info("fastls starting",
		zap.String("run_id", runID),
		zap.String("mode", string(mode)),
		zap.Int("threads", opts.Threads),
		zap.Int("concurrency", opts.Concurrency),
		zap.String("prefix", opts.Prefix))
	for _, b := range buckets {
		log.Info("bucket", zap.String("side", string(b.side)),
			zap.String("bucket", b.bucket), zap.String("region", b.region))
	}
	if opts.Filter != "" {
		log.Info("filter enabled", zap.String("expression", opts.Filter))
	}
	if opts.EndpointURL != "" {
		log.Info("using custom endpoint", zap.String("endpoint", opts.EndpointURL),
			zap.Bool("path_style", opts.ForcePathStyle))
	}
	if len(hintPrefixes) == 0 {
		log.Info("no key space hints found, using full-range discovery")
	} else {
		log.Info("key space hints loaded",
			zap.String("file", hintsPath),
			zap.Int("prefixes", len(hintPrefixes)),
			zap.Int("partitions", keyspace.Build(hintPrefixes).Len()))
	}

	// Producers (one lister per side) plus the aggregator; the monitor
	// observes this count to detect full shutdown.
	state := runstate.New(len(buckets) + 1)
	installSignalHandler(state, log)

	writer, ks, cleanup, err := openSinks(opts, mode, buckets, runID, dt)
	if err != nil {
		return err
	}
	defer cleanup()

	records := make(chan lister.Record, channelBuffer)
	listCfg := lister.Config{
		Concurrency:    opts.Concurrency,
		RateLimit:      opts.RateLimit,
		RequestTimeout: requestTimeout,
	}

	var all sync.WaitGroup
	var producers sync.WaitGroup
	errCh := make(chan error, len(buckets)+1)

	for _, b := range buckets {
		pager, err := s3.New(ctx, s3.Config{
			Bucket:         b.bucket,
			Region:         b.region,
			Endpoint:       opts.EndpointURL,
			ForcePathStyle: opts.ForcePathStyle,
		})
		if err != nil {
			// The side never starts; keep the countdown honest so
			// the monitor can still detect shutdown.
			state.AddFatalError()
			state.TaskDone()
			log.Error("provider setup failed",
				zap.String("bucket", b.bucket), zap.Error(err))
			errCh <- err
			continue
		}
		task := lister.New(pager, b.side, records, state, log, listCfg)
		hints := keyspace.Build(hintPrefixes)

		producers.Add(1)
		all.Add(1)
		go func() {
			defer all.Done()
			defer producers.Done()
			defer pager.Close()
			if err := task.Run(ctx, opts.Prefix, hints); err != nil {
				errCh <- err
			}
		}()
	}

	// Channel closes once every sender is done; that close is the
	// aggregator's completion signal.
	go func() {
		producers.Wait()
		close(records)
	}()

	agg := datamap.New(records, mode, filter, writer, ks, state, log)
	all.Add(1)
	go func() {
		defer all.Done()
		if err := agg.Run(); err != nil {
			errCh <- err
		}
	}()

	if opts.StatusAddr != "" {
		status := server.New(opts.StatusAddr, runID, state, log)
		status.Start()
		defer status.Shutdown()
	}

	mon := monitor.New(state, log, monitor.DefaultInterval)
	snap := mon.Run()
	all.Wait()

	close(errCh)
	var firstErr error
	for err := range errCh {
		if firstErr == nil {
			firstErr = err
		}
	}

	switch {
	case firstErr != nil:
		return fmt.Errorf("run incomplete: %w", firstErr)
	case snap.Cancelled:
		return errors.New("run incomplete: cancelled")
	case state.Incomplete():
		return fmt.Errorf("run incomplete: %d ranges skipped after retries", snap.RangesSkipped)
	default:
		return nil
	}
}

// setupLogging routes logs per the CLI flags: a timestamped file when
// requested, stderr console otherwise.
func setupLogging(opts globalOptions) (func(), error) {
	cfg := observability.Config{}
	if opts.Verbose {
		cfg.Level = "debug"
	}
	if opts.Log {
		cfg.FilePath = opts.OutputLogFile
		if cfg.FilePath == "" {
			cfg.FilePath = fmt.Sprintf("fastls_%s.log", time.Now().Format("20060102150405"))
		}
	}
	return observability.Init(cfg)
}

// loadHints resolves the hints file path (flag or the conventional
// {region}_{bucket}_ks_hints.input) and loads it. A missing file is fine.
func loadHints(opts globalOptions, src bucketSpec) ([]string, string, error) {
	path := opts.KsFile
	if path == "" {
		if src.region != "" {
			path = fmt.Sprintf("%s_%s_ks_hints.input", src.region, src.bucket)
		} else {
			path = fmt.Sprintf("%s_ks_hints.input", src.bucket)
		}
	}
	prefixes, err := keyspace.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("load hints %s: %w", path, err)
	}
	return prefixes, path, nil
}

// openSinks creates the JSONL result writer and the key-space writer.
func openSinks(opts globalOptions, mode datamap.Mode, buckets []bucketSpec, runID, dt string) (output.Writer, *output.KeySpaceWriter, func(), error) {
	regionPart := func(region string) string {
		if region == "" {
			return ""
		}
		return region + "_"
	}

	src := buckets[0]
	outPath := opts.OutputFile
	if outPath == "" {
		if mode == datamap.ModeDiff && len(buckets) > 1 {
			dst := buckets[1]
			outPath = fmt.Sprintf("%s%s_%s%s_%s.jsonl",
				regionPart(src.region), src.bucket,
				regionPart(dst.region), dst.bucket, dt)
		} else {
			outPath = fmt.Sprintf("%s%s_%s.jsonl", regionPart(src.region), src.bucket, dt)
		}
	}
	ksPath := opts.OutputKsFile
	if ksPath == "" {
		ksPath = fmt.Sprintf("%s%s_%s.ks", regionPart(src.region), src.bucket, dt)
	}

	outFile, err := os.Create(outPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create output %s: %w", outPath, err)
	}
	ksFile, err := os.Create(ksPath)
	if err != nil {
		_ = outFile.Close()
		return nil, nil, nil, fmt.Errorf("create key space output %s: %w", ksPath, err)
	}

	writer := output.NewJSONLWriter(outFile, runID)
	ks := output.NewKeySpaceWriter(ksFile)
	cleanup := func() {
		_ = writer.Close()
		_ = outFile.Close()
		_ = ksFile.Close()
	}
	return writer, ks, cleanup, nil
}

// installSignalHandler maps interrupts onto the shared cancellation flag.
// The flag is set at most once; repeated signals are no-ops.
func installSignalHandler(state *runstate.State, log *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if state.RequestCancel() {
				log.Warn("interrupt received, cancelling run")
			}
		}
	}()
}
