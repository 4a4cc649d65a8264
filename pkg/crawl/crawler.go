package crawl

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/go-scripts/econcal/internal/browser"
	"github.com/go-scripts/econcal/internal/chunker"
	"github.com/go-scripts/econcal/internal/crawler"
	"github.com/go-scripts/econcal/internal/extract"
	"github.com/go-scripts/econcal/internal/queue"
	"github.com/go-scripts/econcal/internal/tracking"
	"github.com/go-scripts/econcal/pkg/common"
)

var (
	// ErrInvalidConfig is returned by New for unusable settings
	ErrInvalidConfig = errors.New("invalid crawler configuration")
	// ErrChunkPanic marks a chunk whose task panicked
	ErrChunkPanic = errors.New("chunk task panicked")
)

// ChunkRunner processes every day of one chunk
type ChunkRunner interface {
	Run(ctx context.Context, chunk common.DateChunk) ([]common.EventRecord, error)
}

// RunnerFactory builds a fresh runner, and so a fresh session, for each chunk
type RunnerFactory func(workerID int) ChunkRunner

// Result is the merged output of a crawl, records in completion order
type Result struct {
	Records   []common.EventRecord
	Chunks    int
	Completed int
	Failed    int
	Cancelled int
	Discarded int
	Elapsed   time.Duration
}

// Crawler splits a range into chunks and runs them on a pool of workers
type Crawler struct {
	config    common.Configuration
	launcher  browser.Launcher
	gate      *browser.InitGate
	fetcher   *crawler.Fetcher
	observers crawler.Observers
	tracker   tracking.Tracker
	logger    *log.Logger
	newRunner RunnerFactory
}

// Option configures a Crawler
type Option func(*Crawler)

// WithLauncher sets how browser sessions are started
func WithLauncher(l browser.Launcher) Option {
	return func(c *Crawler) { c.launcher = l }
}

// WithRunnerFactory replaces the browser-backed chunk worker
func WithRunnerFactory(f RunnerFactory) Option {
	return func(c *Crawler) { c.newRunner = f }
}

// WithObserver adds progress observers
func WithObserver(obs ...crawler.Observer) Option {
	return func(c *Crawler) {
		for _, o := range obs {
			if o != nil {
				c.observers = append(c.observers, o)
			}
		}
	}
}

// WithTracker reports chunk failures to an error tracker
func WithTracker(t tracking.Tracker) Option {
	return func(c *Crawler) { c.tracker = t }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// New creates a Crawler. Without WithLauncher sessions run a local Chrome.
func New(config common.Configuration, opts ...Option) (*Crawler, error) {
	if config.WorkerCount < 1 {
		return nil, fmt.Errorf("%w: worker count must be at least 1, got %d", ErrInvalidConfig, config.WorkerCount)
	}
	if config.ChunkMonths < 1 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, chunker.ErrInvalidChunkSize)
	}

	c := &Crawler{
		config:  config,
		gate:    browser.NewInitGate(),
		tracker: tracking.Nop{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.launcher == nil {
		c.launcher = browser.NewChromeLauncher(config)
	}
	c.logger = c.logger.With("component", "crawl")
	c.fetcher = crawler.NewFetcher(config, extract.New(c.logger), c.logger)
	if c.newRunner == nil {
		c.newRunner = c.browserRunner
	}
	return c, nil
}

func (c *Crawler) browserRunner(workerID int) ChunkRunner {
	return crawler.NewWorker(crawler.WorkerOptions{
		ID:       workerID,
		Config:   c.config,
		Launcher: c.launcher,
		Gate:     c.gate,
		Fetcher:  c.fetcher,
		Observer: c.observers,
		Logger:   c.logger,
	})
}

type chunkResult struct {
	chunk   common.DateChunk
	records []common.EventRecord
	err     error
}

// Run crawls every day in r. Chunk failures are isolated: they are logged and
// contribute no records. When ctx is cancelled, chunks not yet submitted are
// discarded, running chunks return what they have, and the partial Result is
// returned together with ctx's error.
func (c *Crawler) Run(ctx context.Context, r common.DateRange) (*Result, error) {
	start := time.Now()
	chunks, err := chunker.Chunk(r, c.config.ChunkMonths)
	if err != nil {
		return nil, err
	}

	c.logger.Info("starting crawl", "range", r, "days", r.NumDays(), "chunks", len(chunks), "workers", c.config.WorkerCount)

	q := queue.New(chunks)
	jobs := make(chan common.DateChunk)
	results := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for id := 1; id <= c.config.WorkerCount; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for chunk := range jobs {
				results <- c.runChunk(ctx, id, chunk)
			}
		}(id)
	}

	discarded := make(chan int, 1)
	go func() {
		defer close(jobs)
		discarded <- c.dispatch(ctx, q, jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	res := &Result{Chunks: len(chunks)}
	for cr := range results {
		res.Records = append(res.Records, cr.records...)
		switch {
		case cr.err == nil:
			res.Completed++
		case errors.Is(cr.err, context.Canceled) || errors.Is(cr.err, context.DeadlineExceeded):
			res.Cancelled++
		default:
			res.Failed++
			c.logger.Error("chunk failed", "chunk", cr.chunk.Index, "range", cr.chunk.DateRange, "err", cr.err)
			c.capture(ctx, cr)
		}
	}
	res.Discarded = <-discarded
	res.Elapsed = time.Since(start)

	c.logger.Info("crawl finished",
		"events", len(res.Records),
		"completed", res.Completed,
		"failed", res.Failed,
		"cancelled", res.Cancelled,
		"discarded", res.Discarded,
		"elapsed", res.Elapsed.Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// dispatch submits queued chunks one per stagger interval and returns how
// many were never submitted
func (c *Crawler) dispatch(ctx context.Context, q *queue.Queue, jobs chan<- common.DateChunk) int {
	limit := rate.Inf
	if c.config.Stagger > 0 {
		limit = rate.Every(c.config.Stagger)
	}
	limiter := rate.NewLimiter(limit, 1)

	for q.Len() > 0 {
		if err := stagger(ctx, limiter); err != nil {
			break
		}
		chunk, ok := q.Next()
		if !ok {
			break
		}
		select {
		case jobs <- chunk:
			c.logger.Debug("submitted chunk", "chunk", chunk.Index, "range", chunk.DateRange)
		case <-ctx.Done():
			return len(q.Drain()) + 1
		}
	}

	n := len(q.Drain())
	if n > 0 {
		c.logger.Warn("discarding unsubmitted chunks", "count", n)
	}
	return n
}

// stagger blocks until limiter grants a token or ctx is done. Unlike
// limiter.Wait it does not give up early when the token would arrive after
// the context deadline, so only a done context ends dispatch.
func stagger(ctx context.Context, limiter *rate.Limiter) error {
	r := limiter.Reserve()
	d := r.Delay()
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// runChunk runs one chunk on a fresh runner, turning a panic into a failed chunk
func (c *Crawler) runChunk(ctx context.Context, workerID int, chunk common.DateChunk) (res chunkResult) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("chunk task panicked", "chunk", chunk.Index, "panic", p, "stack", string(debug.Stack()))
			res = chunkResult{chunk: chunk, err: fmt.Errorf("%w: %v", ErrChunkPanic, p)}
		}
	}()

	records, err := c.newRunner(workerID).Run(ctx, chunk)
	return chunkResult{chunk: chunk, records: records, err: err}
}

func (c *Crawler) capture(ctx context.Context, cr chunkResult) {
	kind := "chunk"
	switch {
	case errors.Is(cr.err, browser.ErrSessionInit):
		kind = "session_init"
	case errors.Is(cr.err, ErrChunkPanic):
		kind = "panic"
	}
	tags := map[string]string{
		"kind":  kind,
		"chunk": strconv.Itoa(cr.chunk.Index),
		"start": cr.chunk.Start.Format(common.DateLayout),
		"end":   cr.chunk.End.Format(common.DateLayout),
	}
	if err := c.tracker.CaptureError(context.WithoutCancel(ctx), cr.err, tags); err != nil {
		c.logger.Debug("failed to report chunk error", "err", err)
	}
}
