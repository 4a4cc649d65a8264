package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/econcal/internal/browser"
	"github.com/go-scripts/econcal/pkg/common"
)

// State is a worker's position in its session lifecycle
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "idle"
	}
}

// WorkerOptions wires a Worker to its collaborators
type WorkerOptions struct {
	ID       int
	Config   common.Configuration
	Launcher browser.Launcher
	Gate     *browser.InitGate
	Fetcher  *Fetcher
	Observer Observer
	Logger   *log.Logger
}

// Worker processes one chunk with its own browser session
type Worker struct {
	id         int
	baseURL    string
	warmupWait    time.Duration
	politeness    time.Duration
	launchTimeout time.Duration
	launcher      browser.Launcher
	gate          *browser.InitGate
	fetcher       *Fetcher
	observer      Observer
	logger        *log.Logger
	state         atomic.Int32
}

// NewWorker creates a Worker. Missing Gate, Fetcher, Observer or Logger get defaults.
func NewWorker(opts WorkerOptions) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("worker", opts.ID)

	gate := opts.Gate
	if gate == nil {
		gate = browser.NewInitGate()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(opts.Config, nil, logger)
	}
	var observer Observer = NopObserver{}
	if opts.Observer != nil {
		observer = opts.Observer
	}

	return &Worker{
		id:            opts.ID,
		baseURL:       opts.Config.BaseURL,
		warmupWait:    opts.Config.WarmupWait,
		politeness:    opts.Config.Politeness,
		launchTimeout: opts.Config.NavigationTimeout,
		launcher:      opts.Launcher,
		gate:          gate,
		fetcher:       fetcher,
		observer:      observer,
		logger:        logger,
	}
}

// State returns the worker's current lifecycle state
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// Run fetches every day of chunk in order. Days that fail are logged and
// skipped. On cancellation the records gathered so far are returned with
// the context error.
func (w *Worker) Run(ctx context.Context, chunk common.DateChunk) (records []common.EventRecord, err error) {
	start := time.Now()
	status := ChunkFailed
	logger := w.logger.With("chunk", chunk.Index)

	w.setState(StateInitializing)
	w.observer.WorkerStarted(w.id, chunk)
	defer func() {
		w.setState(StateTerminated)
		w.observer.WorkerFinished(w.id, chunk, status, len(records), time.Since(start))
	}()

	sess, err := w.startSession(ctx)
	if err != nil {
		status = ChunkSessionInit
		if ctx.Err() != nil {
			status = ChunkCancelled
		}
		logger.Error("session init failed, abandoning chunk", "range", chunk.DateRange, "err", err)
		return nil, err
	}
	defer func() {
		w.setState(StateDraining)
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("failed to close session", "err", cerr)
		}
	}()

	w.setState(StateRunning)
	logger.Info("processing chunk", "range", chunk.DateRange, "days", chunk.NumDays())

	days := chunk.Days()
	for i, day := range days {
		if err := ctx.Err(); err != nil {
			status = ChunkCancelled
			return records, err
		}

		dayRecords, dayStatus, err := w.fetcher.fetch(ctx, sess, day)
		if err != nil {
			if ctx.Err() != nil {
				status = ChunkCancelled
				return records, ctx.Err()
			}
			logger.Warn("skipping day", "date", day.Format(common.DateLayout), "err", err)
			w.observer.DayCompleted(w.id, day, DayFailed, 0)
		} else {
			records = append(records, dayRecords...)
			w.observer.DayCompleted(w.id, day, dayStatus, len(dayRecords))
		}

		if i < len(days)-1 {
			if err := sleep(ctx, w.politeness); err != nil {
				status = ChunkCancelled
				return records, err
			}
		}
	}

	status = ChunkOK
	logger.Info("chunk complete", "range", chunk.DateRange, "events", len(records), "elapsed", time.Since(start).Round(time.Millisecond))
	return records, nil
}

// startSession launches and warms up a session inside the init gate. Launch
// and every warm-up step are time bounded so a stuck browser cannot hold
// the gate.
func (w *Worker) startSession(ctx context.Context) (browser.Session, error) {
	if w.launcher == nil {
		return nil, fmt.Errorf("%w: no launcher configured", browser.ErrSessionInit)
	}

	var sess browser.Session
	err := w.gate.Do(ctx, func(ctx context.Context) error {
		err := bounded(ctx, w.launchTimeout, "browser launch", func(ctx context.Context) error {
			s, err := w.launcher.Launch(ctx)
			sess = s
			return err
		})
		if err != nil {
			return err
		}
		return w.warmUp(ctx, sess)
	})
	if err != nil {
		if sess != nil {
			_ = sess.Close()
		}
		if errors.Is(err, browser.ErrSessionInit) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", browser.ErrSessionInit, err)
	}
	return sess, nil
}

// warmUp opens the calendar once and dismisses the cookie banner if shown
func (w *Worker) warmUp(ctx context.Context, sess browser.Session) error {
	if err := w.fetcher.navigate(ctx, sess, CalendarURL(w.baseURL)); err != nil {
		return fmt.Errorf("warm-up navigation: %w", err)
	}
	if err := sleep(ctx, w.warmupWait); err != nil {
		return err
	}

	var clicked bool
	if err := w.fetcher.evaluate(ctx, sess, dismissConsentJS, &clicked); err != nil {
		w.logger.Debug("consent check failed", "err", err)
		return nil
	}
	if clicked {
		w.logger.Debug("dismissed cookie consent")
		return sleep(ctx, time.Second)
	}
	return nil
}
