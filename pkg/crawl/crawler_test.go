package crawl

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/go-scripts/econcal/internal/browser/browsertest"
	"github.com/go-scripts/econcal/internal/crawler"
	"github.com/go-scripts/econcal/pkg/common"
)

const testBase = "https://calendar.test"

const march1Page = `<html><body>
<table class="calendar__table">
  <tr class="calendar__row"><td class="calendar__date" colspan="9">Tue Mar 1</td></tr>
  <tr class="calendar__row">
    <td class="calendar__time">10:00am</td>
    <td class="calendar__currency">USD</td>
    <td class="calendar__impact"><span title="High Impact Expected"></span></td>
    <td class="calendar__event"><span>ISM Manufacturing PMI</span></td>
    <td class="calendar__actual">49.5</td>
    <td class="calendar__forecast">48.5</td>
    <td class="calendar__previous">48.2</td>
  </tr>
  <tr class="calendar__row">
    <td class="calendar__time"></td>
    <td class="calendar__currency">USD</td>
    <td class="calendar__impact"><span title="Medium Impact Expected"></span></td>
    <td class="calendar__event"><span>ISM Manufacturing Prices</span></td>
    <td class="calendar__actual">38.5</td>
    <td class="calendar__forecast">35.5</td>
    <td class="calendar__previous">33.5</td>
  </tr>
</table>
</body></html>`

func testConfig(workers int) common.Configuration {
	cfg := common.DefaultConfiguration()
	cfg.BaseURL = testBase
	cfg.WorkerCount = workers
	cfg.ReadyTimeout = 10 * time.Millisecond
	cfg.ScrollSettle = 0
	cfg.Politeness = 0
	cfg.WarmupWait = 0
	cfg.Stagger = 0
	return cfg
}

func quiet() Option {
	return WithLogger(log.New(io.Discard))
}

func mustRange(t *testing.T, start, end string) common.DateRange {
	t.Helper()
	r, err := common.ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}

// runnerFunc adapts a function to ChunkRunner
type runnerFunc func(ctx context.Context, chunk common.DateChunk) ([]common.EventRecord, error)

func (f runnerFunc) Run(ctx context.Context, chunk common.DateChunk) ([]common.EventRecord, error) {
	return f(ctx, chunk)
}

func recordsFor(chunk common.DateChunk) []common.EventRecord {
	var out []common.EventRecord
	for _, d := range chunk.Days() {
		out = append(out, common.EventRecord{Datetime: d.Format(common.DateLayout) + " 09:00:00", Currency: "USD"})
	}
	return out
}

type fakeTracker struct {
	mu   sync.Mutex
	tags []map[string]string
}

func (f *fakeTracker) CaptureError(_ context.Context, _ error, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, tags)
	return nil
}

func (f *fakeTracker) Flush(context.Context) error { return nil }

func TestRunSingleDayEndToEnd(t *testing.T) {
	day := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	launcher := browsertest.NewLauncher(map[string]string{
		crawler.DayURL(testBase, day): march1Page,
	})

	c, err := New(testConfig(1), WithLauncher(launcher), quiet())
	require.NoError(t, err)

	res, err := c.Run(context.Background(), mustRange(t, "2016-03-01", "2016-03-01"))
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	for _, r := range res.Records {
		assert.Equal(t, "2016-03-01 10:00:00", r.Datetime)
		assert.Equal(t, "USD", r.Currency)
	}
	assert.Equal(t, common.ImpactHigh, res.Records[0].Impact)
	assert.Equal(t, common.ImpactMedium, res.Records[1].Impact)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, 1, res.Completed)

	require.Len(t, launcher.Sessions(), 1)
	assert.True(t, launcher.Sessions()[0].Closed())
}

func TestRunMergesAllChunks(t *testing.T) {
	c, err := New(testConfig(3), quiet(), WithRunnerFactory(func(int) ChunkRunner {
		return runnerFunc(func(_ context.Context, chunk common.DateChunk) ([]common.EventRecord, error) {
			return recordsFor(chunk), nil
		})
	}))
	require.NoError(t, err)

	r := mustRange(t, "2024-01-15", "2024-04-10")
	res, err := c.Run(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, 4, res.Completed)
	assert.Len(t, res.Records, r.NumDays())

	seen := map[string]bool{}
	for _, rec := range res.Records {
		seen[rec.Date()] = true
	}
	assert.Len(t, seen, r.NumDays())
}

func TestRunRespectsWorkerCount(t *testing.T) {
	for _, workers := range []int{1, 2} {
		var running, peak atomic.Int32
		c, err := New(testConfig(workers), quiet(), WithRunnerFactory(func(int) ChunkRunner {
			return runnerFunc(func(_ context.Context, chunk common.DateChunk) ([]common.EventRecord, error) {
				n := running.Add(1)
				defer running.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				return recordsFor(chunk), nil
			})
		}))
		require.NoError(t, err)

		_, err = c.Run(context.Background(), mustRange(t, "2024-01-01", "2024-06-30"))
		require.NoError(t, err)
		assert.LessOrEqual(t, int(peak.Load()), workers)
	}
}

func TestRunIsolatesChunkFailures(t *testing.T) {
	tracker := &fakeTracker{}
	c, err := New(testConfig(2), quiet(), WithTracker(tracker), WithRunnerFactory(func(int) ChunkRunner {
		return runnerFunc(func(_ context.Context, chunk common.DateChunk) ([]common.EventRecord, error) {
			switch chunk.Index {
			case 1:
				panic("unexpected markup")
			case 2:
				return nil, errors.New("session init failed")
			}
			return recordsFor(chunk), nil
		})
	}))
	require.NoError(t, err)

	res, err := c.Run(context.Background(), mustRange(t, "2024-01-01", "2024-04-30"))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, 2, res.Failed)
	assert.Len(t, res.Records, 31+30)

	require.Len(t, tracker.tags, 2)
	kinds := []string{tracker.tags[0]["kind"], tracker.tags[1]["kind"]}
	assert.ElementsMatch(t, []string{"panic", "chunk"}, kinds)
}

func TestRunSessionInitFailureAbandonsChunk(t *testing.T) {
	launcher := browsertest.NewLauncher(nil)
	launcher.Err = errors.New("chrome not found")
	tracker := &fakeTracker{}

	c, err := New(testConfig(2), WithLauncher(launcher), WithTracker(tracker), quiet())
	require.NoError(t, err)

	res, err := c.Run(context.Background(), mustRange(t, "2024-01-30", "2024-02-02"))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, tracker.tags, 2)
	assert.Equal(t, "session_init", tracker.tags[0]["kind"])
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	c, err := New(testConfig(2), quiet(), WithRunnerFactory(func(int) ChunkRunner {
		return runnerFunc(func(_ context.Context, chunk common.DateChunk) ([]common.EventRecord, error) {
			calls.Add(1)
			return recordsFor(chunk), nil
		})
	}))
	require.NoError(t, err)

	res, err := c.Run(ctx, mustRange(t, "2024-01-01", "2024-03-31"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Discarded)
	assert.Zero(t, calls.Load())
	assert.Empty(t, res.Records)
}

func TestRunCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(1)
	cfg.Stagger = 20 * time.Millisecond
	c, err := New(cfg, quiet(), WithRunnerFactory(func(int) ChunkRunner {
		return runnerFunc(func(_ context.Context, chunk common.DateChunk) ([]common.EventRecord, error) {
			if chunk.Index == 0 {
				cancel()
			}
			return recordsFor(chunk), nil
		})
	}))
	require.NoError(t, err)

	r := mustRange(t, "2024-01-01", "2024-06-30")
	res, err := c.Run(ctx, r)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 5, res.Discarded)
	assert.Len(t, res.Records, 31)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(0)
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = testConfig(1)
	cfg.ChunkMonths = 0
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunRejectsInvalidRange(t *testing.T) {
	c, err := New(testConfig(1), quiet())
	require.NoError(t, err)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = c.Run(context.Background(), common.DateRange{Start: start, End: start.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, common.ErrInvalidRange)
}

func TestRunDeadlineReportsDiscardedChunks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	cfg := testConfig(1)
	cfg.Stagger = 100 * time.Millisecond
	c, err := New(cfg, quiet(), WithRunnerFactory(func(int) ChunkRunner {
		return runnerFunc(func(_ context.Context, chunk common.DateChunk) ([]common.EventRecord, error) {
			return recordsFor(chunk), nil
		})
	}))
	require.NoError(t, err)

	res, err := c.Run(ctx, mustRange(t, "2016-01-01", "2016-03-31"))
	require.NotNil(t, res)
	require.Positive(t, res.Discarded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, res.Completed+res.Cancelled+res.Discarded)
}

func TestRunDeadlineWithRoomCompletesEveryChunk(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := testConfig(1)
	cfg.Stagger = 20 * time.Millisecond
	c, err := New(cfg, quiet(), WithRunnerFactory(func(int) ChunkRunner {
		return runnerFunc(func(_ context.Context, chunk common.DateChunk) ([]common.EventRecord, error) {
			return recordsFor(chunk), nil
		})
	}))
	require.NoError(t, err)

	res, err := c.Run(ctx, mustRange(t, "2016-01-01", "2016-03-31"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Completed)
	assert.Zero(t, res.Discarded)
	assert.Len(t, res.Records, 91)
}

func TestStaggerWaitsUntilDeadline(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.NoError(t, stagger(context.Background(), limiter))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := stagger(ctx, limiter)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}
