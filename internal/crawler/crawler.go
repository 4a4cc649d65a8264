// Package crawler fetches calendar days through a browser session and runs
// the per-chunk worker lifecycle.
package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/go-scripts/econcal/pkg/common"
)

var (
	// ErrFetchFailure covers navigation, snapshot and extraction failures for a day
	ErrFetchFailure = errors.New("fetch failed")
	// ErrPageLoadTimeout is returned when event rows never appeared and the
	// page does not say the day is empty, or when a navigation or page script
	// outlives its deadline
	ErrPageLoadTimeout = errors.New("page load timed out")
)

// DayStatus is the outcome of fetching one day
type DayStatus string

const (
	DayOK       DayStatus = "ok"
	DayNoEvents DayStatus = "no_events"
	DayFailed   DayStatus = "failed"
)

// ChunkStatus is the outcome of running one chunk
type ChunkStatus string

const (
	ChunkOK          ChunkStatus = "ok"
	ChunkFailed      ChunkStatus = "failed"
	ChunkSessionInit ChunkStatus = "session_init_failed"
	ChunkCancelled   ChunkStatus = "cancelled"
)

// Observer receives progress notifications from workers. Implementations
// must be safe for concurrent use.
type Observer interface {
	WorkerStarted(worker int, chunk common.DateChunk)
	DayCompleted(worker int, day time.Time, status DayStatus, events int)
	WorkerFinished(worker int, chunk common.DateChunk, status ChunkStatus, events int, elapsed time.Duration)
}

// Observers fans notifications out to several observers
type Observers []Observer

func (o Observers) WorkerStarted(worker int, chunk common.DateChunk) {
	for _, obs := range o {
		obs.WorkerStarted(worker, chunk)
	}
}

func (o Observers) DayCompleted(worker int, day time.Time, status DayStatus, events int) {
	for _, obs := range o {
		obs.DayCompleted(worker, day, status, events)
	}
}

func (o Observers) WorkerFinished(worker int, chunk common.DateChunk, status ChunkStatus, events int, elapsed time.Duration) {
	for _, obs := range o {
		obs.WorkerFinished(worker, chunk, status, events, elapsed)
	}
}

// NopObserver ignores every notification
type NopObserver struct{}

func (NopObserver) WorkerStarted(int, common.DateChunk)                                   {}
func (NopObserver) DayCompleted(int, time.Time, DayStatus, int)                           {}
func (NopObserver) WorkerFinished(int, common.DateChunk, ChunkStatus, int, time.Duration) {}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
