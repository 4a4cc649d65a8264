package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/go-scripts/econcal/internal/crawler"
	"github.com/go-scripts/econcal/pkg/common"
)

// WorkerSpinners shows one spinner per pool worker with its current chunk
type WorkerSpinners struct {
	spinners []*spinner.Spinner
	status   []string
	mu       sync.Mutex
}

// NewWorkerSpinners creates a spinner for each of workers
func NewWorkerSpinners(workers int, out io.Writer) *WorkerSpinners {
	ws := &WorkerSpinners{
		spinners: make([]*spinner.Spinner, workers),
		status:   make([]string, workers),
	}
	for i := range ws.spinners {
		ws.spinners[i] = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(out))
	}
	return ws
}

func (ws *WorkerSpinners) slot(worker int) int {
	i := worker - 1
	if i < 0 || i >= len(ws.spinners) {
		return -1
	}
	return i
}

// Status returns the text currently shown next to a worker's spinner
func (ws *WorkerSpinners) Status(worker int) string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if i := ws.slot(worker); i >= 0 {
		return ws.status[i]
	}
	return ""
}

func (ws *WorkerSpinners) set(i int, msg string) {
	ws.status[i] = msg
	ws.spinners[i].Suffix = msg
}

func (ws *WorkerSpinners) WorkerStarted(worker int, chunk common.DateChunk) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	i := ws.slot(worker)
	if i < 0 {
		return
	}
	ws.set(i, fmt.Sprintf(" [%d] %s starting", worker, chunk.DateRange))
	ws.spinners[i].Start()
}

func (ws *WorkerSpinners) DayCompleted(worker int, day time.Time, status crawler.DayStatus, events int) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	i := ws.slot(worker)
	if i < 0 {
		return
	}
	msg := fmt.Sprintf(" [%d] %s %d events", worker, day.Format(common.DateLayout), events)
	if status != crawler.DayOK {
		msg += fmt.Sprintf(" (%s)", status)
	}
	ws.set(i, msg)
}

func (ws *WorkerSpinners) WorkerFinished(worker int, chunk common.DateChunk, status crawler.ChunkStatus, events int, elapsed time.Duration) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	i := ws.slot(worker)
	if i < 0 {
		return
	}
	msg := fmt.Sprintf(" [%d] %s %s: %d events in %s", worker, chunk.DateRange, status, events, elapsed.Round(time.Second))
	ws.set(i, msg)
	ws.spinners[i].FinalMSG = msg + "\n"
	ws.spinners[i].Stop()
}

// Stop halts every spinner
func (ws *WorkerSpinners) Stop() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for _, s := range ws.spinners {
		s.Stop()
	}
}
