package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"

	"github.com/go-scripts/econcal/internal/crawler"
	"github.com/go-scripts/econcal/pkg/common"
)

// Mode selects how crawl progress is shown on the terminal
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeBar      Mode = "bar"
	ModeSpinners Mode = "spinners"
	ModeNone     Mode = "none"
)

// ParseMode validates a progress mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeBar, ModeSpinners, ModeNone:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown progress mode %q", s)
	}
}

// Resolve turns ModeAuto into a concrete mode for out: a bar on a terminal,
// nothing otherwise
func Resolve(m Mode, out *os.File) Mode {
	if m != ModeAuto {
		return m
	}
	if out != nil && (isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())) {
		return ModeBar
	}
	return ModeNone
}

// NewObserver builds the observer for a resolved mode
func NewObserver(m Mode, totalDays, workers int, out io.Writer) crawler.Observer {
	switch m {
	case ModeBar:
		t := New(out)
		t.SetTotalDays(totalDays)
		return t
	case ModeSpinners:
		return NewWorkerSpinners(workers, out)
	default:
		return crawler.NopObserver{}
	}
}

// Stop ends the display drawn by an observer from NewObserver
func Stop(obs crawler.Observer) {
	switch o := obs.(type) {
	case *ProgressTracker:
		o.Finish()
	case *WorkerSpinners:
		o.Stop()
	}
}

// ProgressTracker draws one bar over all days of the crawl
type ProgressTracker struct {
	bar           progress.Model
	out           io.Writer
	totalDays     int
	processedDays int
	events        int
	mu            sync.Mutex
}

// New creates a new ProgressTracker writing to out
func New(out io.Writer) *ProgressTracker {
	return &ProgressTracker{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		out: out,
	}
}

// SetTotalDays sets the number of days to process
func (p *ProgressTracker) SetTotalDays(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalDays = total
}

// GetProgress returns the completed fraction
func (p *ProgressTracker) GetProgress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fraction()
}

func (p *ProgressTracker) fraction() float64 {
	if p.totalDays == 0 {
		return 0
	}
	return float64(p.processedDays) / float64(p.totalDays)
}

func (p *ProgressTracker) WorkerStarted(int, common.DateChunk) {}

func (p *ProgressTracker) DayCompleted(_ int, _ time.Time, _ crawler.DayStatus, events int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processedDays++
	p.events += events

	if p.totalDays > 0 {
		fmt.Fprintf(p.out, "\rProgress: %s %d/%d days, %d events",
			p.bar.ViewAs(p.fraction()),
			p.processedDays,
			p.totalDays,
			p.events)
	}
}

func (p *ProgressTracker) WorkerFinished(int, common.DateChunk, crawler.ChunkStatus, int, time.Duration) {
}

// Finish ends the progress line
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}
