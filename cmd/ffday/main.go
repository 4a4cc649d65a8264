// Command ffday scrapes a single calendar day with one browser session and
// prints its events.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/go-scripts/econcal/internal/config"
	"github.com/go-scripts/econcal/internal/crawler"
	"github.com/go-scripts/econcal/internal/dataset"
	"github.com/go-scripts/econcal/internal/logging"
	"github.com/go-scripts/econcal/internal/writer"
	"github.com/go-scripts/econcal/pkg/common"
	"github.com/go-scripts/econcal/pkg/crawl"
	"github.com/go-scripts/econcal/ui"
)

// CLIFlags for a single-day scrape
type CLIFlags struct {
	Day      string `arg:"" help:"Day to scrape (YYYY-MM-DD)"`
	EnvFile  string `help:"Path to .env file" default:".env"`
	CSV      bool   `help:"Print CSV instead of a table"`
	Headful  bool   `help:"Show the browser window"`
	LogLevel string `help:"Log level (debug, info, warn, error)"`
}

func main() {
	var flags CLIFlags
	kong.Parse(&flags,
		kong.Name("ffday"),
		kong.Description("Scrape one Forex Factory calendar day."),
	)
	os.Exit(run(flags))
}

func run(flags CLIFlags) int {
	cfg, err := config.Load(flags.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	logger := logging.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	day, err := common.ParseDateRange(flags.Day, flags.Day)
	if err != nil {
		logger.Error("invalid day", "day", flags.Day, "err", err)
		return 1
	}

	settings := cfg.Crawl()
	settings.WorkerCount = 1
	settings.Stagger = 0
	if flags.Headful {
		settings.Headless = false
	}

	tally := &dayTally{}
	c, err := crawl.New(settings, crawl.WithLogger(logger), crawl.WithObserver(tally))
	if err != nil {
		logger.Error("failed to create crawler", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := c.Run(ctx, day)
	if err != nil {
		logger.Error("scrape failed", "err", err)
		return 1
	}
	if res.Failed > 0 {
		logger.Error("session could not be started")
		return 1
	}

	records, _ := dataset.Finalize(res.Records)
	if flags.CSV {
		if tally.Failed() > 0 {
			logger.Error("day could not be fetched", "day", day.Start.Format(common.DateLayout))
			return 1
		}
		if err := writer.WriteCSV(os.Stdout, records); err != nil {
			logger.Error("failed to write csv", "err", err)
			return 1
		}
		return 0
	}
	return report(os.Stdout, day.Start, records, tally.Failed())
}

// dayTally counts days whose fetch failed
type dayTally struct {
	crawler.NopObserver
	mu     sync.Mutex
	failed int
}

func (t *dayTally) DayCompleted(_ int, _ time.Time, status crawler.DayStatus, _ int) {
	if status != crawler.DayFailed {
		return
	}
	t.mu.Lock()
	t.failed++
	t.mu.Unlock()
}

func (t *dayTally) Failed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// report prints the day's events and returns the exit code. A day that could
// not be fetched is never reported as empty.
func report(out io.Writer, day time.Time, records []common.EventRecord, failed int) int {
	date := day.Format(common.DateLayout)
	switch {
	case failed > 0:
		fmt.Fprintln(out, "Failed to fetch", date)
		return 1
	case len(records) == 0:
		fmt.Fprintln(out, "No events scheduled for", date)
	default:
		fmt.Fprintln(out, ui.NewSample(records, len(records)).View())
	}
	return 0
}
