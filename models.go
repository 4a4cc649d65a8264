package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/go-scripts/econcal/internal/config"
	"github.com/go-scripts/econcal/internal/dataset"
	"github.com/go-scripts/econcal/internal/metrics"
	"github.com/go-scripts/econcal/internal/progress"
	"github.com/go-scripts/econcal/internal/sink/clickhouse"
	"github.com/go-scripts/econcal/internal/tracking"
	"github.com/go-scripts/econcal/internal/writer"
	"github.com/go-scripts/econcal/pkg/common"
	"github.com/go-scripts/econcal/pkg/crawl"
	"github.com/go-scripts/econcal/ui"
)

// Process exit codes
const (
	exitOK          = 0
	exitError       = 1
	exitNoData      = 2
	exitInterrupted = 130
)

const noDataMessage = "No data was scraped for the specified date range."

// exporter stores a finished dataset outside the CSV file
type exporter interface {
	Write(ctx context.Context, runID uuid.UUID, records []common.EventRecord) (int, error)
}

// app carries everything one scrape run needs
type app struct {
	cfg       *config.Config
	logger    *log.Logger
	tracker   tracking.Tracker
	metrics   *metrics.Collector
	mode      progress.Mode
	out       io.Writer
	sample    int
	exporter  exporter
	crawlOpts []crawl.Option
}

// run scrapes the configured range, writes the dataset and prints a summary.
// It returns the process exit code.
func (a *app) run(ctx context.Context) int {
	r, err := a.cfg.Range()
	if err != nil {
		a.logger.Error("invalid date range", "err", err)
		return exitError
	}

	obs := progress.NewObserver(a.mode, r.NumDays(), a.cfg.Workers, a.out)
	opts := append([]crawl.Option{
		crawl.WithObserver(obs, a.metrics),
		crawl.WithTracker(a.tracker),
		crawl.WithLogger(a.logger),
	}, a.crawlOpts...)

	c, err := crawl.New(a.cfg.Crawl(), opts...)
	if err != nil {
		a.logger.Error("failed to create crawler", "err", err)
		return exitError
	}

	res, err := c.Run(ctx, r)
	progress.Stop(obs)
	defer a.writeMetrics()

	interrupted := false
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			a.logger.Error("scrape failed", "err", err)
			return exitError
		}
		interrupted = true
		a.logger.Warn("scrape interrupted, keeping partial data", "err", err)
	}

	if len(res.Records) == 0 {
		fmt.Fprintln(a.out, noDataMessage)
		if interrupted {
			return exitInterrupted
		}
		return exitNoData
	}

	records, err := dataset.Finalize(res.Records)
	if err != nil {
		a.logger.Warn("dataset left in collection order", "err", err)
	}

	w, err := writer.New(a.cfg.Output.Dir, a.cfg.Output.Prefix)
	if err != nil {
		a.logger.Error("failed to prepare output", "err", err)
		return exitError
	}
	path, err := w.WriteRecords(r, records)
	if err != nil {
		a.logger.Error("failed to write dataset", "err", err)
		return exitError
	}
	a.logger.Info("dataset written", "path", path, "events", len(records))

	summary := ui.Summary{Range: r, Result: *res, Path: path, Exported: -1}
	if info, err := os.Stat(path); err == nil {
		summary.FileSize = info.Size()
	}

	if a.exporter != nil {
		summary.Exported = a.export(ctx, interrupted, records)
	}

	fmt.Fprintln(a.out, summary.View())
	fmt.Fprintln(a.out, ui.NewSample(records, a.sample).View())

	if interrupted {
		return exitInterrupted
	}
	return exitOK
}

// export sends records to the configured exporter. A failed export is logged
// and reported, the CSV dataset stands on its own.
func (a *app) export(ctx context.Context, interrupted bool, records []common.EventRecord) int {
	if interrupted {
		ctx = context.WithoutCancel(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	runID := uuid.New()
	n, err := a.exporter.Write(ctx, runID, records)
	if err != nil {
		a.logger.Error("clickhouse export failed", "run_id", runID, "written", n, "err", err)
		_ = a.tracker.CaptureError(ctx, err, map[string]string{"kind": "export", "run_id": runID.String()})
	}
	return n
}

func (a *app) writeMetrics() {
	a.metrics.MarkRun(time.Now())
	if a.cfg.Metrics.File == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.File); err != nil {
		a.logger.Warn("failed to write metrics", "path", a.cfg.Metrics.File, "err", err)
	}
}

// openExporter connects the ClickHouse sink when one is configured
func openExporter(ctx context.Context, cfg config.ClickHouseConfig, logger *log.Logger) (exporter, func() error, error) {
	conn, err := clickhouse.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	s, err := clickhouse.New(conn, cfg.Table, cfg.BatchSize, clickhouse.WithLogger(logger))
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := s.EnsureTable(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return s, conn.Close, nil
}
