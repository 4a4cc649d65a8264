package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/go-scripts/econcal/internal/config"
	"github.com/go-scripts/econcal/internal/logging"
	"github.com/go-scripts/econcal/internal/metrics"
	"github.com/go-scripts/econcal/internal/progress"
	"github.com/go-scripts/econcal/internal/tracking"
)

var version = "dev"

// CLIFlags override values loaded from the environment
type CLIFlags struct {
	EnvFile     string `help:"Path to .env file" default:".env"`
	Start       string `help:"First day to scrape (YYYY-MM-DD)" short:"s"`
	End         string `help:"Last day to scrape (YYYY-MM-DD)" short:"e"`
	Workers     int    `help:"Number of concurrent browser sessions" short:"w"`
	ChunkMonths int    `help:"Calendar months per work chunk"`
	Output      string `help:"Directory for the CSV dataset" short:"o"`
	Prefix      string `help:"Dataset filename prefix"`
	Progress    string `help:"Progress display (auto, bar, spinners, none)"`
	LogLevel    string `help:"Log level (debug, info, warn, error)"`
	LogFormat   string `help:"Log format (text, logfmt, json)"`
	MetricsFile string `help:"Write Prometheus metrics to this file after the run"`
	Headful     bool   `help:"Show the browser window"`
	Sample      int    `help:"Rows printed from each end of the dataset" default:"5"`
}

// applyFlags copies every flag that was set onto cfg
func applyFlags(cfg *config.Config, flags CLIFlags) {
	if flags.Start != "" {
		cfg.Start = flags.Start
	}
	if flags.End != "" {
		cfg.End = flags.End
	}
	if flags.Workers != 0 {
		cfg.Workers = flags.Workers
	}
	if flags.ChunkMonths != 0 {
		cfg.ChunkMonths = flags.ChunkMonths
	}
	if flags.Output != "" {
		cfg.Output.Dir = flags.Output
	}
	if flags.Prefix != "" {
		cfg.Output.Prefix = flags.Prefix
	}
	if flags.Progress != "" {
		cfg.Progress = flags.Progress
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		cfg.Log.Format = flags.LogFormat
	}
	if flags.MetricsFile != "" {
		cfg.Metrics.File = flags.MetricsFile
	}
	if flags.Headful {
		cfg.Headless = false
	}
}

func main() {
	var flags CLIFlags
	kong.Parse(&flags,
		kong.Name("econcal"),
		kong.Description("Scrape the Forex Factory economic calendar into a CSV dataset."),
	)
	os.Exit(run(flags))
}

func run(flags CLIFlags) int {
	cfg, err := config.Load(flags.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return exitError
	}
	applyFlags(cfg, flags)

	logger := logging.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return exitError
	}

	tracker, err := tracking.New(cfg.Sentry.DSN, cfg.Sentry.Environment, version)
	if err != nil {
		logger.Warn("error tracking disabled", "err", err)
		tracker = tracking.Nop{}
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracker.Flush(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, _ := progress.ParseMode(cfg.Progress)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		tracker: tracker,
		metrics: metrics.New(),
		mode:    progress.Resolve(mode, os.Stdout),
		out:     os.Stdout,
		sample:  flags.Sample,
	}

	if cfg.ClickHouse.Enabled() {
		exp, closeFn, err := openExporter(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Error("clickhouse unavailable", "addr", cfg.ClickHouse.Addr(), "err", err)
			return exitError
		}
		defer closeFn()
		a.exporter = exp
	}

	return a.run(ctx)
}
