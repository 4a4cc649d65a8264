// Package metrics records crawl counters for Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-scripts/econcal/internal/crawler"
	"github.com/go-scripts/econcal/pkg/common"
)

// Collector holds the crawl metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	Days          *prometheus.CounterVec
	Events        prometheus.Counter
	Chunks        *prometheus.CounterVec
	ChunkDuration prometheus.Histogram
	ActiveWorkers prometheus.Gauge
	LastRun       prometheus.Gauge
}

// New creates a Collector and registers its metrics
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Days: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econcal_days_total",
				Help: "Calendar days fetched, by outcome",
			},
			[]string{"status"}, // ok|no_events|failed
		),
		Events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "econcal_events_total",
			Help: "Event rows extracted",
		}),
		Chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econcal_chunks_total",
				Help: "Chunks processed, by outcome",
			},
			[]string{"status"}, // ok|failed|session_init_failed|cancelled
		),
		ChunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "econcal_chunk_duration_seconds",
			Help:    "Wall time spent on one chunk",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "econcal_active_workers",
			Help: "Chunk workers currently running",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "econcal_last_run_timestamp",
			Help: "Unix timestamp of the last completed crawl",
		}),
	}

	c.registry.MustRegister(c.Days, c.Events, c.Chunks, c.ChunkDuration, c.ActiveWorkers, c.LastRun)
	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) WorkerStarted(int, common.DateChunk) {
	c.ActiveWorkers.Inc()
}

func (c *Collector) DayCompleted(_ int, _ time.Time, status crawler.DayStatus, events int) {
	c.Days.WithLabelValues(string(status)).Inc()
	c.Events.Add(float64(events))
}

func (c *Collector) WorkerFinished(_ int, _ common.DateChunk, status crawler.ChunkStatus, _ int, elapsed time.Duration) {
	c.ActiveWorkers.Dec()
	c.Chunks.WithLabelValues(string(status)).Inc()
	c.ChunkDuration.Observe(elapsed.Seconds())
}

// MarkRun records the completion time of a crawl
func (c *Collector) MarkRun(t time.Time) {
	c.LastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
