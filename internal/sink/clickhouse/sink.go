// Package clickhouse exports finalized event records to a ClickHouse table.
package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/go-scripts/econcal/internal/config"
	"github.com/go-scripts/econcal/pkg/common"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Row is one event as stored in ClickHouse
type Row struct {
	RunID       uuid.UUID `ch:"run_id"`
	EventDate   time.Time `ch:"event_date"`
	Datetime    string    `ch:"datetime"`
	Currency    string    `ch:"currency"`
	Impact      string    `ch:"impact"`
	Event       string    `ch:"event"`
	Actual      string    `ch:"actual"`
	Forecast    string    `ch:"forecast"`
	Previous    string    `ch:"previous"`
	CollectedAt time.Time `ch:"collected_at"`
}

// ToRows stamps records with the run id and collection time
func ToRows(runID uuid.UUID, records []common.EventRecord, collectedAt time.Time) ([]Row, error) {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		date, err := time.Parse(common.DateLayout, r.Date())
		if err != nil {
			return nil, fmt.Errorf("record %q has no event date: %w", r.Datetime, err)
		}
		rows = append(rows, Row{
			RunID:       runID,
			EventDate:   date,
			Datetime:    r.Datetime,
			Currency:    r.Currency,
			Impact:      r.ImpactLabel(),
			Event:       r.Event,
			Actual:      r.Actual,
			Forecast:    r.Forecast,
			Previous:    r.Previous,
			CollectedAt: collectedAt.UTC(),
		})
	}
	return rows, nil
}

// Open connects to ClickHouse and verifies the connection
func Open(ctx context.Context, cfg config.ClickHouseConfig) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// FlushFunc inserts one batch of rows
type FlushFunc func(ctx context.Context, rows []Row) error

// Sink writes records to a table in fixed-size batches
type Sink struct {
	conn      driver.Conn
	table     string
	batchSize int
	flush     FlushFunc
	logger    *log.Logger
}

// Option configures a Sink
type Option func(*Sink)

// WithFlushFunc replaces the batch insert
func WithFlushFunc(f FlushFunc) Option {
	return func(s *Sink) { s.flush = f }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// New creates a Sink for table
func New(conn driver.Conn, table string, batchSize int, opts ...Option) (*Sink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", table)
	}
	if batchSize < 1 {
		batchSize = 500
	}
	s := &Sink{
		conn:      conn,
		table:     table,
		batchSize: batchSize,
		logger:    log.Default(),
	}
	s.flush = s.insert
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "clickhouse", "table", table)
	return s, nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id       UUID,
	event_date   Date,
	datetime     String,
	currency     LowCardinality(String),
	impact       LowCardinality(String),
	event        String,
	actual       String,
	forecast     String,
	previous     String,
	collected_at DateTime
) ENGINE = MergeTree
ORDER BY (event_date, currency, datetime)`, table)
}

// EnsureTable creates the table if it does not exist
func (s *Sink) EnsureTable(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Write inserts records under runID and returns the number of rows written
func (s *Sink) Write(ctx context.Context, runID uuid.UUID, records []common.EventRecord) (int, error) {
	rows, err := ToRows(runID, records, time.Now())
	if err != nil {
		return 0, err
	}

	written := 0
	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))
		batch := rows[start:end]

		began := time.Now()
		if err := s.flush(ctx, batch); err != nil {
			return written, fmt.Errorf("failed to flush %d rows to %s: %w", len(batch), s.table, err)
		}
		written += len(batch)
		s.logger.Debug("flushed batch", "rows", len(batch), "took", time.Since(began))
	}
	s.logger.Info("exported events", "rows", written, "run_id", runID)
	return written, nil
}

func (s *Sink) insert(ctx context.Context, rows []Row) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table)
	if err != nil {
		return err
	}
	for i := range rows {
		if err := batch.AppendStruct(&rows[i]); err != nil {
			batch.Abort()
			return err
		}
	}
	return batch.Send()
}
