package common

import (
	"strings"
	"time"
)

// Impact is the importance rating attached to a calendar event
type Impact int

const (
	ImpactNotApplicable Impact = iota
	ImpactHigh
	ImpactMedium
	ImpactLow
	ImpactHoliday
	ImpactUnknown
)

// String returns the short name of the impact level
func (i Impact) String() string {
	switch i {
	case ImpactHigh:
		return "High"
	case ImpactMedium:
		return "Medium"
	case ImpactLow:
		return "Low"
	case ImpactHoliday:
		return "Holiday"
	case ImpactUnknown:
		return "Unknown"
	default:
		return "N/A"
	}
}

// EventRecord is one extracted calendar row. It is passed by value and never
// modified once built.
type EventRecord struct {
	Datetime  string
	Currency  string
	Impact    Impact
	ImpactRaw string
	Event     string
	Actual    string
	Forecast  string
	Previous  string
}

// ImpactLabel returns the label written to exported datasets
func (r EventRecord) ImpactLabel() string {
	if r.Impact == ImpactUnknown {
		return "Unknown Impact: " + r.ImpactRaw
	}
	return r.Impact.String()
}

// Date returns the calendar date prefix of Datetime
func (r EventRecord) Date() string {
	date, _, _ := strings.Cut(r.Datetime, " ")
	return date
}

// Columns is the fixed column order of an exported dataset
var Columns = []string{"datetime", "currency", "impact", "event", "actual", "forecast", "previous"}

// Row returns the record's fields in Columns order
func (r EventRecord) Row() []string {
	return []string{r.Datetime, r.Currency, r.ImpactLabel(), r.Event, r.Actual, r.Forecast, r.Previous}
}

// Configuration holds the crawler configuration
type Configuration struct {
	BaseURL           string
	WorkerCount       int
	ChunkMonths       int
	ReadyTimeout      time.Duration
	NavigationTimeout time.Duration
	ScriptTimeout     time.Duration
	ScrollSettle      time.Duration
	MaxScrollAttempts int
	Politeness        time.Duration
	Stagger           time.Duration
	WarmupWait        time.Duration
	Headless          bool
	UserAgent         string
	ChromePath        string
}

// DefaultConfiguration returns the timings used against the live calendar
func DefaultConfiguration() Configuration {
	return Configuration{
		BaseURL:           "https://www.forexfactory.com",
		WorkerCount:       3,
		ChunkMonths:       1,
		ReadyTimeout:      15 * time.Second,
		NavigationTimeout: 30 * time.Second,
		ScriptTimeout:     10 * time.Second,
		ScrollSettle:      1500 * time.Millisecond,
		MaxScrollAttempts: 10,
		Politeness:        1500 * time.Millisecond,
		Stagger:           2 * time.Second,
		WarmupWait:        4 * time.Second,
		Headless:          true,
	}
}
