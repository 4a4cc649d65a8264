// Package extract turns a rendered calendar page into event records.
package extract

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/econcal/pkg/common"
)

// Calendar markup selectors
const (
	SelectorTable     = "table.calendar__table"
	SelectorRow       = "tr.calendar__row"
	SelectorSeparator = "td.calendar__date[colspan]"
	SelectorTime      = "td.calendar__time"
	SelectorCurrency  = "td.calendar__currency"
	SelectorImpact    = "td.calendar__impact"
	SelectorEvent     = "td.calendar__event"
	SelectorActual    = "td.calendar__actual"
	SelectorForecast  = "td.calendar__forecast"
	SelectorPrevious  = "td.calendar__previous"

	// SelectorReady matches once the event rows have rendered
	SelectorReady = SelectorTable + " " + SelectorRow
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	clockLayout     = "3:04pm"
)

// ErrTableMissing is returned when the page has no calendar table
var ErrTableMissing = errors.New("calendar table not found")

// Extractor reads event rows off a calendar page
type Extractor struct {
	logger *log.Logger
}

// New creates an Extractor. A nil logger uses the default logger.
func New(logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{logger: logger}
}

type rowKind int

const (
	rowSeparator rowKind = iota
	rowMalformed
	rowEvent
)

type cells struct {
	time, currency, impact, event, actual, forecast, previous Element
}

// Extract returns the events listed on page for day, in row order
func (e *Extractor) Extract(page Page, day time.Time) ([]common.EventRecord, error) {
	table, ok := page.FindOne(SelectorTable)
	if !ok {
		return nil, ErrTableMissing
	}

	date := day.Format(common.DateLayout)
	var (
		records []common.EventRecord
		carried string
	)
	for _, row := range table.FindAll(SelectorRow) {
		kind, c := classify(row)
		if kind != rowEvent {
			continue
		}

		if t := c.time.Text(); t != "" {
			carried = t
		}
		if carried == "" {
			continue
		}

		records = append(records, common.EventRecord{
			Datetime:  e.resolveTimestamp(carried, date),
			Currency:  c.currency.Text(),
			Impact:    impactFromCell(c.impact),
			ImpactRaw: impactTitle(c.impact),
			Event:     eventName(c.event),
			Actual:    c.actual.Text(),
			Forecast:  c.forecast.Text(),
			Previous:  c.previous.Text(),
		})
	}

	e.logger.Debug("extracted day", "date", date, "events", len(records))
	return records, nil
}

func classify(row Element) (rowKind, cells) {
	if _, ok := row.FindOne(SelectorSeparator); ok {
		return rowSeparator, cells{}
	}

	var c cells
	targets := []struct {
		sel string
		dst *Element
	}{
		{SelectorTime, &c.time},
		{SelectorCurrency, &c.currency},
		{SelectorImpact, &c.impact},
		{SelectorEvent, &c.event},
		{SelectorActual, &c.actual},
		{SelectorForecast, &c.forecast},
		{SelectorPrevious, &c.previous},
	}
	for _, tg := range targets {
		el, ok := row.FindOne(tg.sel)
		if !ok {
			return rowMalformed, cells{}
		}
		*tg.dst = el
	}
	return rowEvent, c
}

// resolveTimestamp turns the calendar's time column into a display timestamp
func (e *Extractor) resolveTimestamp(raw, date string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case lower == "all day":
		return date + " 00:00:00"
	case strings.Contains(lower, "tentative"):
		return date + " Tentative"
	}

	clock, err := time.Parse(clockLayout, lower)
	if err != nil {
		e.logger.Warn("unparsable event time, using midnight", "date", date, "time", raw)
		return date + " 00:00:00"
	}
	return date + " " + clock.Format("15:04:05")
}

func impactTitle(cell Element) string {
	span, ok := cell.FindOne("span")
	if !ok {
		return ""
	}
	title, _ := span.Attr("title")
	return strings.TrimSpace(title)
}

func impactFromCell(cell Element) common.Impact {
	return ParseImpact(impactTitle(cell))
}

// ParseImpact maps the impact indicator's title text to an Impact
func ParseImpact(title string) common.Impact {
	t := strings.ToLower(title)
	switch {
	case t == "":
		return common.ImpactNotApplicable
	case strings.Contains(t, "non-economic"), strings.Contains(t, "holiday"):
		return common.ImpactHoliday
	case strings.Contains(t, "low impact expected"):
		return common.ImpactLow
	case strings.Contains(t, "medium impact expected"):
		return common.ImpactMedium
	case strings.Contains(t, "high impact expected"):
		return common.ImpactHigh
	default:
		return common.ImpactUnknown
	}
}

func eventName(cell Element) string {
	if name := cell.Text(); name != "" {
		return name
	}
	if div, ok := cell.FindOne("div"); ok {
		return div.Text()
	}
	return ""
}
