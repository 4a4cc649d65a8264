package common

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the layout used for dates on the command line and in datasets
const DateLayout = "2006-01-02"

// ErrInvalidRange is returned when a range starts after it ends
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive span of calendar dates, held at UTC midnight
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalises both ends to UTC midnight and checks their order
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Midnight(start), End: Midnight(end)}
	if r.Start.After(r.End) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return r, nil
}

// ParseDateRange builds a range from two YYYY-MM-DD strings
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start date %q: %v", ErrInvalidRange, start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end date %q: %v", ErrInvalidRange, end, err)
	}
	return NewDateRange(s, e)
}

// Midnight truncates t to its calendar date in UTC
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days returns every date in the range in ascending order
func (r DateRange) Days() []time.Time {
	days := make([]time.Time, 0, r.NumDays())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// NumDays returns the number of dates covered, both ends included
func (r DateRange) NumDays() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether the date of t falls inside the range
func (r DateRange) Contains(t time.Time) bool {
	d := Midnight(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// DateChunk is one month-aligned slice of the overall range handed to a worker
type DateChunk struct {
	DateRange
	Index int
}
