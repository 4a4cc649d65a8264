// Package chunker splits a date range into month-aligned work units.
package chunker

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-scripts/econcal/pkg/common"
)

// ErrInvalidChunkSize is returned for a non-positive months-per-chunk value
var ErrInvalidChunkSize = errors.New("months per chunk must be at least 1")

// Chunk partitions r into contiguous chunks. Each chunk runs from its start
// date to the last day of the month monthsPerChunk-1 months later, clipped to
// the end of r.
func Chunk(r common.DateRange, monthsPerChunk int) ([]common.DateChunk, error) {
	if monthsPerChunk < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, monthsPerChunk)
	}
	if r.Start.After(r.End) {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidRange, r)
	}

	var chunks []common.DateChunk
	for start := r.Start; !start.After(r.End); {
		end := lastDayOfMonth(start, monthsPerChunk-1)
		if end.After(r.End) {
			end = r.End
		}
		chunks = append(chunks, common.DateChunk{
			DateRange: common.DateRange{Start: start, End: end},
			Index:     len(chunks),
		})
		start = end.AddDate(0, 0, 1)
	}
	return chunks, nil
}

// lastDayOfMonth returns the last date of the month offset months after t
func lastDayOfMonth(t time.Time, offset int) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month()+time.Month(offset)+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1)
}
