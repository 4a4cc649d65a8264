// Package dataset orders merged crawl output for export.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-scripts/econcal/pkg/common"
)

const timestampLayout = "2006-01-02 15:04:05"

// ErrUnsortable is returned when a record's timestamp has no usable date.
// The records are then returned in their original order.
var ErrUnsortable = errors.New("records cannot be ordered by timestamp")

// SortKey returns the instant a record sorts at. Timestamps without a clock
// time, such as "2016-03-01 Tentative", sort at midnight of their date.
func SortKey(r common.EventRecord) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, r.Datetime); err == nil {
		return t, nil
	}
	t, err := time.Parse(common.DateLayout, r.Date())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsortable, r.Datetime)
	}
	return t, nil
}

// Finalize returns a copy of records stably sorted by timestamp. The input is
// not modified and Finalize(Finalize(x)) equals Finalize(x).
func Finalize(records []common.EventRecord) ([]common.EventRecord, error) {
	out := make([]common.EventRecord, len(records))
	copy(out, records)

	keys := make([]time.Time, len(out))
	for i, r := range out {
		k, err := SortKey(r)
		if err != nil {
			return out, err
		}
		keys[i] = k
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].Before(keys[idx[b]])
	})

	sorted := make([]common.EventRecord, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted, nil
}
