package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/econcal/pkg/common"
)

const maxCellWidth = 40

// Sample shows the first and last rows of a dataset
type Sample struct {
	Head    []common.EventRecord
	Tail    []common.EventRecord
	Omitted int
}

// NewSample takes up to n records from each end of records. Short datasets
// are shown whole.
func NewSample(records []common.EventRecord, n int) Sample {
	if n < 1 {
		return Sample{Omitted: len(records)}
	}
	if len(records) <= 2*n {
		return Sample{Head: records}
	}
	return Sample{
		Head:    records[:n],
		Tail:    records[len(records)-n:],
		Omitted: len(records) - 2*n,
	}
}

// View renders the sample as a fixed-width table
func (s Sample) View() string {
	if len(s.Head) == 0 && len(s.Tail) == 0 {
		return borderStyle.Render(infoStyle.Render("No records"))
	}

	widths := make([]int, len(common.Columns))
	for i, col := range common.Columns {
		widths[i] = len(col)
	}
	for _, rows := range [][]common.EventRecord{s.Head, s.Tail} {
		for _, r := range rows {
			for i, cell := range r.Row() {
				widths[i] = max(widths[i], min(len([]rune(cell)), maxCellWidth))
			}
		}
	}

	format := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], truncate(cell, maxCellWidth))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	lines := []string{titleStyle.Render(format(common.Columns))}
	render := func(rows []common.EventRecord) {
		for _, r := range rows {
			line := format(r.Row())
			if r.Impact == common.ImpactUnknown {
				line = errorStyle.Render(line)
			}
			lines = append(lines, line)
		}
	}
	render(s.Head)
	if s.Omitted > 0 {
		lines = append(lines, infoStyle.Render(fmt.Sprintf("... %d more rows ...", s.Omitted)))
	}
	render(s.Tail)

	return borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
