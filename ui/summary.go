package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/go-scripts/econcal/pkg/common"
	"github.com/go-scripts/econcal/pkg/crawl"
)

// Summary describes a finished run
type Summary struct {
	Range    common.DateRange
	Result   crawl.Result
	Path     string
	FileSize int64
	// Exported is the number of rows sent to ClickHouse, -1 when disabled
	Exported int
}

func (s Summary) stats() []struct{ label, value string } {
	res := s.Result
	rate := 0.0
	if res.Elapsed > 0 {
		rate = float64(s.Range.NumDays()) / res.Elapsed.Seconds()
	}

	stats := []struct{ label, value string }{
		{"Range", s.Range.String()},
		{"Days", humanize.Comma(int64(s.Range.NumDays()))},
		{"Chunks", fmt.Sprintf("%d total, %d ok, %d failed, %d cancelled, %d discarded",
			res.Chunks, res.Completed, res.Failed, res.Cancelled, res.Discarded)},
		{"Events", humanize.Comma(int64(len(res.Records)))},
		{"Elapsed", res.Elapsed.Round(time.Millisecond).String()},
		{"Days/Second", fmt.Sprintf("%.2f", rate)},
	}
	if s.Path != "" {
		stats = append(stats, struct{ label, value string }{
			"Output", fmt.Sprintf("%s (%s)", s.Path, humanize.Bytes(uint64(max(s.FileSize, 0)))),
		})
	}
	if s.Exported >= 0 {
		stats = append(stats, struct{ label, value string }{
			"ClickHouse", humanize.Comma(int64(s.Exported)) + " rows",
		})
	}
	return stats
}

// View renders the summary panel
func (s Summary) View() string {
	stats := s.stats()

	width := 0
	for _, stat := range stats {
		width = max(width, len(stat.label)+1)
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("Scrape Summary") + "\n\n")
	for i, stat := range stats {
		label := labelStyle.Render(fmt.Sprintf("%-*s", width, stat.label+":"))
		value := valueStyle.Render(stat.value)
		if stat.label == "Chunks" && (s.Result.Failed > 0 || s.Result.Cancelled > 0) {
			value = warningStyle.Render(stat.value)
		}
		content.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, label, " ", value))
		if i < len(stats)-1 {
			content.WriteString("\n")
		}
	}
	return borderStyle.Render(content.String())
}
