// Package logging configures the process-wide charm logger.
package logging

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Init configures the default logger and returns it. Unknown levels fall
// back to info; format is "text" or "json".
func Init(level, format string, w io.Writer) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Formatter:       ParseFormat(format),
	})
	log.SetDefault(logger)
	return logger
}

// ParseFormat maps a format name to a charm log formatter
func ParseFormat(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
