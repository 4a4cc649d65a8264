package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-scripts/econcal/pkg/common"
)

// DefaultPrefix is the file name prefix used when none is configured
const DefaultPrefix = "forex_factory_data"

// utf8BOM lets spreadsheet tools detect the encoding
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileWriter handles writing datasets to CSV files
type FileWriter struct {
	outputDir string
	prefix    string
}

// New creates a new FileWriter instance, creating outputDir if needed
func New(outputDir, prefix string) (*FileWriter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	prefix = sanitizeFilename(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &FileWriter{outputDir: outputDir, prefix: prefix}, nil
}

// Filename returns the dataset file name for r, e.g.
// forex_factory_data_20240101_to_20240131.csv
func (w *FileWriter) Filename(r common.DateRange) string {
	return fmt.Sprintf("%s_%s_to_%s.csv", w.prefix, r.Start.Format("20060102"), r.End.Format("20060102"))
}

// WriteRecords writes records for r and returns the path written
func (w *FileWriter) WriteRecords(r common.DateRange, records []common.EventRecord) (string, error) {
	path := filepath.Join(w.outputDir, w.Filename(r))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteCSV(file, records); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return path, nil
}

// WriteCSV writes a BOM, the header row and one row per record
func WriteCSV(out io.Writer, records []common.EventRecord) error {
	if _, err := out.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(common.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// sanitizeFilename replaces characters that are unsafe in file names
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	for _, char := range unsafe {
		name = strings.ReplaceAll(name, char, "_")
	}
	return name
}
