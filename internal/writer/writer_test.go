package writer

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/econcal/pkg/common"
)

func sampleRecords() []common.EventRecord {
	return []common.EventRecord{
		{Datetime: "2016-03-01 10:00:00", Currency: "USD", Impact: common.ImpactHigh, Event: "ISM Manufacturing PMI", Actual: "49.5", Forecast: "48.5", Previous: "48.2"},
		{Datetime: "2016-03-01 Tentative", Currency: "EUR", Impact: common.ImpactUnknown, ImpactRaw: "odd", Event: "Eurogroup, Meetings", Previous: "-0.1%"},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, utf8BOM), "missing BOM")

	rows, err := csv.NewReader(bytes.NewReader(raw[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"datetime", "currency", "impact", "event", "actual", "forecast", "previous"}, rows[0])
	assert.Equal(t, []string{"2016-03-01 10:00:00", "USD", "High", "ISM Manufacturing PMI", "49.5", "48.5", "48.2"}, rows[1])
	assert.Equal(t, []string{"2016-03-01 Tentative", "EUR", "Unknown Impact: odd", "Eurogroup, Meetings", "", "", "-0.1%"}, rows[2])
}

func TestWriteCSVHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, string(utf8BOM)+"datetime,currency,impact,event,actual,forecast,previous\n", buf.String())
}

func TestWriteRecords(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := New(dir, "")
	require.NoError(t, err)

	r, err := common.ParseDateRange("2016-03-01", "2016-03-31")
	require.NoError(t, err)

	path, err := w.WriteRecords(r, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "forex_factory_data_20160301_to_20160331.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, utf8BOM))
	assert.Contains(t, string(data), "ISM Manufacturing PMI")
}

func TestFilenamePrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "forex_factory_data_20240101_to_20240105.csv"},
		{"calendar", "calendar_20240101_to_20240105.csv"},
		{"my cal/2024", "my_cal_2024_20240101_to_20240105.csv"},
	}

	r, err := common.ParseDateRange("2024-01-01", "2024-01-05")
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			w, err := New(t.TempDir(), tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, w.Filename(r))
		})
	}
}
