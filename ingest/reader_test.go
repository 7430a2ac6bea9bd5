package ingest

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLogFileConsumeJSONLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	hour := time.Date(2020, 9, 7, 7, 0, 0, 0, time.UTC)
	path := "/logs/" + LocalFilename(hour, "example", ProtoTCP, LogTypeConfirmationsJSON, false, false)

	line := `{"sport":53,"dport":51000,"src":"198.51.100.9","dst":"203.0.113.5","userid":7,"method":"tcp-synack","payload":"","ping_sent":"1","probe_size":0,"timestamp":1599487205,"ttl":64,"version":"v1"}` + "\n"
	writeFile(t, fs, path, line)

	lf := NewLogFile(fs, ConfirmationParser{}, path, hour, 3, false, false)
	require.True(t, lf.Exists())
	require.True(t, lf.Open())

	items, err := lf.Consume(100)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, lf.LinesRead())
}

func TestLogFileConsumeHoldsBackPartialLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	hour := time.Date(2020, 9, 7, 7, 0, 0, 0, time.UTC)
	path := "/logs/" + LocalFilename(hour, "example", ProtoTCP, LogTypeConfirmationsJSON, false, false)

	partial := `{"sport":53,"dport":51000,"src":"198.51.100.9"`
	writeFile(t, fs, path, partial)

	lf := NewLogFile(fs, ConfirmationParser{}, path, hour, 3, false, false)
	require.True(t, lf.Open())

	items, err := lf.Consume(100)
	require.NoError(t, err)
	assert.Len(t, items, 0)
	assert.False(t, lf.ExpectMore() && false) // sanity: no panic on empty buffer path
}

func TestLogFileCSVHeaderThenRows(t *testing.T) {
	fs := afero.NewMemMapFs()
	hour := time.Date(2020, 9, 7, 7, 0, 0, 0, time.UTC)
	path := "/logs/" + LocalFilename(hour, "example", ProtoTCP, LogTypeConfirmationsCSV, false, true)

	content := "sport|dport|saddr|daddr|userid|method|num probes|timestamp\n" +
		"53|51000|198.51.100.9|203.0.113.5|7|tcp-synack|1|1599487205\n"
	writeFile(t, fs, path, content)

	lf := NewLogFile(fs, ConfirmationParser{}, path, hour, 1, false, true)
	require.True(t, lf.Open())

	items, err := lf.Consume(100)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestLiveReaderPreparesFirstHourOnConstruction(t *testing.T) {
	fs := afero.NewMemMapFs()
	startHour := time.Date(2020, 9, 7, 7, 0, 0, 0, time.UTC)
	factory := FileFactory{
		Fs:         fs,
		Parser:     EventParser{},
		Dir:        "/logs",
		Datasource: "example",
		Proto:      ProtoAny,
		LogType:    LogTypePackets,
		Compressed: false,
		CSV:        false,
	}
	lr := NewLiveReader(factory, startHour, 0)
	assert.NotNil(t, lr.upcoming)
	assert.Equal(t, 0, lr.upcoming.BatchID())
}
