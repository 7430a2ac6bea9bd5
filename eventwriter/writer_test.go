package eventwriter

import (
	"bufio"
	"compress/gzip"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inetrg/spoki/record"
)

func TestLogWriterWritesNewlineDelimitedGzipJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewLogWriter(fs, "/out", "example")

	recs := []record.OutputRecord{
		{Timestamp: 1599487200, Tag: record.TagIrregularSyn},
		{Timestamp: 1599487201, Tag: record.TagRegularSyn},
	}
	require.NoError(t, w.WriteElems(recs, "20200907-070000"))
	require.NoError(t, w.Close())

	fh, err := fs.Open("/out/example-events-20200907-070000.json.gz")
	require.NoError(t, err)
	defer fh.Close()

	gz, err := gzip.NewReader(fh)
	require.NoError(t, err)
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Len(t, lines, 2)
}

func TestLogWriterClosesOldestFileAfterThreeOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewLogWriter(fs, "/out", "example")

	for _, ts := range []string{"a", "b", "c"} {
		require.NoError(t, w.WriteElems([]record.OutputRecord{{Timestamp: 1, Tag: record.TagIrregularSyn}}, ts))
	}
	assert.Len(t, w.openFiles, 2)
	require.NoError(t, w.Close())
}

func TestKafkaWriterFailsFast(t *testing.T) {
	_, err := NewKafkaWriter("topic", nil)
	assert.Error(t, err)
}
