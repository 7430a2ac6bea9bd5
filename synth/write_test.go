package synth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inetrg/spoki/ingest"
	"github.com/inetrg/spoki/record"
)

func TestWriteTwoPhaseProducesReadableEventAndConfirmationFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	hour := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	res, err := Generate(ScenarioTwoPhase, hour.Add(5*time.Minute))
	require.NoError(t, err)

	require.NoError(t, Write(fs, "/out", "honeytest", hour, res))

	eventPath := filepath.Join("/out", ingest.LocalFilename(hour, "honeytest", ingest.ProtoTCP, ingest.LogTypePackets, false, false))
	raw, err := afero.ReadFile(fs, eventPath)
	require.NoError(t, err)

	lines := splitLines(raw)
	require.Len(t, lines, 3)
	for _, line := range lines {
		_, err := record.EventFromJSON(line)
		assert.NoError(t, err)
	}

	conPath := filepath.Join("/out", ingest.LocalFilename(hour, "honeytest", ingest.ProtoTCP, ingest.ConfirmationLogType(false), false, false))
	rawCon, err := afero.ReadFile(fs, conPath)
	require.NoError(t, err)
	conLines := splitLines(rawCon)
	require.Len(t, conLines, 2)
	for _, line := range conLines {
		_, err := record.ProbeConfirmationFromJSON(line)
		assert.NoError(t, err)
	}
}

func splitLines(raw []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range raw {
		if b == '\n' {
			if i > start {
				lines = append(lines, raw[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
