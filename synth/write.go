package synth

import (
	"bytes"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/inetrg/spoki/ingest"
)

// Write renders res as newline-delimited JSON log files under dir, using
// the same hourly naming scheme the live honeypot writer uses, so the
// assemble subcommand can read them back directly with --csv=false.
func Write(fs afero.Fs, dir, datasource string, hour time.Time, res Result) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	eventPath := filepath.Join(dir, ingest.LocalFilename(hour, datasource, ingest.ProtoTCP, ingest.LogTypePackets, false, false))
	if err := writeJSONLines(fs, eventPath, len(res.Events), func(i int) []byte {
		return res.Events[i].ToJSON()
	}); err != nil {
		return errors.Wrap(err, "writing events")
	}

	if len(res.Confirmations) == 0 {
		return nil
	}

	conPath := filepath.Join(dir, ingest.LocalFilename(hour, datasource, ingest.ProtoTCP, ingest.ConfirmationLogType(false), false, false))
	if err := writeJSONLines(fs, conPath, len(res.Confirmations), func(i int) []byte {
		return res.Confirmations[i].ToJSON()
	}); err != nil {
		return errors.Wrap(err, "writing confirmations")
	}
	return nil
}

func writeJSONLines(fs afero.Fs, path string, n int, line func(i int) []byte) error {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		buf.Write(line(i))
		buf.WriteByte('\n')
	}
	return afero.WriteFile(fs, path, buf.Bytes(), 0o644)
}
