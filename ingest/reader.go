// Package ingest implements the hourly, batch-oriented reading of honeypot
// packet and confirmation streams off local disk or an S3-compatible object
// store, including tolerance for files that are still being written.
package ingest

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/inetrg/spoki/printer"
	"github.com/inetrg/spoki/record"
)

// Entry is anything a log line parses into that can be stamped with the
// batch id of the file it came from.
type Entry interface {
	SetBatchID(id int)
}

// Parser converts raw log lines into Entry values for one record kind
// (events or confirmations), in either wire format.
type Parser interface {
	FromJSON(raw []byte) (Entry, error)
	FromCSV(row map[string]string) (Entry, error)
}

// EventParser parses Entry values backed by *record.Event.
type EventParser struct{}

func (EventParser) FromJSON(raw []byte) (Entry, error) {
	e, err := record.EventFromJSON(raw)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (EventParser) FromCSV(row map[string]string) (Entry, error) {
	e, err := record.EventFromCSV(row)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ConfirmationParser parses Entry values backed by *record.ProbeConfirmation.
type ConfirmationParser struct{}

func (ConfirmationParser) FromJSON(raw []byte) (Entry, error) {
	c, err := record.ProbeConfirmationFromJSON(raw)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (ConfirmationParser) FromCSV(row map[string]string) (Entry, error) {
	c, err := record.ProbeConfirmationFromCSV(row)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LogFile is a single hourly log file that might still be actively written
// by the honeypot at the moment it is opened.
type LogFile struct {
	fs         afero.Fs
	parser     Parser
	filepath   string
	hour       time.Time
	batchID    int
	compressed bool
	csv        bool

	fh   io.ReadCloser
	br   *bufio.Reader
	open bool

	// Partial-line buffer for still-growing JSON files.
	pending []byte

	header      []string
	foundHeader bool

	linesRead      int
	lastReadGotData bool

	// timeout marks the point (hour plus 70 minutes) past which an open
	// file whose last read returned nothing is treated as complete.
	timeout time.Time
}

// NewLogFile constructs a LogFile for the given hour without opening it.
func NewLogFile(fs afero.Fs, parser Parser, filepath string, hour time.Time, batchID int, compressed, csv bool) *LogFile {
	return &LogFile{
		fs:              fs,
		parser:          parser,
		filepath:        filepath,
		hour:            hour,
		batchID:         batchID,
		compressed:      compressed,
		csv:             csv,
		lastReadGotData: true,
		timeout:         hour.Add(time.Hour + 10*time.Minute),
	}
}

func (f *LogFile) BatchID() int { return f.batchID }
func (f *LogFile) Hour() time.Time { return f.hour }
func (f *LogFile) Filepath() string { return f.filepath }
func (f *LogFile) LinesRead() int { return f.linesRead }

// Exists reports whether the underlying file has appeared on disk yet.
func (f *LogFile) Exists() bool {
	info, err := f.fs.Stat(f.filepath)
	return err == nil && !info.IsDir()
}

// IsOpen reports whether Open has succeeded already.
func (f *LogFile) IsOpen() bool {
	return f.open
}

// Open opens the underlying file, optionally through gzip decompression.
func (f *LogFile) Open() bool {
	if !f.Exists() {
		return false
	}
	fh, err := f.fs.Open(f.filepath)
	if err != nil {
		printer.Stderr.Warningf("opening %q: %s\n", f.filepath, err)
		return false
	}
	var r io.Reader = fh
	if f.compressed {
		gz, err := newGzipReader(fh)
		if err != nil {
			printer.Stderr.Warningf("opening gzip stream %q: %s\n", f.filepath, err)
			fh.Close()
			return false
		}
		r = gz
	}
	f.fh = fh
	f.br = bufio.NewReader(r)
	f.open = true
	printer.Stdout.Debugf("opened %q\n", f.filepath)
	return true
}

// Consume reads up to num newly-available, complete lines and parses them.
// Lines that are not yet newline-terminated are held back until the next
// call, tolerating a honeypot process still writing the file.
func (f *LogFile) Consume(num int) ([]Entry, error) {
	if !f.open {
		return nil, errors.New("consume called on a file that was never opened")
	}

	var items []Entry
	for i := 0; i < num; i++ {
		line, err := f.br.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			break
		}
		complete := len(line) > 0 && line[len(line)-1] == '\n'
		if !complete {
			// Still-growing tail; keep it for the next Consume call.
			f.pending = append(f.pending, line...)
			break
		}
		if len(f.pending) > 0 {
			line = append(f.pending, line...)
			f.pending = nil
		}

		entry, ok, perr := f.parseLine(line)
		if perr != nil {
			printer.Stderr.Warningf("dropping unparsable line in %q: %s\n", f.filepath, perr)
			continue
		}
		if !ok {
			continue
		}
		entry.SetBatchID(f.batchID)
		items = append(items, entry)
		f.linesRead++

		if err != nil {
			break
		}
	}

	f.lastReadGotData = len(items) > 0
	return items, nil
}

func (f *LogFile) parseLine(line []byte) (Entry, bool, error) {
	trimmed := trimNewline(line)
	if len(trimmed) == 0 {
		return nil, false, nil
	}

	if !f.csv {
		if !json.Valid(trimmed) {
			return nil, false, errors.Errorf("invalid json: %q", trimmed)
		}
		entry, err := f.parser.FromJSON(trimmed)
		return entry, entry != nil, err
	}

	if !f.foundHeader {
		f.header = record.ParseCSVHeader(string(trimmed))
		f.foundHeader = true
		return nil, false, nil
	}
	row := record.ParseCSVRow(f.header, string(trimmed))
	entry, err := f.parser.FromCSV(row)
	return entry, entry != nil, err
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// ExpectMore reports whether the file might still grow: either the last
// Consume call yielded data, or we are still inside the file's expected
// one-hour-plus-grace-period writing window.
func (f *LogFile) ExpectMore() bool {
	if f.lastReadGotData {
		return true
	}
	return time.Now().UTC().Before(f.timeout)
}

// Close releases the underlying file handle, if open.
func (f *LogFile) Close() error {
	if !f.open {
		return nil
	}
	f.open = false
	return f.fh.Close()
}
