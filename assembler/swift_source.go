package assembler

import (
	"bufio"
	"compress/gzip"
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/inetrg/spoki/ingest"
	"github.com/inetrg/spoki/objectstore"
	"github.com/inetrg/spoki/record"
)

// hourlySwiftReader replays one hourly object per call to nextBatch,
// advancing the read cursor an hour at a time; unlike the live local-disk
// reader it never waits for a file to appear, since archived data is
// assumed complete.
type hourlySwiftReader struct {
	store      *objectstore.Reader
	parser     ingest.Parser
	datasource string
	proto      ingest.Proto
	logType    ingest.LogType
	csv        bool

	nextHour time.Time
	batchID  int
}

func (r *hourlySwiftReader) nextBatch(ctx context.Context) ([]ingest.Entry, error) {
	key := ingest.ObjectStoreKey(r.nextHour, r.datasource, r.proto, r.logType, r.csv)
	batchID := r.batchID
	r.batchID++
	r.nextHour = r.nextHour.Add(time.Hour)

	body, err := r.store.Get(ctx, key)
	if err != nil {
		// Archived hours are sparse; a missing object just means no
		// traffic was recorded that hour.
		return nil, nil
	}
	defer body.Close()

	gz, err := gzip.NewReader(body)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %q", key)
	}

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var header []string
	var entries []ingest.Entry
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var entry ingest.Entry
		if r.csv {
			if header == nil {
				header = record.ParseCSVHeader(line)
				continue
			}
			row := record.ParseCSVRow(header, line)
			entry, err = r.parser.FromCSV(row)
		} else {
			entry, err = r.parser.FromJSON([]byte(line))
		}
		if err != nil {
			continue
		}
		entry.SetBatchID(batchID)
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %q", key)
	}
	return entries, nil
}

type swiftEventSource struct{ r *hourlySwiftReader }

func (s swiftEventSource) NextBatch(ctx context.Context, blocking bool) ([]record.Event, error) {
	entries, err := s.r.nextBatch(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]record.Event, 0, len(entries))
	for _, e := range entries {
		events = append(events, *e.(*record.Event))
	}
	return events, nil
}

type swiftConfirmationSource struct{ r *hourlySwiftReader }

func (s swiftConfirmationSource) NextBatch(ctx context.Context, blocking bool) ([]record.ProbeConfirmation, error) {
	entries, err := s.r.nextBatch(ctx)
	if err != nil {
		return nil, err
	}
	confirmations := make([]record.ProbeConfirmation, 0, len(entries))
	for _, e := range entries {
		confirmations = append(confirmations, *e.(*record.ProbeConfirmation))
	}
	return confirmations, nil
}
