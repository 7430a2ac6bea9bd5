package ingest

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jpillora/backoff"
	"github.com/spf13/afero"

	"github.com/inetrg/spoki/printer"
	"github.com/inetrg/spoki/util"
)

// skipTime bounds how long we wait for an hourly file to appear before
// giving up on it and moving the read cursor to the next hour.
const skipTime = time.Hour + 5*time.Minute

// FileFactory builds the LogFile for a given hour and batch id, on behalf
// of a LiveReader.
type FileFactory struct {
	Fs         afero.Fs
	Parser     Parser
	Dir        string
	Datasource string
	Proto      Proto
	LogType    LogType
	Compressed bool
	CSV        bool
}

func (f FileFactory) Make(hour time.Time, batchID int) *LogFile {
	name := LocalFilename(hour, f.Datasource, f.Proto, f.LogType, f.Compressed, f.CSV)
	path := filepath.Join(f.Dir, name)
	return NewLogFile(f.Fs, f.Parser, path, hour, batchID, f.Compressed, f.CSV)
}

// LiveReader replays a directory of hourly log files as they appear,
// assigning each hour a monotonically increasing batch id and holding
// several files open concurrently so a straggler doesn't block newer ones.
type LiveReader struct {
	factory      FileFactory
	nextHour     time.Time
	nextBatchID  int
	backoff      *backoff.Backoff
	notFound     *util.NotFoundCache
	upcoming     *LogFile
	files        map[int]*LogFile
}

// NewLiveReader constructs a LiveReader starting at startHour with the
// given initial batch id.
func NewLiveReader(factory FileFactory, startHour time.Time, initialBatchID int) *LiveReader {
	r := &LiveReader{
		factory:     factory,
		nextHour:    startHour,
		nextBatchID: initialBatchID,
		backoff: &backoff.Backoff{
			Min:    1 * time.Second,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
		notFound: util.NewNotFoundCache(10 * time.Second),
		files:    make(map[int]*LogFile),
	}
	r.prepareNextFile()
	return r
}

func (r *LiveReader) prepareNextFile() {
	if r.upcoming != nil {
		printer.Stderr.Warningf("cannot prepare next file: one is already pending\n")
		return
	}
	r.upcoming = r.factory.Make(r.nextHour, r.nextBatchID)
	r.nextBatchID++
	r.nextHour = r.nextHour.Add(time.Hour)
}

// NextBatch blocks (unless blocking is false) until new entries are
// available, polling every open hourly file and rotating in the next one as
// it appears.
func (r *LiveReader) NextBatch(ctx context.Context, blocking bool) ([]Entry, error) {
	var items []Entry

	for len(items) == 0 {
		idsToDelete := make([]int, 0)

		for batchID, lf := range r.files {
			newItems, err := lf.Consume(100000)
			if err != nil {
				return nil, err
			}
			if len(newItems) > 0 {
				items = append(items, newItems...)
			} else if !lf.ExpectMore() {
				printer.Stdout.Debugf("retiring batch %d (%s, %d lines)\n", batchID, lf.Hour(), lf.LinesRead())
				idsToDelete = append(idsToDelete, batchID)
			}
		}

		openedNewFile := false
		if len(items) == 0 {
			if r.upcoming == nil {
				r.prepareNextFile()
			}
			path := r.upcoming.Filepath()
			exists := !r.notFound.RecentlyNotFound(path) && r.upcoming.Exists()
			if exists {
				r.notFound.Forget(path)
				if r.upcoming.Open() {
					r.files[r.upcoming.BatchID()] = r.upcoming
					r.upcoming = nil
					openedNewFile = true
				} else {
					printer.Stderr.Errorf("failed to open %q\n", r.upcoming.Filepath())
				}
			} else {
				r.notFound.Remember(path)
			}
			if !exists && time.Now().UTC().After(r.upcoming.Hour().Add(skipTime)) {
				printer.Stdout.Debugf("skipping hour %s, file never appeared\n", r.upcoming.Hour())
				r.upcoming = nil
				r.prepareNextFile()
			}
		}

		for _, id := range idsToDelete {
			lf := r.files[id]
			lf.Close()
			delete(r.files, id)
		}

		if len(items) == 0 && !openedNewFile {
			if !blocking {
				return nil, nil
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff.Duration()):
			}
			continue
		}
		r.backoff.Reset()
	}

	return items, nil
}
