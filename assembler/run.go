// Package assembler implements the driver loop that ties the confirmation
// matcher and phase matcher together: load a batch, match it, feed
// everything newly matched into the phase matcher, and checkpoint (evict
// and write) once the phase matcher has seen an hour's worth of traffic
// past the last checkpoint.
package assembler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/inetrg/spoki/cmd/internal/cmderr"
	"github.com/inetrg/spoki/confirmationmatcher"
	"github.com/inetrg/spoki/eventwriter"
	"github.com/inetrg/spoki/ingest"
	"github.com/inetrg/spoki/objectstore"
	"github.com/inetrg/spoki/phasematcher"
	"github.com/inetrg/spoki/printer"
	"github.com/inetrg/spoki/record"
)

// confirmationLoadThreshold bounds how far ahead of event time we let
// confirmation loading run, so a quiet confirmation stream doesn't grow the
// cache unbounded while waiting for events that will never be probed.
const confirmationLoadThreshold = 30 * time.Minute

// Config collects everything the assemble subcommand gathers from flags
// and environment before handing off to Run.
type Config struct {
	LogDir       string
	OutDir       string
	Datasource   string
	StartHour    time.Time
	EndDate      time.Time
	ProbeTimeout time.Duration
	PhaseTimeout time.Duration
	Compressed   bool
	CSV          bool

	UseSwift   bool
	S3Bucket   string
	S3Endpoint string

	UseKafka       bool
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaBatchSize int

	HealthAddr   string
	SleepSeconds int
}

// Stats exposes the driver loop's running counters, read by the health
// endpoint.
type Stats struct {
	RunID               string
	BatchesWritten      int
	RecordsWritten      int
	LastCheckpoint      time.Time
	EventsCached        int
	ConfirmationsCached int
}

func makeFileTimestamp(unixTS int64) string {
	return time.Unix(unixTS, 0).UTC().Format("20060102-150405")
}

// Run drives the assembly pipeline until ctx is cancelled or the
// configured end date is reached.
func Run(ctx context.Context, cfg Config) error {
	evSrc, confSrc, err := buildSources(ctx, cfg)
	if err != nil {
		return err
	}

	cm := confirmationmatcher.New(confSrc, evSrc, cfg.ProbeTimeout, 0)
	pm := phasematcher.New(cfg.PhaseTimeout)

	writer, err := buildWriter(cfg)
	if err != nil {
		return err
	}
	defer writer.Close()

	stats := Stats{RunID: loadOrCreateRunID()}
	stopHealth := serveHealth(cfg.HealthAddr, &stats)
	defer stopHealth()

	sleep := time.Duration(cfg.SleepSeconds) * time.Second
	if sleep <= 0 {
		sleep = 5 * time.Second
	}

	nextDumpTS := cfg.StartHour.Add(time.Hour + 30*time.Minute)
	batchToDump := 0

	var events []record.Event

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !cfg.EndDate.IsZero() && !cfg.StartHour.Add(time.Duration(batchToDump)*time.Hour).Before(cfg.EndDate) {
			return nil
		}

		ets := cm.LastEventTimestamp()
		cts := cm.LastConfirmationTimestamp()

		loadConfirmations := cts.IsZero() || ets.IsZero() || cts.Sub(ets) < confirmationLoadThreshold
		loadEvents := ets.IsZero() || cts.IsZero() || ets.Sub(cts) < confirmationLoadThreshold

		if loadConfirmations {
			if err := cm.LoadConfirmations(ctx, true); err != nil {
				return errors.Wrap(err, "loading confirmations")
			}
		}
		if loadEvents {
			if err := cm.LoadEvents(ctx, true); err != nil {
				return errors.Wrap(err, "loading events")
			}
		}

		newEvents := cm.MatchEvents()
		printer.Stdout.Debugf("%d new events\n", len(newEvents))
		events = append(events, newEvents...)

		stats.EventsCached = cm.EventsCached()
		stats.ConfirmationsCached = cm.ConfirmationsCached()

		keepAfter := -1
		checkpointed := false
		for i, event := range events {
			keepAfter = i
			pm.AddEvent(&events[i])
			if !event.Packet.Timestamp.Before(nextDumpTS) {
				checkpointed = true
				pm.TryMatchEverything()
				pm.FindRepeatedConnections()
				pm.EvictRetransmits(batchToDump)
				elems := pm.EvictAndSort(batchToDump)
				printer.Stdout.Debugf("evicting %d elements\n", len(elems))
				if len(elems) > 0 {
					fileTS := makeFileTimestamp(elems[0].Timestamp)
					if err := writer.WriteElems(elems, fileTS); err != nil {
						return errors.Wrap(err, "writing output records")
					}
					stats.BatchesWritten++
					stats.RecordsWritten += len(elems)
					stats.LastCheckpoint = time.Now().UTC()
				}
				nextDumpTS = nextDumpTS.Add(time.Hour)
				batchToDump++
				break
			}
		}

		if keepAfter >= 0 {
			events = events[keepAfter+1:]
		}
		_ = checkpointed

		if len(newEvents) == 0 && !checkpointed {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		}
	}
}

// buildSources picks the local-disk live reader or the S3/Swift hourly
// reader as the event and confirmation sources, depending on cfg.UseSwift.
func buildSources(ctx context.Context, cfg Config) (confirmationmatcher.EventSource, confirmationmatcher.ConfirmationSource, error) {
	if cfg.UseSwift {
		return buildSwiftSources(ctx, cfg)
	}

	fs := afero.NewOsFs()
	eventFactory := ingest.FileFactory{
		Fs:         fs,
		Parser:     ingest.EventParser{},
		Dir:        cfg.LogDir,
		Datasource: cfg.Datasource,
		Proto:      ingest.ProtoTCP,
		LogType:    ingest.LogTypePackets,
		Compressed: cfg.Compressed,
		CSV:        cfg.CSV,
	}
	confFactory := ingest.FileFactory{
		Fs:         fs,
		Parser:     ingest.ConfirmationParser{},
		Dir:        cfg.LogDir,
		Datasource: cfg.Datasource,
		Proto:      ingest.ProtoTCP,
		LogType:    ingest.ConfirmationLogType(cfg.CSV),
		Compressed: cfg.Compressed,
		CSV:        cfg.CSV,
	}

	eventReader := ingest.NewLiveReader(eventFactory, cfg.StartHour, 0)
	confReader := ingest.NewLiveReader(confFactory, cfg.StartHour, 0)
	return eventSource{reader: eventReader}, confirmationSource{reader: confReader}, nil
}

func buildSwiftSources(ctx context.Context, cfg Config) (confirmationmatcher.EventSource, confirmationmatcher.ConfirmationSource, error) {
	if cfg.S3Bucket == "" {
		return nil, nil, cmderr.AssemblerErr{Err: errors.New("--swift requires --s3-bucket")}
	}

	store, err := objectstore.New(ctx, objectstore.Config{
		Bucket:   cfg.S3Bucket,
		Endpoint: cfg.S3Endpoint,
	})
	if err != nil {
		return nil, nil, cmderr.AssemblerErr{Err: errors.Wrap(err, "connecting to object store")}
	}

	evSrc := swiftEventSource{r: &hourlySwiftReader{
		store:      store,
		parser:     ingest.EventParser{},
		datasource: cfg.Datasource,
		proto:      ingest.ProtoTCP,
		logType:    ingest.LogTypePackets,
		csv:        cfg.CSV,
		nextHour:   cfg.StartHour,
	}}
	confSrc := swiftConfirmationSource{r: &hourlySwiftReader{
		store:      store,
		parser:     ingest.ConfirmationParser{},
		datasource: cfg.Datasource,
		proto:      ingest.ProtoTCP,
		logType:    ingest.ConfirmationLogType(cfg.CSV),
		csv:        cfg.CSV,
		nextHour:   cfg.StartHour,
	}}
	return evSrc, confSrc, nil
}

func buildWriter(cfg Config) (eventwriter.Writer, error) {
	if cfg.UseKafka {
		return eventwriter.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers)
	}
	return eventwriter.NewLogWriter(afero.NewOsFs(), cfg.OutDir, cfg.Datasource), nil
}
