package assembler

import (
	"context"

	"github.com/pkg/errors"

	"github.com/inetrg/spoki/ingest"
	"github.com/inetrg/spoki/record"
)

// eventSource adapts an ingest.LiveReader reading *record.Event entries to
// confirmationmatcher.EventSource.
type eventSource struct {
	reader *ingest.LiveReader
}

func (s eventSource) NextBatch(ctx context.Context, blocking bool) ([]record.Event, error) {
	entries, err := s.reader.NextBatch(ctx, blocking)
	if err != nil {
		return nil, err
	}
	events := make([]record.Event, 0, len(entries))
	for _, entry := range entries {
		e, ok := entry.(*record.Event)
		if !ok {
			return nil, errors.Errorf("event reader produced unexpected entry type %T", entry)
		}
		events = append(events, *e)
	}
	return events, nil
}

// confirmationSource adapts an ingest.LiveReader reading
// *record.ProbeConfirmation entries to confirmationmatcher.ConfirmationSource.
type confirmationSource struct {
	reader *ingest.LiveReader
}

func (s confirmationSource) NextBatch(ctx context.Context, blocking bool) ([]record.ProbeConfirmation, error) {
	entries, err := s.reader.NextBatch(ctx, blocking)
	if err != nil {
		return nil, err
	}
	confirmations := make([]record.ProbeConfirmation, 0, len(entries))
	for _, entry := range entries {
		c, ok := entry.(*record.ProbeConfirmation)
		if !ok {
			return nil, errors.Errorf("confirmation reader produced unexpected entry type %T", entry)
		}
		confirmations = append(confirmations, *c)
	}
	return confirmations, nil
}
