// Package confirmationmatcher pairs a honeypot's outgoing probe requests
// with the asynchronous confirmations scamper reports for them, within a
// bounded time window, and evicts whatever is left over a rolling
// three-batch window.
package confirmationmatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/inetrg/spoki/printer"
	"github.com/inetrg/spoki/record"
)

// EventSource supplies the next batch of triggering events.
type EventSource interface {
	NextBatch(ctx context.Context, blocking bool) ([]record.Event, error)
}

// ConfirmationSource supplies the next batch of probe confirmations.
type ConfirmationSource interface {
	NextBatch(ctx context.Context, blocking bool) ([]record.ProbeConfirmation, error)
}

// Matcher pairs events awaiting a confirmation against confirmations
// awaiting an event, within ProbeTimeout of the triggering packet.
type Matcher struct {
	confirmations ConfirmationSource
	events        EventSource
	probeTimeout  time.Duration

	ccache map[uint32][]*record.ProbeConfirmation
	ecache []*record.Event
	ccnt   int

	lastConfirmationTS time.Time
	lastEventTS        time.Time

	batchIDOrder      []int
	observedBatchIDs  map[int]struct{}
}

// New constructs a Matcher. initialBatchID is the batch id the first
// hourly file the confirmation source opened was assigned; the matcher
// starts tracking a two-batch-wide window anchored just before it, since
// the very first batch from each source may still straddle the hour
// boundary.
func New(confirmations ConfirmationSource, events EventSource, probeTimeout time.Duration, initialBatchID int) *Matcher {
	order := []int{initialBatchID - 1, initialBatchID}
	observed := map[int]struct{}{order[0]: {}, order[1]: {}}
	return &Matcher{
		confirmations:    confirmations,
		events:           events,
		probeTimeout:     probeTimeout,
		ccache:           make(map[uint32][]*record.ProbeConfirmation),
		batchIDOrder:     order,
		observedBatchIDs: observed,
	}
}

func confirmationKey(c record.ProbeConfirmation) string {
	return fmt.Sprintf("%s|%s|%d|%d|%s|%d", c.Src, c.Dst, c.SPort, c.DPort, c.Method, c.UserID)
}

func requestKey(r record.ProbeRequest) string {
	return fmt.Sprintf("%s|%s|%d|%d|%s|%d", r.SAddr, r.DAddr, r.SPort, r.DPort, r.Method, r.UserID)
}

// LoadConfirmations pulls the next batch of confirmations into the cache,
// bucketed by user id.
func (m *Matcher) LoadConfirmations(ctx context.Context, blocking bool) error {
	batch, err := m.confirmations.NextBatch(ctx, blocking)
	if err != nil {
		return err
	}
	for i := range batch {
		con := batch[i]
		if m.lastConfirmationTS.IsZero() || m.lastConfirmationTS.Before(con.Start) {
			m.lastConfirmationTS = con.Start
		}
		m.ccache[con.UserID] = append(m.ccache[con.UserID], &con)
	}
	m.ccnt += len(batch)
	printer.Stdout.Debugf("loaded %d confirmations\n", len(batch))
	return nil
}

// evictConfirmations drops every confirmation stamped with batchID,
// counting non-tcp-rst ones as an "unsure" loss: scamper could not be
// matched back to a probe before we gave up waiting.
func (m *Matcher) evictConfirmations(batchID int) (evicted, unsure int) {
	var emptyKeys []uint32
	for key, confirmations := range m.ccache {
		before := len(confirmations)
		kept := confirmations[:0:0]
		for _, c := range confirmations {
			if c.BatchID == batchID {
				if !c.IsTCPReset() {
					unsure++
				}
				continue
			}
			kept = append(kept, c)
		}
		removed := before - len(kept)
		evicted += removed
		m.ccnt -= removed
		m.ccache[key] = kept
		if len(kept) == 0 {
			emptyKeys = append(emptyKeys, key)
		}
	}
	for _, key := range emptyKeys {
		delete(m.ccache, key)
	}
	return evicted, unsure
}

// evictEvents drops every still-cached event stamped with batchID and
// returns them: these never found a confirmation within the retention
// window.
func (m *Matcher) evictEvents(batchID int) []record.Event {
	var kept []*record.Event
	var dropped []record.Event
	for _, e := range m.ecache {
		if e.BatchID == batchID {
			dropped = append(dropped, *e)
			continue
		}
		kept = append(kept, e)
	}
	m.ecache = kept
	return dropped
}

// FindConfirmation looks for the first cached confirmation matching req
// within ProbeTimeout of pktTS, removing and returning it. Returns nil if
// none matches yet.
func (m *Matcher) FindConfirmation(pktTS time.Time, req record.ProbeRequest) *record.ProbeConfirmation {
	confirmations := m.ccache[req.UserID]
	wantKey := requestKey(req)

	for i, con := range confirmations {
		if confirmationKey(*con) != wantKey {
			continue
		}
		diff := con.Start.Sub(pktTS)
		if diff < 0 {
			diff = -diff
		}
		if diff > m.probeTimeout {
			continue
		}
		confirmations = append(confirmations[:i], confirmations[i+1:]...)
		if len(confirmations) == 0 {
			delete(m.ccache, req.UserID)
		} else {
			m.ccache[req.UserID] = confirmations
		}
		m.ccnt--
		return con
	}
	return nil
}

// LoadEvents pulls the next batch of events into the cache.
func (m *Matcher) LoadEvents(ctx context.Context, blocking bool) error {
	batch, err := m.events.NextBatch(ctx, blocking)
	if err != nil {
		return err
	}
	for i := range batch {
		e := batch[i]
		if m.lastEventTS.IsZero() || m.lastEventTS.Before(e.Packet.Timestamp) {
			m.lastEventTS = e.Packet.Timestamp
		}
		m.ecache = append(m.ecache, &e)
	}
	printer.Stdout.Debugf("loaded %d events\n", len(batch))
	return nil
}

// MatchEvents attempts to pair every cached event with a confirmation,
// passing through events that were never probed unchanged, and evicts the
// oldest batch once three distinct batch ids have been observed.
func (m *Matcher) MatchEvents() []record.Event {
	var results []record.Event
	var unmatched []*record.Event
	idsInBatch := make(map[int]struct{})

	matchedCount := 0
	unprobedCount := 0

	for _, e := range m.ecache {
		idsInBatch[e.BatchID] = struct{}{}
		if e.ProbeRequest == nil {
			unprobedCount++
			results = append(results, *e)
			continue
		}
		con := m.FindConfirmation(e.Packet.Timestamp, *e.ProbeRequest)
		if con != nil {
			e.ProbeConfirmation = con
			results = append(results, *e)
			matchedCount++
			continue
		}
		unmatched = append(unmatched, e)
	}
	m.ecache = unmatched

	for id := range idsInBatch {
		m.observedBatchIDs[id] = struct{}{}
	}

	if len(m.observedBatchIDs) >= 3 {
		oldest := m.batchIDOrder[0]
		_, evictedUnsure := m.evictConfirmations(oldest)
		if dropped := m.evictEvents(oldest); len(dropped) > 0 {
			printer.Stderr.Warningf("discarding %d events of batch %d that never matched a confirmation\n", len(dropped), oldest)
		}

		var newIDs []int
		for id := range m.observedBatchIDs {
			found := false
			for _, existing := range m.batchIDOrder {
				if existing == id {
					found = true
					break
				}
			}
			if !found {
				newIDs = append(newIDs, id)
			}
		}
		m.batchIDOrder = append(m.batchIDOrder, newIDs...)
		delete(m.observedBatchIDs, oldest)
		m.batchIDOrder = m.batchIDOrder[1:]

		printer.Stdout.Debugf("evicted batch %d (%d unsure losses)\n", oldest, evictedUnsure)
	}

	printer.Stdout.Debugf("matched %d events with a confirmation, %d unprobed, %d remaining\n", matchedCount, unprobedCount, len(m.ecache))
	return results
}

// ConfirmationsCached reports the number of confirmations currently held.
func (m *Matcher) ConfirmationsCached() int { return m.ccnt }

// EventsCached reports the number of events currently held.
func (m *Matcher) EventsCached() int { return len(m.ecache) }

// LastConfirmationTimestamp is the timestamp of the most recently loaded
// confirmation.
func (m *Matcher) LastConfirmationTimestamp() time.Time { return m.lastConfirmationTS }

// LastEventTimestamp is the timestamp of the most recently loaded event.
func (m *Matcher) LastEventTimestamp() time.Time { return m.lastEventTS }
