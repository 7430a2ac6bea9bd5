package confirmationmatcher

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inetrg/spoki/record"
)

type fakeEventSource struct{ batches [][]record.Event }

func (f *fakeEventSource) NextBatch(ctx context.Context, blocking bool) ([]record.Event, error) {
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

type fakeConfirmationSource struct{ batches [][]record.ProbeConfirmation }

func (f *fakeConfirmationSource) NextBatch(ctx context.Context, blocking bool) ([]record.ProbeConfirmation, error) {
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func probedEvent(userID uint32, batchID int, ts time.Time) record.Event {
	saddr := net.ParseIP("203.0.113.5")
	daddr := net.ParseIP("198.51.100.9")
	pkt := record.Packet{
		Timestamp: ts,
		SAddr:     saddr,
		DAddr:     daddr,
		Proto:     record.ProtoTCP,
		TCP:       &record.TCPPayload{SPort: 51000, DPort: 22, Flags: record.TCPFlags{SYN: true}},
	}
	req := record.ProbeRequest{
		SAddr: saddr, DAddr: daddr, SPort: 51000, DPort: 22,
		UserID: userID, Method: "tcp-synack",
	}
	e := record.Event{Packet: pkt, ProbeRequest: &req}
	e.SetBatchID(batchID)
	return e
}

func confirmationFor(userID uint32, batchID int, ts time.Time) record.ProbeConfirmation {
	c := record.ProbeConfirmation{
		SPort: 51000, DPort: 22,
		Src: net.ParseIP("203.0.113.5"), Dst: net.ParseIP("198.51.100.9"),
		UserID: userID, Method: "tcp-synack", Start: ts,
	}
	c.SetBatchID(batchID)
	return c
}

func TestMatchEventsPairsWithinTimeout(t *testing.T) {
	ts := time.Unix(1599487200, 0).UTC()
	ev := &fakeEventSource{batches: [][]record.Event{{probedEvent(7, 0, ts)}}}
	con := &fakeConfirmationSource{batches: [][]record.ProbeConfirmation{{confirmationFor(7, 0, ts.Add(2 * time.Second))}}}

	m := New(con, ev, 5*time.Second, 0)
	require.NoError(t, m.LoadEvents(context.Background(), false))
	require.NoError(t, m.LoadConfirmations(context.Background(), false))

	results := m.MatchEvents()
	require.Len(t, results, 1)
	require.NotNil(t, results[0].ProbeConfirmation)
	assert.Equal(t, 0, m.EventsCached())
}

func TestMatchEventsLeavesUnmatchedEventsCached(t *testing.T) {
	ts := time.Unix(1599487200, 0).UTC()
	ev := &fakeEventSource{batches: [][]record.Event{{probedEvent(7, 0, ts)}}}
	con := &fakeConfirmationSource{}

	m := New(con, ev, 5*time.Second, 0)
	require.NoError(t, m.LoadEvents(context.Background(), false))

	results := m.MatchEvents()
	assert.Len(t, results, 0)
	assert.Equal(t, 1, m.EventsCached())
}

func TestUnprobedEventsPassThroughImmediately(t *testing.T) {
	ts := time.Unix(1599487200, 0).UTC()
	e := probedEvent(7, 0, ts)
	e.ProbeRequest = nil
	ev := &fakeEventSource{batches: [][]record.Event{{e}}}
	con := &fakeConfirmationSource{}

	m := New(con, ev, 5*time.Second, 0)
	require.NoError(t, m.LoadEvents(context.Background(), false))

	results := m.MatchEvents()
	require.Len(t, results, 1)
	assert.Nil(t, results[0].ProbeConfirmation)
}

func TestEvictConfirmationsCountsNonResetAsUnsure(t *testing.T) {
	m := New(&fakeConfirmationSource{}, &fakeEventSource{}, 5*time.Second, 0)
	c1 := confirmationFor(1, 9, time.Now())
	c2 := confirmationFor(2, 9, time.Now())
	c2.Method = "tcp-rst"
	m.ccache[1] = []*record.ProbeConfirmation{&c1}
	m.ccache[2] = []*record.ProbeConfirmation{&c2}
	m.ccnt = 2

	evicted, unsure := m.evictConfirmations(9)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, unsure)
}
