package phasematcher

import (
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inetrg/spoki/record"
)

func synEvent(batchID int, irregular bool, ts time.Time, confirmed bool) *record.Event {
	opts := []string{"mss"}
	ipid := uint16(1111)
	ttl := uint8(64)
	// The two phases carry different sequence numbers, so a regular SYN is
	// not taken for a retransmit of the irregular one.
	snum := uint32(2)
	if irregular {
		opts = nil
		ipid = 54321
		snum = 1
	}
	pkt := record.Packet{
		Timestamp: ts,
		SAddr:     net.ParseIP("203.0.113.5"),
		DAddr:     net.ParseIP("198.51.100.9"),
		IPID:      ipid,
		TTL:       ttl,
		Proto:     record.ProtoTCP,
		TCP: &record.TCPPayload{
			SPort: 51000, DPort: 22, SNum: snum, ANum: 0,
			Flags: record.TCPFlags{SYN: true}, Options: opts,
		},
	}
	req := &record.ProbeRequest{
		SAddr: pkt.DAddr, DAddr: pkt.SAddr, SPort: 22, DPort: 51000,
		ANum: 100, SNum: 0, Method: "tcp-synack",
	}
	e := &record.Event{Packet: pkt, ProbeRequest: req}
	e.SetBatchID(batchID)
	if confirmed {
		e.ProbeConfirmation = &record.ProbeConfirmation{Start: ts}
	}
	return e
}

func ackEvent(batchID int, ts time.Time) *record.Event {
	pkt := record.Packet{
		Timestamp: ts,
		SAddr:     net.ParseIP("203.0.113.5"),
		DAddr:     net.ParseIP("198.51.100.9"),
		Proto:     record.ProtoTCP,
		TCP: &record.TCPPayload{
			SPort: 51000, DPort: 22, SNum: 100, ANum: 2,
			Flags: record.TCPFlags{ACK: true},
		},
	}
	e := &record.Event{Packet: pkt}
	e.SetBatchID(batchID)
	return e
}

func TestAddEventFilesIrregularSynSeparately(t *testing.T) {
	m := New(10 * time.Minute)
	ts := time.Unix(1599487200, 0).UTC()
	isyn := synEvent(0, true, ts, false)
	m.AddEvent(isyn)

	assert.Len(t, m.irregularSyns[isyn.Key()], 1)
	assert.Len(t, m.regularSyns, 0)
}

func TestRegularSynMatchesIrregularSynWithinTimeout(t *testing.T) {
	m := New(10 * time.Minute)
	base := time.Unix(1599487200, 0).UTC()

	isyn := synEvent(0, true, base, true)
	m.AddEvent(isyn)

	rsyn := synEvent(0, false, base.Add(30*time.Second), false)
	m.AddEvent(rsyn)

	assert.Len(t, m.irregularSyns, 0)
	assert.Len(t, m.twoPhaseNoAck[rsyn.Key()], 1)
}

func TestAckCompletesIrregularSynHandshake(t *testing.T) {
	m := New(10 * time.Minute)
	base := time.Unix(1599487200, 0).UTC()

	isyn := synEvent(0, true, base, false)
	m.AddEvent(isyn)

	ack := ackEvent(0, base.Add(1*time.Second))
	m.AddEvent(ack)

	assert.Len(t, m.irregularSyns, 0)
	assert.Len(t, m.irregularAcked[isyn.Key()], 1)
	assert.Len(t, m.acks, 0)
}

func TestRetransmitIsSuppressed(t *testing.T) {
	m := New(10 * time.Minute)
	base := time.Unix(1599487200, 0).UTC()

	first := synEvent(0, true, base, false)
	m.AddEvent(first)
	assert.Len(t, m.irregularSyns[first.Key()], 1)

	dup := synEvent(0, true, base.Add(time.Second), false)
	// Same 5-tuple + sequence number as first -> retransmit, dropped.
	m.AddEvent(dup)
	assert.Len(t, m.irregularSyns[dup.Key()], 1)
}

func TestEvictAndSortWritesIrregularSynWithScannerTool(t *testing.T) {
	m := New(10 * time.Minute)
	base := time.Unix(1599487200, 0).UTC()
	isyn := synEvent(0, true, base, false)
	m.AddEvent(isyn)

	records := m.EvictAndSort(0)
	require.Len(t, records, 1)
	assert.Equal(t, record.TagIrregularSyn, records[0].Tag)
	assert.Equal(t, "zmap", records[0].ScannerTool)
}

func TestEvictAndSortProducesExpectedTwoPhaseRecord(t *testing.T) {
	m := New(10 * time.Minute)
	base := time.Unix(1599487200, 0).UTC()

	isyn := synEvent(0, true, base, true)
	m.AddEvent(isyn)
	rsyn := synEvent(0, false, base.Add(30*time.Second), false)
	m.AddEvent(rsyn)
	ack := ackEvent(0, base.Add(31*time.Second))
	m.AddEvent(ack)

	records := m.EvictAndSort(0)
	require.Len(t, records, 1)

	want := record.OutputRecord{
		Timestamp:   records[0].Timestamp,
		Tag:         record.TagTwoPhase,
		ISyn:        isyn,
		RSyn:        rsyn,
		RAck:        ack,
		ScannerTool: "zmap",
	}
	if diff := cmp.Diff(want, records[0]); diff != "" {
		t.Errorf("evicted record mismatch (-want +got):\n%s", diff)
	}
}

func TestEvictAndSortProducesExpectedRegularAckedRecord(t *testing.T) {
	m := New(10 * time.Minute)
	base := time.Unix(1599487200, 0).UTC()

	rsyn := synEvent(0, false, base, false)
	m.AddEvent(rsyn)
	ack := ackEvent(0, base.Add(1*time.Second))
	m.AddEvent(ack)

	assert.Len(t, m.regularAcked[rsyn.Key()], 1)

	records := m.EvictAndSort(0)
	require.Len(t, records, 1)

	want := record.OutputRecord{
		Timestamp: records[0].Timestamp,
		Tag:       record.TagRegularSynAcked,
		RSyn:      rsyn,
		RAck:      ack,
	}
	if diff := cmp.Diff(want, records[0]); diff != "" {
		t.Errorf("evicted record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, unixSeconds(rsyn.Packet.Timestamp), records[0].Timestamp)
}

func TestIsWithinTimeoutBoundaries(t *testing.T) {
	con := &record.ProbeConfirmation{Start: time.Unix(1000, 0).UTC()}
	assert.True(t, isWithinTimeout(con, 1005, 10))
	assert.True(t, isWithinTimeout(con, 1010, 10))
	assert.True(t, isWithinTimeout(con, 999, 10))
	assert.False(t, isWithinTimeout(con, 997, 10))
	assert.False(t, isWithinTimeout(nil, 1005, 10))
}
