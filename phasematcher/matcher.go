// Package phasematcher reconstructs multi-phase TCP scan interactions
// (an irregular scanning-tool SYN, optionally followed later by a full,
// regular TCP handshake) from the stream of events the confirmation
// matcher feeds it, and emits the stitched-together phases as
// record.OutputRecord lines.
package phasematcher

import (
	"sort"
	"time"

	"github.com/OneOfOne/xxhash"

	"github.com/inetrg/spoki/printer"
	"github.com/inetrg/spoki/record"
)

// phaseEntry bundles the up-to-four slots a multi-phase match can
// accumulate as it is built up incrementally across AddEvent calls.
type phaseEntry struct {
	ISyn  *record.Event
	IAck  *record.Event
	RSyn  *record.Event
	RAck  *record.Event
	Ident uint64
}

// Matcher holds every bucket of partially-matched events, keyed by
// record.Event.Key() (source/destination address and port).
type Matcher struct {
	irregularSyns map[string][]*record.Event
	regularSyns   map[string][]*record.Event
	acks          map[string][]*record.Event

	irregularAcked map[string][]*phaseEntry
	regularAcked   map[string][]*phaseEntry
	twoPhaseNoAck  map[string][]*phaseEntry
	twoPhase       map[string][]*phaseEntry

	repeatedConnectionAttempts map[string][]*phaseEntry

	retransmitCache map[int]map[string]struct{}
	retransmitCount map[int]int

	phaseTimeout time.Duration
}

// New constructs an empty Matcher. phaseTimeout bounds how long a regular
// handshake may lag behind the irregular SYN (or its confirmation) it is
// matched against.
func New(phaseTimeout time.Duration) *Matcher {
	return &Matcher{
		irregularSyns:              make(map[string][]*record.Event),
		regularSyns:                make(map[string][]*record.Event),
		acks:                       make(map[string][]*record.Event),
		irregularAcked:             make(map[string][]*phaseEntry),
		regularAcked:               make(map[string][]*phaseEntry),
		twoPhaseNoAck:              make(map[string][]*phaseEntry),
		twoPhase:                   make(map[string][]*phaseEntry),
		repeatedConnectionAttempts: make(map[string][]*phaseEntry),
		retransmitCache:            make(map[int]map[string]struct{}),
		retransmitCount:            make(map[int]int),
		phaseTimeout:               phaseTimeout,
	}
}

func unixSeconds(t time.Time) int64 {
	return t.UTC().Unix()
}

// isWithinTimeout reports whether a regular-phase SYN observed at tsSyn
// arrived at most timeoutSeconds after (or up to one second before, allowing
// for clock skew) the probe confirmation for the irregular SYN it is being
// matched against.
func isWithinTimeout(con *record.ProbeConfirmation, tsSyn int64, timeoutSeconds int64) bool {
	if con == nil {
		return false
	}
	tsCon := unixSeconds(con.Start)
	if tsCon <= tsSyn && (tsSyn-tsCon) <= timeoutSeconds {
		return true
	}
	if tsSyn < tsCon && (tsCon-tsSyn) <= 1 {
		return true
	}
	return false
}

// AddEvent classifies a newly confirmed event and either files it into a
// bucket awaiting a later match, or completes a pending match immediately.
func (m *Matcher) AddEvent(e *record.Event) {
	if e.Packet.Proto == record.ProtoTCP && e.Packet.TCP.Flags.RST {
		return
	}
	if m.IsRetransmit(e) {
		m.retransmitCount[e.BatchID]++
		return
	}

	key := e.Key()
	pkt := e.Packet

	switch {
	case isIrregularSyn(pkt):
		m.irregularSyns[key] = append(m.irregularSyns[key], e)
	case isSyn(pkt):
		if !m.tryMatchRsynToIsyn(e, key) {
			if !m.tryMatchRsynToIsynAcked(e, key) {
				m.regularSyns[key] = append(m.regularSyns[key], e)
			}
		}
	case isAck(pkt):
		if !m.tryMatchAckToRsyn(e, key) {
			if !m.tryMatchAckToIsyn(e, key) {
				if !m.tryMatchAckToTp(e, key) {
					m.acks[key] = append(m.acks[key], e)
				}
			}
		}
	case isSynAck(pkt), isRst(pkt):
		// Nothing to correlate these against.
	default:
		// Unknown flag combination; not part of any phase pattern we track.
	}
}

// TryMatchEverything re-attempts every pending match, used after a batch
// has been fully loaded so that matches aren't missed purely because of
// the order events arrived in within the batch.
func (m *Matcher) TryMatchEverything() {
	matchedLater := 0
	for key, ackList := range m.acks {
		var remaining []*record.Event
		for _, ack := range ackList {
			if m.tryMatchAckToRsyn(ack, key) {
				matchedLater++
				continue
			}
			if m.tryMatchAckToIsyn(ack, key) {
				matchedLater++
				continue
			}
			if m.tryMatchAckToTp(ack, key) {
				matchedLater++
				continue
			}
			remaining = append(remaining, ack)
		}
		m.acks[key] = remaining
	}
	printer.Stdout.Debugf("matched %d acks\n", matchedLater)

	matchedLater = 0
	for key, rsyns := range m.regularSyns {
		matchedIndex := -1
		for i, rsyn := range rsyns {
			if m.tryMatchRsynToIsyn(rsyn, key) {
				matchedIndex = i
				matchedLater++
				break
			}
			if m.tryMatchRsynToIsynAcked(rsyn, key) {
				matchedIndex = i
				matchedLater++
				break
			}
		}
		if matchedIndex >= 0 {
			m.regularSyns[key] = append(rsyns[:matchedIndex], rsyns[matchedIndex+1:]...)
		}
	}
	printer.Stdout.Debugf("matched %d phases (rsyns)\n", matchedLater)

	matchedLater = 0
	for key, rseqs := range m.regularAcked {
		matchedIndex := -1
		for i, rseq := range rseqs {
			if m.tryMatchRsynAckedToIsyn(rseq, key) {
				matchedIndex = i
				matchedLater++
				break
			}
			if m.tryMatchRsynAckedToIsynAcked(rseq, key) {
				matchedIndex = i
				matchedLater++
				break
			}
		}
		if matchedIndex >= 0 {
			m.regularAcked[key] = append(rseqs[:matchedIndex], rseqs[matchedIndex+1:]...)
		}
	}
	printer.Stdout.Debugf("matched %d phases (acked rsyns)\n", matchedLater)
}

// FindRepeatedConnections looks for regular, acked handshakes that are
// really a second connection attempt against a target that already has a
// two-phase match on file (with or without its second-phase ACK), so they
// don't spawn a duplicate
// two-phase record of their own. Matches are tagged with a stable ident
// and then discarded, the same as upstream: they exist to suppress noise,
// not to be emitted.
func (m *Matcher) FindRepeatedConnections() {
	removed := 0
	for key, rseqs := range m.regularAcked {
		var keep []*phaseEntry
		for _, rseq := range rseqs {
			if m.tryMatchRsynAckedToTpNoAck(rseq, key) {
				removed++
				continue
			}
			if m.tryMatchRsynAckedToTp(rseq, key) {
				removed++
				continue
			}
			keep = append(keep, rseq)
		}
		if len(keep) == 0 {
			delete(m.regularAcked, key)
		} else {
			m.regularAcked[key] = keep
		}
	}
	printer.Stdout.Debugf("matched %d reg. seq. to an earlier first phase\n", removed)
}

func computeIdent(isyn *record.Event) uint64 {
	h := xxhash.New64()
	buf := make([]byte, 0, 16)
	ts := unixSeconds(isyn.Packet.Timestamp)
	buf = appendInt64(buf, ts)
	buf = appendUint16(buf, isyn.Packet.TCP.SPort)
	buf = appendUint16(buf, isyn.Packet.IPID)
	buf = appendUint32(buf, isyn.Packet.TCP.ANum)
	h.Write(buf)
	return h.Sum64()
}

func appendInt64(b []byte, v int64) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// EvictAndSort drops every event stamped with batchID out of every bucket,
// rendering the finished ones (irregular/regular SYNs still unmatched, and
// every multi-phase combination) as OutputRecords sorted by trigger
// timestamp.
func (m *Matcher) EvictAndSort(batchID int) []record.OutputRecord {
	var elems []record.OutputRecord

	elems = append(elems, m.filterSingleSlot(m.irregularSyns, batchID, record.TagIrregularSyn, true)...)
	elems = append(elems, m.filterSingleSlot(m.regularSyns, batchID, record.TagRegularSyn, false)...)
	m.filterSingleSlot(m.acks, batchID, "ack", false) // cleanup only, never written

	elems = append(elems, m.filterPairSlot(m.irregularAcked, batchID, record.TagIrregularSynAcked, func(p *phaseEntry) *record.Event { return p.ISyn })...)
	elems = append(elems, m.filterPairSlot(m.regularAcked, batchID, record.TagRegularSynAcked, func(p *phaseEntry) *record.Event { return p.RSyn })...)
	elems = append(elems, m.filterPairSlot(m.twoPhaseNoAck, batchID, record.TagTwoPhaseNoAck, func(p *phaseEntry) *record.Event { return p.ISyn })...)
	elems = append(elems, m.filterPairSlot(m.twoPhase, batchID, record.TagTwoPhase, func(p *phaseEntry) *record.Event { return p.ISyn })...)

	m.repeatedConnectionAttempts = make(map[string][]*phaseEntry)

	sort.Slice(elems, func(i, j int) bool { return elems[i].Timestamp < elems[j].Timestamp })
	printer.Stdout.Debugf("evicted %d elements for batch %d\n", len(elems), batchID)
	return elems
}

func (m *Matcher) filterSingleSlot(buckets map[string][]*record.Event, batchID int, tag record.OutputTag, write bool) []record.OutputRecord {
	var out []record.OutputRecord
	var emptyKeys []string
	for key, evs := range buckets {
		var keep []*record.Event
		for _, ev := range evs {
			if ev.BatchID != batchID {
				keep = append(keep, ev)
				continue
			}
			if write {
				rec := record.OutputRecord{Timestamp: unixSeconds(ev.Packet.Timestamp), Tag: tag}
				switch tag {
				case record.TagIrregularSyn:
					rec.ISyn = ev
					rec.ScannerTool = scannerTool(ev.Packet)
				case record.TagRegularSyn:
					rec.RSyn = ev
				}
				out = append(out, rec)
			}
		}
		if len(keep) == 0 {
			emptyKeys = append(emptyKeys, key)
		} else {
			buckets[key] = keep
		}
	}
	for _, key := range emptyKeys {
		delete(buckets, key)
	}
	return out
}

// filterPairSlot evicts every phaseEntry in buckets whose governing event
// (the slot that decides both the entry's batch id and its emitted
// timestamp — the irregular SYN for isyn-rooted buckets, the regular SYN
// for a plain rsyn-acked entry with no irregular SYN on file) was stamped
// with batchID, rendering them as OutputRecords.
func (m *Matcher) filterPairSlot(buckets map[string][]*phaseEntry, batchID int, tag record.OutputTag, governingEvent func(*phaseEntry) *record.Event) []record.OutputRecord {
	var out []record.OutputRecord
	var emptyKeys []string
	for key, entries := range buckets {
		var keep []*phaseEntry
		for _, p := range entries {
			gov := governingEvent(p)
			if gov.BatchID != batchID {
				keep = append(keep, p)
				continue
			}
			rec := record.OutputRecord{
				Timestamp: unixSeconds(gov.Packet.Timestamp),
				Tag:       tag,
				ISyn:      p.ISyn,
				IAck:      p.IAck,
				RSyn:      p.RSyn,
				RAck:      p.RAck,
			}
			if p.ISyn != nil {
				rec.ScannerTool = scannerTool(p.ISyn.Packet)
			}
			out = append(out, rec)
		}
		if len(keep) == 0 {
			emptyKeys = append(emptyKeys, key)
		} else {
			buckets[key] = keep
		}
	}
	for _, key := range emptyKeys {
		delete(buckets, key)
	}
	return out
}

// EvictRetransmits drops the retransmit-signature cache for batchID, once
// the signatures recorded against the previous batch can no longer be
// referenced (the window is only ever two batches wide).
func (m *Matcher) EvictRetransmits(batchID int) {
	delete(m.retransmitCache, batchID)
	delete(m.retransmitCount, batchID)
}
