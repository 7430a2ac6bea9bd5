package phasematcher

import "github.com/inetrg/spoki/record"

// IsRetransmit reports whether e repeats a TCP tuple+sequence-number
// signature already seen in its own batch or the batch immediately before
// it. Non-TCP packets (and TCP packets whose tuple can't collide, since
// the comparison is always against full 5-tuple + sequence number) are
// never treated as retransmits. The cache only ever needs to look one
// batch back because retransmits observed across a batch boundary still
// carry the same sequence number as the original.
func (m *Matcher) IsRetransmit(e *record.Event) bool {
	if e.Packet.Proto != record.ProtoTCP {
		return false
	}
	tup := e.Packet.Tuple()
	batchID := e.BatchID

	if seen, ok := m.retransmitCache[batchID]; ok {
		if _, found := seen[tup]; found {
			return true
		}
	}

	if batchID > 0 {
		if prevSeen, ok := m.retransmitCache[batchID-1]; ok {
			if _, found := prevSeen[tup]; found {
				m.rememberTuple(batchID, tup)
				return true
			}
		}
	}

	m.rememberTuple(batchID, tup)
	return false
}

func (m *Matcher) rememberTuple(batchID int, tup string) {
	seen, ok := m.retransmitCache[batchID]
	if !ok {
		seen = make(map[string]struct{})
		m.retransmitCache[batchID] = seen
	}
	seen[tup] = struct{}{}
}
