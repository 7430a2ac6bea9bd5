package phasematcher

import "github.com/inetrg/spoki/record"

// tryMatchRsynToIsyn looks for an irregular SYN at key whose probe
// confirmation arrived recently enough to plausibly trigger rsyn, a
// regular-handshake SYN to the same (address, port). On a match, it files
// a two-phase-no-ack entry and removes the irregular SYN from its bucket.
func (m *Matcher) tryMatchRsynToIsyn(rsyn *record.Event, key string) bool {
	repertory, ok := m.irregularSyns[key]
	if !ok {
		return false
	}
	tsSyn := unixSeconds(rsyn.Packet.Timestamp)
	for i, isyn := range repertory {
		if isWithinTimeout(isyn.ProbeConfirmation, tsSyn, int64(m.phaseTimeout.Seconds())) {
			m.twoPhaseNoAck[key] = append(m.twoPhaseNoAck[key], &phaseEntry{ISyn: isyn, RSyn: rsyn})
			m.irregularSyns[key] = append(repertory[:i], repertory[i+1:]...)
			if len(m.irregularSyns[key]) == 0 {
				delete(m.irregularSyns, key)
			}
			return true
		}
	}
	return false
}

// tryMatchRsynToIsynAcked is the same match as tryMatchRsynToIsyn, but
// against an irregular SYN that already has its own ACK on file.
func (m *Matcher) tryMatchRsynToIsynAcked(rsyn *record.Event, key string) bool {
	repertory, ok := m.irregularAcked[key]
	if !ok {
		return false
	}
	tsSyn := unixSeconds(rsyn.Packet.Timestamp)
	for i, p1 := range repertory {
		if isWithinTimeout(p1.ISyn.ProbeConfirmation, tsSyn, int64(m.phaseTimeout.Seconds())) {
			p1.RSyn = rsyn
			m.twoPhaseNoAck[key] = append(m.twoPhaseNoAck[key], p1)
			m.irregularAcked[key] = append(repertory[:i], repertory[i+1:]...)
			if len(m.irregularAcked[key]) == 0 {
				delete(m.irregularAcked, key)
			}
			return true
		}
	}
	return false
}

// tryMatchRsynAckedToIsyn matches a second-phase (rsyn, rack) pair
// directly against a still-unacked irregular SYN, completing a full
// two-phase record.
func (m *Matcher) tryMatchRsynAckedToIsyn(p2 *phaseEntry, key string) bool {
	repertory, ok := m.irregularSyns[key]
	if !ok {
		return false
	}
	tsSyn := unixSeconds(p2.RSyn.Packet.Timestamp)
	for i, isyn := range repertory {
		if isWithinTimeout(isyn.ProbeConfirmation, tsSyn, int64(m.phaseTimeout.Seconds())) {
			p2.ISyn = isyn
			m.twoPhase[key] = append(m.twoPhase[key], p2)
			m.irregularSyns[key] = append(repertory[:i], repertory[i+1:]...)
			if len(m.irregularSyns[key]) == 0 {
				delete(m.irregularSyns, key)
			}
			return true
		}
	}
	return false
}

// tryMatchRsynAckedToIsynAcked matches a second-phase (rsyn, rack) pair
// against an irregular SYN that already has its own ACK, completing a full
// two-phase record with all four slots filled.
func (m *Matcher) tryMatchRsynAckedToIsynAcked(p2 *phaseEntry, key string) bool {
	repertory, ok := m.irregularAcked[key]
	if !ok {
		return false
	}
	tsSyn := unixSeconds(p2.RSyn.Packet.Timestamp)
	for i, p1 := range repertory {
		if isWithinTimeout(p1.ISyn.ProbeConfirmation, tsSyn, int64(m.phaseTimeout.Seconds())) {
			p1.RSyn = p2.RSyn
			p1.RAck = p2.RAck
			m.twoPhase[key] = append(m.twoPhase[key], p1)
			m.irregularAcked[key] = append(repertory[:i], repertory[i+1:]...)
			if len(m.irregularAcked[key]) == 0 {
				delete(m.irregularAcked, key)
			}
			return true
		}
	}
	return false
}

// tryMatchAckToIsyn pairs a bare ACK with the irregular SYN it completes
// the handshake for.
func (m *Matcher) tryMatchAckToIsyn(ack *record.Event, key string) bool {
	repertory, ok := m.irregularSyns[key]
	if !ok {
		return false
	}
	for i, syn := range repertory {
		if isMatchingAck(syn.Packet, syn.ProbeRequest, ack.Packet) {
			m.irregularAcked[key] = append(m.irregularAcked[key], &phaseEntry{ISyn: syn, IAck: ack})
			m.irregularSyns[key] = append(repertory[:i], repertory[i+1:]...)
			if len(m.irregularSyns[key]) == 0 {
				delete(m.irregularSyns, key)
			}
			return true
		}
	}
	return false
}

// tryMatchAckToRsyn pairs a bare ACK with the regular SYN it completes the
// handshake for.
func (m *Matcher) tryMatchAckToRsyn(ack *record.Event, key string) bool {
	repertory, ok := m.regularSyns[key]
	if !ok {
		return false
	}
	for i, syn := range repertory {
		if isMatchingAck(syn.Packet, syn.ProbeRequest, ack.Packet) {
			m.regularAcked[key] = append(m.regularAcked[key], &phaseEntry{RSyn: syn, RAck: ack})
			m.regularSyns[key] = append(repertory[:i], repertory[i+1:]...)
			if len(m.regularSyns[key]) == 0 {
				delete(m.regularSyns, key)
			}
			return true
		}
	}
	return false
}

// tryMatchAckToTp pairs a bare ACK with the regular-phase SYN of a
// two-phase match that hasn't seen its ACK yet.
func (m *Matcher) tryMatchAckToTp(ack *record.Event, key string) bool {
	repertory, ok := m.twoPhaseNoAck[key]
	if !ok {
		return false
	}
	for i, p := range repertory {
		if isMatchingAck(p.RSyn.Packet, p.RSyn.ProbeRequest, ack.Packet) {
			p.RAck = ack
			m.twoPhase[key] = append(m.twoPhase[key], p)
			m.twoPhaseNoAck[key] = append(repertory[:i], repertory[i+1:]...)
			if len(m.twoPhaseNoAck[key]) == 0 {
				delete(m.twoPhaseNoAck, key)
			}
			return true
		}
	}
	return false
}

// tryMatchRsynAckedToTpNoAck recognizes rseq as a repeat connection attempt
// against a target whose two-phase match is still awaiting its
// second-phase ACK.
func (m *Matcher) tryMatchRsynAckedToTpNoAck(rseq *phaseEntry, key string) bool {
	repertory, ok := m.twoPhaseNoAck[key]
	if !ok {
		return false
	}
	tsRsyn := unixSeconds(rseq.RSyn.Packet.Timestamp)
	for _, ev := range repertory {
		if isWithinTimeout(ev.ISyn.ProbeConfirmation, tsRsyn, int64(m.phaseTimeout.Seconds())) {
			rseq.Ident = computeIdent(ev.ISyn)
			m.repeatedConnectionAttempts[key] = append(m.repeatedConnectionAttempts[key], rseq)
			return true
		}
	}
	return false
}

// tryMatchRsynAckedToTp recognizes rseq as a repeat connection attempt
// against a target that already has a fully completed two-phase match.
func (m *Matcher) tryMatchRsynAckedToTp(rseq *phaseEntry, key string) bool {
	repertory, ok := m.twoPhase[key]
	if !ok {
		return false
	}
	tsRsyn := unixSeconds(rseq.RSyn.Packet.Timestamp)
	for _, ev := range repertory {
		if isWithinTimeout(ev.ISyn.ProbeConfirmation, tsRsyn, int64(m.phaseTimeout.Seconds())) {
			rseq.Ident = computeIdent(ev.ISyn)
			m.repeatedConnectionAttempts[key] = append(m.repeatedConnectionAttempts[key], rseq)
			return true
		}
	}
	return false
}
