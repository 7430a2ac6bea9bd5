package record

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Event bundles a triggering Packet with the ProbeRequest the honeypot
// issued in reaction to it, if any. ProbeConfirmation is filled in later,
// asynchronously, by the confirmation matcher.
type Event struct {
	Packet            Packet
	ProbeRequest      *ProbeRequest
	ProbeConfirmation *ProbeConfirmation

	BatchID int
}

// Key returns the phase matcher's bucket key, delegating to the packet.
func (e Event) Key() string {
	return e.Packet.Key()
}

// SetBatchID stamps the event and cascades the stamp to the packet and, if
// present, the probe request.
func (e *Event) SetBatchID(id int) {
	e.BatchID = id
	e.Packet.SetBatchID(id)
	if e.ProbeRequest != nil {
		e.ProbeRequest.SetBatchID(id)
	}
}

type jsonEvent struct {
	Trigger json.RawMessage `json:"trigger"`
	Reaction json.RawMessage `json:"reaction"`
	ProbeConfirmation json.RawMessage `json:"probe_confirmation,omitempty"`
}

// ToJSON renders the event in the wire {trigger, reaction} envelope, adding
// a probe_confirmation key when a confirmation has been bound.
func (e Event) ToJSON() json.RawMessage {
	j := jsonEvent{Trigger: e.Packet.ToJSON()}
	if e.ProbeRequest != nil {
		j.Reaction = e.ProbeRequest.ToJSON()
	} else {
		j.Reaction = json.RawMessage("null")
	}
	if e.ProbeConfirmation != nil {
		j.ProbeConfirmation = e.ProbeConfirmation.ToJSON()
	}
	raw, _ := json.Marshal(j)
	return raw
}

// EventFromJSON parses an event from its {trigger, reaction} envelope.
func EventFromJSON(raw []byte) (Event, error) {
	var j jsonEvent
	if err := json.Unmarshal(raw, &j); err != nil {
		return Event{}, errors.Wrap(err, "decoding event")
	}
	pkt, err := PacketFromJSON(j.Trigger)
	if err != nil {
		return Event{}, errors.Wrap(err, "decoding event trigger")
	}
	e := Event{Packet: pkt}
	if len(j.Reaction) > 0 && string(j.Reaction) != "null" {
		req, err := ProbeRequestFromJSON(j.Reaction)
		if err != nil {
			return Event{}, errors.Wrap(err, "decoding event reaction")
		}
		e.ProbeRequest = &req
	}
	return e, nil
}

// EventFromCSV parses an event from a pipe-delimited CSV row. The "probed"
// column decides whether a probe request portion is present in the row.
func EventFromCSV(row map[string]string) (Event, error) {
	pkt, err := PacketFromCSV(row)
	if err != nil {
		return Event{}, errors.Wrap(err, "decoding event trigger")
	}
	e := Event{Packet: pkt}
	if row["probed"] == "true" {
		req, err := ProbeRequestFromCSV(row)
		if err != nil {
			return Event{}, errors.Wrap(err, "decoding event reaction")
		}
		e.ProbeRequest = &req
	}
	return e, nil
}
