package record

import "encoding/json"

// OutputTag names the kind of assembled record an OutputRecord holds (a lone
// SYN, a SYN with its ACK, or a two-phase match), which decides which of its
// ISyn/IAck/RSyn/RAck slots are populated.
type OutputTag string

const (
	TagIrregularSyn       OutputTag = "isyn"
	TagIrregularSynAcked  OutputTag = "isyn (acked)"
	TagRegularSyn         OutputTag = "rsyn"
	TagRegularSynAcked    OutputTag = "rsyn (acked)"
	TagTwoPhaseNoAck      OutputTag = "two-phase (no ack)"
	TagTwoPhase           OutputTag = "two-phase"
	TagRepeatedConnection OutputTag = "repeated-connection"
)

// OutputRecord is a single line of the assembled event log. Exactly one (for
// the single-slot tags) or a subset (for two-phase tags) of ISyn/IAck/RSyn/
// RAck is populated; the rest are nil.
type OutputRecord struct {
	Timestamp int64
	Tag       OutputTag

	ISyn *Event
	IAck *Event
	RSyn *Event
	RAck *Event

	// Ident identifies a repeated-connection-attempt group; zero when unset.
	Ident uint64
	// ScannerTool is filled in whenever ISyn is populated: the scanning tool
	// guessed from the irregular SYN's IP ID, sequence number, destination
	// port and address, or "unknown" when no fingerprint matches.
	ScannerTool string
}

type jsonOutputRecord struct {
	TS          int64           `json:"ts"`
	Tag         string          `json:"tag"`
	ISyn        json.RawMessage `json:"isyn"`
	IAck        json.RawMessage `json:"iack"`
	RSyn        json.RawMessage `json:"rsyn"`
	RAck        json.RawMessage `json:"rack"`
	Ident       *uint64         `json:"ident,omitempty"`
	ScannerTool string          `json:"scanner_tool,omitempty"`
}

func eventJSONOrNull(e *Event) json.RawMessage {
	if e == nil {
		return json.RawMessage("null")
	}
	return e.ToJSON()
}

// ToJSON renders the record in the assembled-event wire shape.
func (r OutputRecord) ToJSON() json.RawMessage {
	j := jsonOutputRecord{
		TS:          r.Timestamp,
		Tag:         string(r.Tag),
		ISyn:        eventJSONOrNull(r.ISyn),
		IAck:        eventJSONOrNull(r.IAck),
		RSyn:        eventJSONOrNull(r.RSyn),
		RAck:        eventJSONOrNull(r.RAck),
		ScannerTool: r.ScannerTool,
	}
	if r.Ident != 0 {
		j.Ident = &r.Ident
	}
	raw, _ := json.Marshal(j)
	return raw
}
