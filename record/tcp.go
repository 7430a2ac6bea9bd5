package record

// TCPFlags mirrors the boolean flag vocabulary of gopacket/layers.TCP, which
// is how the rest of the dependency pack already represents a TCP header.
type TCPFlags struct {
	FIN bool
	SYN bool
	RST bool
	PSH bool
	ACK bool
	URG bool
	ECE bool
	CWR bool
	NS  bool
}

// TCPPayload is the TCP-specific portion of a captured packet.
type TCPPayload struct {
	SPort      uint16
	DPort      uint16
	SNum       uint32
	ANum       uint32
	WindowSize uint16
	Flags      TCPFlags
	Options    []string
	Payload    string
}

type jsonTCPPayload struct {
	SPort      uint16                 `json:"sport"`
	DPort      uint16                 `json:"dport"`
	SNum       uint32                 `json:"snum"`
	ANum       uint32                 `json:"anum"`
	WindowSize uint16                 `json:"window_size"`
	FIN        bool                   `json:"fin"`
	SYN        bool                   `json:"syn"`
	RST        bool                   `json:"rst"`
	PSH        bool                   `json:"psh"`
	ACK        bool                   `json:"ack"`
	URG        bool                   `json:"urg"`
	ECE        bool                   `json:"ece"`
	CWR        bool                   `json:"cwr"`
	NS         bool                   `json:"ns"`
	Options    map[string]interface{} `json:"options,omitempty"`
	Payload    string                 `json:"payload"`
}

func (p TCPPayload) toJSON() jsonTCPPayload {
	opts := make(map[string]interface{}, len(p.Options))
	for _, o := range p.Options {
		opts[o] = true
	}
	return jsonTCPPayload{
		SPort:      p.SPort,
		DPort:      p.DPort,
		SNum:       p.SNum,
		ANum:       p.ANum,
		WindowSize: p.WindowSize,
		FIN:        p.Flags.FIN,
		SYN:        p.Flags.SYN,
		RST:        p.Flags.RST,
		PSH:        p.Flags.PSH,
		ACK:        p.Flags.ACK,
		URG:        p.Flags.URG,
		ECE:        p.Flags.ECE,
		CWR:        p.Flags.CWR,
		NS:         p.Flags.NS,
		Options:    opts,
		Payload:    p.Payload,
	}
}

func tcpPayloadFromJSON(j jsonTCPPayload) TCPPayload {
	opts := make([]string, 0, len(j.Options))
	for k := range j.Options {
		opts = append(opts, k)
	}
	return TCPPayload{
		SPort:      j.SPort,
		DPort:      j.DPort,
		SNum:       j.SNum,
		ANum:       j.ANum,
		WindowSize: j.WindowSize,
		Flags: TCPFlags{
			FIN: j.FIN,
			SYN: j.SYN,
			RST: j.RST,
			PSH: j.PSH,
			ACK: j.ACK,
			URG: j.URG,
			ECE: j.ECE,
			CWR: j.CWR,
			NS:  j.NS,
		},
		Options: opts,
		Payload: j.Payload,
	}
}
