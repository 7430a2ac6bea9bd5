// Package record implements the data model shared by every stage of the
// assembly pipeline: captured packets, the probe requests a honeypot issues
// in reaction to them, the confirmations a remote prober sends back, and the
// composite events the phase matcher emits.
package record

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Proto selects which payload variant a Packet carries.
type Proto string

const (
	ProtoTCP  Proto = "tcp"
	ProtoUDP  Proto = "udp"
	ProtoICMP Proto = "icmp"
)

// Packet is a single captured observation. Exactly one of TCP, UDP, or ICMP
// is populated, selected by Proto.
type Packet struct {
	Timestamp time.Time
	SAddr     net.IP
	DAddr     net.IP
	IPID      uint16
	TTL       uint8
	Proto     Proto

	TCP  *TCPPayload
	UDP  *UDPPayload
	ICMP *ICMPPayload

	BatchID int
}

// Key returns the phase matcher's bucket key components: (saddr, daddr,
// dport) for TCP/UDP, (saddr, daddr) for ICMP.
func (p Packet) Key() string {
	switch p.Proto {
	case ProtoTCP:
		return fmt.Sprintf("%s|%s|%d", p.SAddr, p.DAddr, p.TCP.DPort)
	case ProtoUDP:
		return fmt.Sprintf("%s|%s|%d", p.SAddr, p.DAddr, p.UDP.DPort)
	default:
		return fmt.Sprintf("%s|%s", p.SAddr, p.DAddr)
	}
}

// Tuple returns the retransmit-signature tuple (saddr, daddr, sport, dport,
// seq) for TCP packets. Only meaningful when Proto == ProtoTCP.
func (p Packet) Tuple() string {
	if p.Proto != ProtoTCP {
		return fmt.Sprintf("%s|%s", p.SAddr, p.DAddr)
	}
	return fmt.Sprintf("%s|%s|%d|%d|%d", p.SAddr, p.DAddr, p.TCP.SPort, p.TCP.DPort, p.TCP.SNum)
}

func (p *Packet) SetBatchID(id int) {
	p.BatchID = id
}

type jsonPacket struct {
	Observed float64          `json:"observed"`
	SAddr    string           `json:"saddr"`
	DAddr    string           `json:"daddr"`
	IPID     uint16           `json:"ipid"`
	TTL      uint8            `json:"ttl"`
	TCP      *jsonTCPPayload  `json:"tcp,omitempty"`
	UDP      *jsonUDPPayload  `json:"udp,omitempty"`
	ICMP     *jsonICMPPayload `json:"icmp,omitempty"`
}

// ToJSON renders the packet in the wire "trigger" shape.
func (p Packet) ToJSON() json.RawMessage {
	j := jsonPacket{
		Observed: float64(p.Timestamp.UnixMilli()),
		SAddr:    p.SAddr.String(),
		DAddr:    p.DAddr.String(),
		IPID:     p.IPID,
		TTL:      p.TTL,
	}
	switch p.Proto {
	case ProtoTCP:
		t := p.TCP.toJSON()
		j.TCP = &t
	case ProtoUDP:
		u := p.UDP.toJSON()
		j.UDP = &u
	case ProtoICMP:
		i := p.ICMP.toJSON()
		j.ICMP = &i
	}
	raw, _ := json.Marshal(j)
	return raw
}

// PacketFromJSON parses a packet from its "trigger" JSON representation.
func PacketFromJSON(raw []byte) (Packet, error) {
	var j jsonPacket
	if err := json.Unmarshal(raw, &j); err != nil {
		return Packet{}, errors.Wrap(err, "decoding packet")
	}
	return packetFromJSONObj(j)
}

func packetFromJSONObj(j jsonPacket) (Packet, error) {
	sa := net.ParseIP(j.SAddr)
	da := net.ParseIP(j.DAddr)
	if sa == nil || da == nil {
		return Packet{}, errors.Errorf("invalid address in packet: saddr=%q daddr=%q", j.SAddr, j.DAddr)
	}
	p := Packet{
		Timestamp: time.UnixMilli(int64(j.Observed)).UTC(),
		SAddr:     sa,
		DAddr:     da,
		IPID:      j.IPID,
		TTL:       j.TTL,
	}
	switch {
	case j.TCP != nil:
		p.Proto = ProtoTCP
		tp := tcpPayloadFromJSON(*j.TCP)
		p.TCP = &tp
	case j.UDP != nil:
		p.Proto = ProtoUDP
		up := UDPPayload{SPort: j.UDP.SPort, DPort: j.UDP.DPort, Payload: j.UDP.Payload}
		p.UDP = &up
	case j.ICMP != nil:
		p.Proto = ProtoICMP
		ip := icmpPayloadFromJSON(*j.ICMP)
		p.ICMP = &ip
	default:
		return Packet{}, errors.New("packet carries no tcp/udp/icmp payload")
	}
	return p, nil
}

// allTCPFlags mirrors the CSV column order the honeypot emits flags in.
var allTCPFlags = []string{"fin", "syn", "rst", "psh", "ack", "urg", "ece", "cwr", "ns"}

// PacketFromCSV parses a packet from a pipe-delimited CSV row, already split
// into a header-keyed map.
func PacketFromCSV(row map[string]string) (Packet, error) {
	sa := net.ParseIP(row["saddr"])
	da := net.ParseIP(row["daddr"])
	if sa == nil || da == nil {
		return Packet{}, errors.Errorf("invalid address in packet row: saddr=%q daddr=%q", row["saddr"], row["daddr"])
	}
	ttl, err := parseUint8(row["ttl"])
	if err != nil {
		return Packet{}, errors.Wrap(err, "parsing ttl")
	}
	ipid, err := parseUint16(row["ipid"])
	if err != nil {
		return Packet{}, errors.Wrap(err, "parsing ipid")
	}
	tsMillis, err := strconv.ParseFloat(row["ts"], 64)
	if err != nil {
		return Packet{}, errors.Wrap(err, "parsing ts")
	}
	p := Packet{
		Timestamp: time.UnixMilli(int64(tsMillis)).UTC(),
		SAddr:     sa,
		DAddr:     da,
		IPID:      ipid,
		TTL:       ttl,
	}

	switch row["proto"] {
	case "tcp":
		p.Proto = ProtoTCP
		tp, err := tcpPayloadFromCSV(row)
		if err != nil {
			return Packet{}, err
		}
		p.TCP = &tp
	case "udp":
		p.Proto = ProtoUDP
		sp, _ := parseUint16(row["sport"])
		dp, _ := parseUint16(row["dport"])
		up := UDPPayload{SPort: sp, DPort: dp, Payload: row["payload"]}
		p.UDP = &up
	case "icmp":
		p.Proto = ProtoICMP
		ip := ICMPPayload{Method: row["options"], Payload: ""}
		p.ICMP = &ip
	default:
		return Packet{}, errors.Errorf("unknown proto %q", row["proto"])
	}

	return p, nil
}

func tcpPayloadFromCSV(row map[string]string) (TCPPayload, error) {
	sp, err := parseUint16(row["sport"])
	if err != nil {
		return TCPPayload{}, errors.Wrap(err, "parsing sport")
	}
	dp, err := parseUint16(row["dport"])
	if err != nil {
		return TCPPayload{}, errors.Wrap(err, "parsing dport")
	}
	sn, err := parseUint32(row["snum"])
	if err != nil {
		return TCPPayload{}, errors.Wrap(err, "parsing snum")
	}
	an, err := parseUint32(row["anum"])
	if err != nil {
		return TCPPayload{}, errors.Wrap(err, "parsing anum")
	}
	ws, _ := parseUint16(row["window size"])

	flags := TCPFlags{}
	for _, f := range allTCPFlags {
		if row[f] == "1" {
			switch f {
			case "fin":
				flags.FIN = true
			case "syn":
				flags.SYN = true
			case "rst":
				flags.RST = true
			case "psh":
				flags.PSH = true
			case "ack":
				flags.ACK = true
			case "urg":
				flags.URG = true
			case "ece":
				flags.ECE = true
			case "cwr":
				flags.CWR = true
			case "ns":
				flags.NS = true
			}
		}
	}

	var opts []string
	if o := row["options"]; o != "" {
		opts = strings.Split(o, ":")
	}

	return TCPPayload{
		SPort:      sp,
		DPort:      dp,
		SNum:       sn,
		ANum:       an,
		WindowSize: ws,
		Flags:      flags,
		Options:    opts,
		Payload:    row["payload"],
	}, nil
}

func parseUint8(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	return uint8(n), err
}

func parseUint16(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	return uint16(n), err
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	return uint32(n), err
}
