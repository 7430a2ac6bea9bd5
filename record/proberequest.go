package record

import (
	"encoding/json"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// ProbeRequest is a probe request the honeypot issued in reaction to a
// Packet, destined for the scamper-backed prober.
type ProbeRequest struct {
	SAddr     net.IP
	DAddr     net.IP
	SPort     uint16
	DPort     uint16
	ANum      uint32
	SNum      uint32
	UserID    uint32
	Method    string
	NumProbes int
	Payload   string

	BatchID int
}

func (r *ProbeRequest) SetBatchID(id int) {
	r.BatchID = id
}

type jsonProbeRequest struct {
	SAddr     string `json:"saddr"`
	DAddr     string `json:"daddr"`
	SPort     uint16 `json:"sport"`
	DPort     uint16 `json:"dport"`
	ANum      uint32 `json:"anum"`
	SNum      uint32 `json:"snum"`
	UserID    uint32 `json:"userid"`
	Method    string `json:"method"`
	NumProbes int    `json:"num_probes"`
	Payload   string `json:"payload"`
}

func (r ProbeRequest) ToJSON() json.RawMessage {
	raw, _ := json.Marshal(jsonProbeRequest{
		SAddr:     r.SAddr.String(),
		DAddr:     r.DAddr.String(),
		SPort:     r.SPort,
		DPort:     r.DPort,
		ANum:      r.ANum,
		SNum:      r.SNum,
		UserID:    r.UserID,
		Method:    r.Method,
		NumProbes: r.NumProbes,
		Payload:   r.Payload,
	})
	return raw
}

// ProbeRequestFromJSON parses a probe request from its wire JSON shape.
func ProbeRequestFromJSON(raw []byte) (ProbeRequest, error) {
	var j jsonProbeRequest
	if err := json.Unmarshal(raw, &j); err != nil {
		return ProbeRequest{}, errors.Wrap(err, "decoding probe request")
	}
	sa := net.ParseIP(j.SAddr)
	da := net.ParseIP(j.DAddr)
	if sa == nil || da == nil {
		return ProbeRequest{}, errors.Errorf("invalid address in probe request: saddr=%q daddr=%q", j.SAddr, j.DAddr)
	}
	return ProbeRequest{
		SAddr:     sa,
		DAddr:     da,
		SPort:     j.SPort,
		DPort:     j.DPort,
		ANum:      j.ANum,
		SNum:      j.SNum,
		UserID:    j.UserID,
		Method:    j.Method,
		NumProbes: j.NumProbes,
		Payload:   j.Payload,
	}, nil
}

// ProbeRequestFromCSV parses a probe request from a pipe-delimited CSV row.
// The row's address and port columns describe the triggering packet, and the
// probe travels the opposite way, so source and destination are swapped.
func ProbeRequestFromCSV(row map[string]string) (ProbeRequest, error) {
	da := net.ParseIP(row["saddr"])
	sa := net.ParseIP(row["daddr"])
	if sa == nil || da == nil {
		return ProbeRequest{}, errors.Errorf("invalid address in probe request row: saddr=%q daddr=%q", row["saddr"], row["daddr"])
	}
	dp, err := parseUint16(row["sport"])
	if err != nil {
		return ProbeRequest{}, errors.Wrap(err, "parsing sport")
	}
	sp, err := parseUint16(row["dport"])
	if err != nil {
		return ProbeRequest{}, errors.Wrap(err, "parsing dport")
	}
	anum, err := parseUint32(row["probe anum"])
	if err != nil {
		return ProbeRequest{}, errors.Wrap(err, "parsing probe anum")
	}
	snum, err := parseUint32(row["probe snum"])
	if err != nil {
		return ProbeRequest{}, errors.Wrap(err, "parsing probe snum")
	}
	userid, err := parseUint32(row["userid"])
	if err != nil {
		return ProbeRequest{}, errors.Wrap(err, "parsing userid")
	}
	num, err := strconv.Atoi(row["num probes"])
	if err != nil {
		return ProbeRequest{}, errors.Wrap(err, "parsing num probes")
	}

	return ProbeRequest{
		SAddr:     sa,
		DAddr:     da,
		SPort:     sp,
		DPort:     dp,
		ANum:      anum,
		SNum:      snum,
		UserID:    userid,
		Method:    row["method"],
		NumProbes: num,
		Payload:   "",
	}, nil
}
