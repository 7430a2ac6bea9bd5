package record

import (
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ProbeConfirmation is the prober's asynchronous report on the probes it
// sent for a ProbeRequest.
type ProbeConfirmation struct {
	SPort     uint16
	DPort     uint16
	Src       net.IP
	Dst       net.IP
	UserID    uint32
	Method    string
	Payload   string
	PingSent  string
	ProbeSize int
	Start     time.Time
	TTL       uint8
	Version   string

	BatchID int
}

func (c *ProbeConfirmation) SetBatchID(id int) {
	c.BatchID = id
}

// IsTCPReset reports whether the confirmation's method names a TCP RST,
// which is exempt from "unsure" loss accounting on eviction.
func (c ProbeConfirmation) IsTCPReset() bool {
	return c.Method == "tcp-rst"
}

type jsonStartTime struct {
	Sec  int64 `json:"sec"`
	USec int64 `json:"usec"`
}

type jsonProbeConfirmation struct {
	SPort     uint16         `json:"sport"`
	DPort     uint16         `json:"dport"`
	Src       string         `json:"src"`
	Dst       string         `json:"dst"`
	UserID    uint32         `json:"userid"`
	Method    string         `json:"method"`
	Payload   string         `json:"payload"`
	PingSent  string         `json:"ping_sent"`
	ProbeSize int            `json:"probe_size"`
	Start     *jsonStartTime `json:"start,omitempty"`
	Timestamp *int64         `json:"timestamp,omitempty"`
	TTL       uint8          `json:"ttl"`
	Version   string         `json:"version"`
}

// ToJSON renders the confirmation in the scamper log shape, with the start
// time as a {sec, usec} object that ProbeConfirmationFromJSON reads back.
func (c ProbeConfirmation) ToJSON() json.RawMessage {
	start := jsonStartTime{Sec: c.Start.Unix(), USec: int64(c.Start.Nanosecond() / 1000)}
	raw, _ := json.Marshal(jsonProbeConfirmation{
		SPort:     c.SPort,
		DPort:     c.DPort,
		Src:       c.Src.String(),
		Dst:       c.Dst.String(),
		UserID:    c.UserID,
		Method:    c.Method,
		Payload:   c.Payload,
		PingSent:  c.PingSent,
		ProbeSize: c.ProbeSize,
		Start:     &start,
		TTL:       c.TTL,
		Version:   c.Version,
	})
	return raw
}

// ProbeConfirmationFromJSON parses a confirmation from the scamper log
// shape, accepting either a {sec,usec} start object or a flat epoch-seconds
// "timestamp" fallback.
func ProbeConfirmationFromJSON(raw []byte) (ProbeConfirmation, error) {
	var j jsonProbeConfirmation
	if err := json.Unmarshal(raw, &j); err != nil {
		return ProbeConfirmation{}, errors.Wrap(err, "decoding probe confirmation")
	}
	src := net.ParseIP(j.Src)
	dst := net.ParseIP(j.Dst)
	if src == nil || dst == nil {
		return ProbeConfirmation{}, errors.Errorf("invalid address in confirmation: src=%q dst=%q", j.Src, j.Dst)
	}

	var start time.Time
	switch {
	case j.Start != nil:
		start = time.Unix(j.Start.Sec, j.Start.USec*1000).UTC()
	case j.Timestamp != nil:
		start = time.Unix(*j.Timestamp, 0).UTC()
	default:
		return ProbeConfirmation{}, errors.New("confirmation has neither start nor timestamp")
	}

	return ProbeConfirmation{
		SPort:     j.SPort,
		DPort:     j.DPort,
		Src:       src,
		Dst:       dst,
		UserID:    j.UserID,
		Method:    j.Method,
		Payload:   j.Payload,
		PingSent:  j.PingSent,
		ProbeSize: j.ProbeSize,
		Start:     start,
		TTL:       j.TTL,
		Version:   j.Version,
	}, nil
}

// ProbeConfirmationFromCSV parses a confirmation from a pipe-delimited CSV
// row, accepting either "start sec"/"start usec" columns or a flat
// "timestamp" column.
func ProbeConfirmationFromCSV(row map[string]string) (ProbeConfirmation, error) {
	sp, err := parseUint16(row["sport"])
	if err != nil {
		return ProbeConfirmation{}, errors.Wrap(err, "parsing sport")
	}
	dp, err := parseUint16(row["dport"])
	if err != nil {
		return ProbeConfirmation{}, errors.Wrap(err, "parsing dport")
	}
	src := net.ParseIP(row["saddr"])
	dst := net.ParseIP(row["daddr"])
	if src == nil || dst == nil {
		return ProbeConfirmation{}, errors.Errorf("invalid address in confirmation row: saddr=%q daddr=%q", row["saddr"], row["daddr"])
	}
	userid, err := parseUint32(row["userid"])
	if err != nil {
		return ProbeConfirmation{}, errors.Wrap(err, "parsing userid")
	}

	var start time.Time
	if secStr, ok := row["start sec"]; ok {
		if usecStr, ok2 := row["start usec"]; ok2 {
			sec, err := strconv.ParseInt(secStr, 10, 64)
			if err != nil {
				return ProbeConfirmation{}, errors.Wrap(err, "parsing start sec")
			}
			usec, err := strconv.ParseInt(usecStr, 10, 64)
			if err != nil {
				return ProbeConfirmation{}, errors.Wrap(err, "parsing start usec")
			}
			start = time.Unix(sec, usec*1000).UTC()
		}
	}
	if start.IsZero() {
		ts, err := strconv.ParseInt(row["timestamp"], 10, 64)
		if err != nil {
			return ProbeConfirmation{}, errors.Wrap(err, "parsing timestamp")
		}
		start = time.Unix(ts, 0).UTC()
	}

	return ProbeConfirmation{
		SPort:     sp,
		DPort:     dp,
		Src:       src,
		Dst:       dst,
		UserID:    userid,
		Method:    row["method"],
		Payload:   "",
		PingSent:  row["num probes"],
		ProbeSize: 0,
		Start:     start,
		TTL:       0,
		Version:   "",
	}, nil
}
