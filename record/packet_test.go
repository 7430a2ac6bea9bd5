package record

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpPacketFixture() Packet {
	return Packet{
		Timestamp: time.Unix(1599487200, 0).UTC(),
		SAddr:     net.ParseIP("203.0.113.5"),
		DAddr:     net.ParseIP("198.51.100.9"),
		IPID:      4242,
		TTL:       64,
		Proto:     ProtoTCP,
		TCP: &TCPPayload{
			SPort:      51000,
			DPort:      22,
			SNum:       111,
			ANum:       0,
			WindowSize: 65535,
			Flags:      TCPFlags{SYN: true},
			Options:    []string{"mss", "sackOK"},
			Payload:    "",
		},
	}
}

func TestPacketJSONRoundTrip(t *testing.T) {
	want := tcpPacketFixture()

	got, err := PacketFromJSON(want.ToJSON())
	require.NoError(t, err)

	assert.True(t, want.Timestamp.Equal(got.Timestamp))
	assert.True(t, want.SAddr.Equal(got.SAddr))
	assert.True(t, want.DAddr.Equal(got.DAddr))
	assert.Equal(t, want.IPID, got.IPID)
	assert.Equal(t, want.TTL, got.TTL)
	assert.Equal(t, want.Proto, got.Proto)
	assert.Equal(t, want.TCP.SPort, got.TCP.SPort)
	assert.Equal(t, want.TCP.DPort, got.TCP.DPort)
	assert.Equal(t, want.TCP.SNum, got.TCP.SNum)
	assert.Equal(t, want.TCP.Flags, got.TCP.Flags)
	assert.ElementsMatch(t, want.TCP.Options, got.TCP.Options)
}

func TestPacketKeyIgnoresSourcePort(t *testing.T) {
	a := tcpPacketFixture()
	b := tcpPacketFixture()
	b.TCP.SPort = 9999

	assert.Equal(t, a.Key(), b.Key())
}

func TestPacketTupleIncludesSequenceNumber(t *testing.T) {
	a := tcpPacketFixture()
	b := tcpPacketFixture()
	b.TCP.SNum = a.TCP.SNum + 1

	assert.NotEqual(t, a.Tuple(), b.Tuple())
}

func TestPacketFromCSV(t *testing.T) {
	row := map[string]string{
		"ts":    "1599487200000",
		"saddr": "203.0.113.5",
		"daddr": "198.51.100.9",
		"ipid":  "4242",
		"ttl":   "64",
		"proto": "tcp",
		"sport": "51000",
		"dport": "22",
		"snum":  "111",
		"anum":  "0",
		"window size": "65535",
		"syn":         "1",
		"options":     "mss:sackOK",
		"payload":     "",
	}

	got, err := PacketFromCSV(row)
	require.NoError(t, err)

	assert.Equal(t, ProtoTCP, got.Proto)
	assert.True(t, got.TCP.Flags.SYN)
	assert.False(t, got.TCP.Flags.ACK)
	assert.Equal(t, uint16(51000), got.TCP.SPort)
	assert.ElementsMatch(t, []string{"mss", "sackOK"}, got.TCP.Options)
}

func TestICMPPayloadDefaultsToEmpty(t *testing.T) {
	p := ICMPPayload{Method: "echo-request", Payload: ""}
	j := p.toJSON()
	assert.Empty(t, j.Unreachable)

	back := icmpPayloadFromJSON(j)
	assert.Equal(t, "empty", back.Payload)
}
