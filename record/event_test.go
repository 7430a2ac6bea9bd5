package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventFixture() Event {
	pkt := tcpPacketFixture()
	req := ProbeRequest{
		SAddr:     pkt.DAddr,
		DAddr:     pkt.SAddr,
		SPort:     22,
		DPort:     51000,
		ANum:      112,
		SNum:      0,
		UserID:    7,
		Method:    "tcp-synack",
		NumProbes: 1,
		Payload:   "",
	}
	return Event{Packet: pkt, ProbeRequest: &req}
}

func TestEventJSONRoundTrip(t *testing.T) {
	want := eventFixture()

	got, err := EventFromJSON(want.ToJSON())
	require.NoError(t, err)

	assert.Equal(t, want.Key(), got.Key())
	require.NotNil(t, got.ProbeRequest)
	assert.Equal(t, want.ProbeRequest.Method, got.ProbeRequest.Method)
	assert.Equal(t, want.ProbeRequest.ANum, got.ProbeRequest.ANum)
}

func TestEventWithoutReactionRoundTrips(t *testing.T) {
	want := Event{Packet: tcpPacketFixture()}

	got, err := EventFromJSON(want.ToJSON())
	require.NoError(t, err)
	assert.Nil(t, got.ProbeRequest)
}

func TestEventSetBatchIDCascades(t *testing.T) {
	e := eventFixture()
	e.SetBatchID(5)

	assert.Equal(t, 5, e.BatchID)
	assert.Equal(t, 5, e.Packet.BatchID)
	assert.Equal(t, 5, e.ProbeRequest.BatchID)
}

func TestEventFromCSVRespectsProbedColumn(t *testing.T) {
	row := map[string]string{
		"ts":          "1599487200000",
		"saddr":       "203.0.113.5",
		"daddr":       "198.51.100.9",
		"ipid":        "4242",
		"ttl":         "64",
		"proto":       "tcp",
		"sport":       "51000",
		"dport":       "22",
		"snum":        "111",
		"anum":        "0",
		"window size": "65535",
		"syn":         "1",
		"payload":     "",
		"probed":      "false",
	}

	got, err := EventFromCSV(row)
	require.NoError(t, err)
	assert.Nil(t, got.ProbeRequest)
}
