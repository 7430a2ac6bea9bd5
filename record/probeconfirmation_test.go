package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeConfirmationFromJSONPrefersStartObject(t *testing.T) {
	raw := []byte(`{
		"sport": 53, "dport": 51000, "src": "198.51.100.9", "dst": "203.0.113.5",
		"userid": 7, "method": "tcp-synack", "payload": "", "ping_sent": "1",
		"probe_size": 0, "start": {"sec": 1599487205, "usec": 500000}, "ttl": 64,
		"version": "scamper-1"
	}`)

	got, err := ProbeConfirmationFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1599487205, 500000*1000).UTC(), got.Start)
}

func TestProbeConfirmationFromJSONFallsBackToTimestamp(t *testing.T) {
	raw := []byte(`{
		"sport": 53, "dport": 51000, "src": "198.51.100.9", "dst": "203.0.113.5",
		"userid": 7, "method": "tcp-rst", "payload": "", "ping_sent": "1",
		"probe_size": 0, "timestamp": 1599487205, "ttl": 64, "version": "scamper-1"
	}`)

	got, err := ProbeConfirmationFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1599487205, 0).UTC(), got.Start)
	assert.True(t, got.IsTCPReset())
}

func TestProbeConfirmationFromCSVWithSplitStart(t *testing.T) {
	row := map[string]string{
		"sport": "53", "dport": "51000", "saddr": "198.51.100.9", "daddr": "203.0.113.5",
		"userid": "7", "method": "tcp-synack", "num probes": "1",
		"start sec": "1599487205", "start usec": "500000",
	}

	got, err := ProbeConfirmationFromCSV(row)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1599487205, 500000*1000).UTC(), got.Start)
}

func TestProbeRequestFromCSVSwapsSourceAndDestination(t *testing.T) {
	row := map[string]string{
		"saddr": "198.51.100.9", "daddr": "203.0.113.5",
		"sport": "22", "dport": "51000",
		"probe anum": "112", "probe snum": "0",
		"userid": "7", "method": "tcp-synack", "num probes": "1",
	}

	got, err := ProbeRequestFromCSV(row)
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.5", got.SAddr.String())
	assert.Equal(t, "198.51.100.9", got.DAddr.String())
	assert.Equal(t, uint16(51000), got.SPort)
	assert.Equal(t, uint16(22), got.DPort)
}
