package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIrregularSynOnlyHasNoReaction(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	res, err := Generate(ScenarioIrregularSyn, start)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Nil(t, res.Events[0].ProbeRequest)
	assert.Empty(t, res.Confirmations)
	assert.Equal(t, uint16(54321), res.Events[0].Packet.IPID)
}

func TestGenerateTwoPhaseNoAckSharesBucketKey(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	res, err := Generate(ScenarioTwoPhaseNoAck, start)
	require.NoError(t, err)

	require.Len(t, res.Events, 2)
	require.Len(t, res.Confirmations, 1)
	assert.Equal(t, res.Events[0].Key(), res.Events[1].Key())
	assert.NotNil(t, res.Events[0].ProbeRequest)
	assert.Nil(t, res.Events[1].ProbeRequest)
}

func TestGenerateTwoPhaseAddsMatchingAck(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	res, err := Generate(ScenarioTwoPhase, start)
	require.NoError(t, err)

	require.Len(t, res.Events, 3)
	require.Len(t, res.Confirmations, 2)

	rsyn := res.Events[1]
	ack := res.Events[2]
	require.NotNil(t, rsyn.ProbeRequest)
	assert.Equal(t, rsyn.Packet.TCP.SPort, rsyn.ProbeRequest.DPort)
	assert.Equal(t, rsyn.ProbeRequest.DPort, ack.Packet.TCP.SPort)
	assert.Equal(t, rsyn.ProbeRequest.ANum, ack.Packet.TCP.SNum)
	assert.Equal(t, rsyn.Key(), ack.Key())
}

func TestGenerateRejectsUnknownScenario(t *testing.T) {
	_, err := Generate("bogus", time.Now())
	assert.Error(t, err)
}
