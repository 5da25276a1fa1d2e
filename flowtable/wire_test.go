package flowtable

import (
	"bytes"
	"testing"
	"time"

	"github.com/rlane/indigo/ofp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMessageFromFlowModRoundTripsThroughWire(t *testing.T) {
	fm := &ofp.FlowMod{
		Command:  ofp.FlowAdd,
		Cookie:   0xcafe,
		Table:    1,
		Priority: 42,
		Match:    matchFor(3),
		Instructions: ofp.Instructions{
			&ofp.InstructionApplyActions{Actions: ofp.Actions{&ofp.ActionOutput{Port: 9}}},
		},
	}

	var buf bytes.Buffer
	_, err := fm.WriteTo(&buf)
	require.NoError(t, err)

	var decoded ofp.FlowMod
	_, err = decoded.ReadFrom(&buf)
	require.NoError(t, err)

	msg := AddMessageFromFlowMod(&decoded)
	e := Create(Config{MaxEntries: 4})
	entry, err := e.Add(1, msg, time.Now())
	require.NoError(t, err)

	assert.Equal(t, uint64(0xcafe), entry.Cookie())
	assert.Equal(t, ofp.Table(1), entry.Table())
	assert.Equal(t, uint16(42), entry.Priority())
	assert.Equal(t, []ofp.PortNo{9}, entry.OutputPorts())
}

func TestQueryFromFlowModSelectsByCommand(t *testing.T) {
	strict := &ofp.FlowMod{Command: ofp.FlowDeleteStrict}
	assert.Equal(t, ModeStrict, QueryFromFlowMod(strict).Mode)

	nonStrict := &ofp.FlowMod{Command: ofp.FlowDelete}
	assert.Equal(t, ModeNonStrict, QueryFromFlowMod(nonStrict).Mode)
}

func TestWireDeleteFlowThroughEngine(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	_, err := e.Add(1, addMsg(5, 100), time.Now())
	require.NoError(t, err)

	del := &ofp.FlowMod{
		Command: ofp.FlowDeleteStrict,
		Match:   matchFor(5),
		Table:   0,
		OutPort: ofp.PortAny,
	}

	q := QueryFromFlowMod(del)
	matches := e.Query(q)
	require.Len(t, matches, 1)
	require.NoError(t, e.Delete(matches[0]))

	_, ok := e.Lookup(1)
	assert.False(t, ok)
}

func TestFlowStatsFromEntryRoundTripsThroughWire(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	entry, err := e.Add(1, addMsg(2, 77), time.Now())
	require.NoError(t, err)
	e.SetCounters(entry, 10, 2000, time.Now())

	stats := FlowStatsFromEntry(entry, time.Now())

	var buf bytes.Buffer
	_, err = stats.WriteTo(&buf)
	require.NoError(t, err)

	var decoded ofp.FlowStats
	_, err = decoded.ReadFrom(&buf)
	require.NoError(t, err)

	assert.Equal(t, uint16(77), decoded.Priority)
	assert.Equal(t, uint64(10), decoded.PacketCount)
	assert.Equal(t, uint64(2000), decoded.ByteCount)
}

func TestFlowRemovedFromEntryRoundTripsThroughWire(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	entry, err := e.Add(1, addMsg(2, 77), time.Now())
	require.NoError(t, err)
	e.MarkDeleted(entry, ofp.FlowReasonIdleTimeout)

	removed := FlowRemovedFromEntry(entry, time.Now())

	var buf bytes.Buffer
	_, err = removed.WriteTo(&buf)
	require.NoError(t, err)

	var decoded ofp.FlowRemoved
	_, err = decoded.ReadFrom(&buf)
	require.NoError(t, err)

	assert.Equal(t, ofp.FlowReasonIdleTimeout, decoded.Reason)
	assert.Equal(t, uint16(77), decoded.Priority)
}
