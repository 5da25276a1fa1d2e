package flowtable

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rlane/indigo/ofp"
	"github.com/rlane/indigo/ofputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// entrySnapshot captures an Entry's exported state for structural
// comparison with cmp.Diff, since Entry itself carries unexported
// bookkeeping fields (slot, prev/next) that aren't part of its
// observable identity.
type entrySnapshot struct {
	ID          uint64
	State       State
	Match       ofp.Match
	Priority    uint16
	Cookie      uint64
	Table       ofp.Table
	OutputPorts []ofp.PortNo
}

func snapshot(e *Entry) entrySnapshot {
	return entrySnapshot{
		ID:          e.ID(),
		State:       e.State(),
		Match:       e.Match(),
		Priority:    e.Priority(),
		Cookie:      e.Cookie(),
		Table:       e.Table(),
		OutputPorts: e.OutputPorts(),
	}
}

func matchFor(port ofp.PortNo) ofp.Match {
	return ofputil.ExtendedMatch(ofputil.MatchInPort(port))
}

func addMsg(port ofp.PortNo, priority uint16) *AddMessage {
	return &AddMessage{
		Match:    matchFor(port),
		Priority: priority,
		Table:    0,
		Actions:  ofp.Actions{&ofp.ActionOutput{Port: 1}},
	}
}

func TestEngineAddLookup(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	entry, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)
	assert.Equal(t, StateNew, entry.State())

	got, ok := e.Lookup(1)
	require.True(t, ok)
	assert.Same(t, entry, got)

	assert.Equal(t, 1, e.Status().CurrentCount)
	assert.Equal(t, uint64(1), e.Status().Adds)
}

func TestEngineAddDuplicateID(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	_, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)

	_, err = e.Add(1, addMsg(2, 200), time.Now())
	require.Error(t, err)
	ftErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindExists, ftErr.Kind)
}

func TestEngineTableFull(t *testing.T) {
	e := Create(Config{MaxEntries: 2})

	_, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)
	_, err = e.Add(2, addMsg(2, 100), time.Now())
	require.NoError(t, err)

	_, err = e.Add(3, addMsg(3, 100), time.Now())
	require.Error(t, err)
	ftErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindResource, ftErr.Kind)
	assert.Equal(t, uint64(1), e.Status().TableFullErrors)
}

func TestEngineDeleteFreesSlot(t *testing.T) {
	e := Create(Config{MaxEntries: 1})

	entry, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)

	require.NoError(t, e.Delete(entry))
	assert.Equal(t, 0, e.Status().CurrentCount)

	_, ok := e.Lookup(1)
	assert.False(t, ok)

	_, err = e.Add(2, addMsg(2, 100), time.Now())
	require.NoError(t, err, "slot should be reusable after delete")
}

func TestEngineDeleteIDNotFound(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	err := e.DeleteID(99)
	require.Error(t, err)
	ftErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, ftErr.Kind)
}

func TestEngineDeleteDoubleDelete(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	entry, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)
	require.NoError(t, e.Delete(entry))

	err = e.Delete(entry)
	require.Error(t, err)
	ftErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindUnknown, ftErr.Kind)
}

func TestEngineMarkDeletedHidesFromLookupByQuery(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	entry, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)

	assert.True(t, e.MarkDeleted(entry, ofp.FlowReasonHardTimeout))
	assert.False(t, e.MarkDeleted(entry, ofp.FlowReasonHardTimeout), "second mark is a no-op")
	assert.Equal(t, 1, e.Status().PendingDeletes)
	assert.Equal(t, uint64(1), e.Status().HardExpires)

	// Lookup by id does not filter DELETE_MARKED entries.
	got, ok := e.Lookup(1)
	require.True(t, ok)
	assert.Same(t, entry, got)

	// But a match query does not see it.
	q := &Query{Match: matchFor(1), Mode: ModeStrict}
	_, err = e.FirstMatch(q)
	assert.Error(t, err)
}

func TestEngineFirstMatchStrict(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	_, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)
	entry2, err := e.Add(2, addMsg(2, 200), time.Now())
	require.NoError(t, err)

	q := &Query{Match: matchFor(2), Mode: ModeStrict}
	got, err := e.FirstMatch(q)
	require.NoError(t, err)
	assert.Same(t, entry2, got)
}

func TestEngineFirstMatchNonStrictByPriority(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	_, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)

	q := &Query{
		Match:         matchFor(1),
		Mode:          ModeNonStrict,
		CheckPriority: true,
		Priority:      100,
	}
	got, err := e.FirstMatch(q)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ID())
}

func TestEngineQueryReturnsAllMatches(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	_, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)
	_, err = e.Add(2, addMsg(2, 100), time.Now())
	require.NoError(t, err)

	q := &Query{Mode: ModeCookieOnly, Table: ofp.TableAll}
	results := e.Query(q)
	assert.Len(t, results, 2)
}

func TestEngineModifyCookieMasksCorrectBits(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	msg := addMsg(1, 100)
	msg.Cookie = 0xff00
	entry, err := e.Add(1, msg, time.Now())
	require.NoError(t, err)

	e.ModifyCookie(entry, 0x00ff, 0x00ff)
	assert.Equal(t, uint64(0xffff), entry.Cookie())
	assert.Equal(t, uint64(1), e.Status().Updates)
}

func TestEngineModifyEffectsRecomputesOutputPorts(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	entry, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)
	require.Equal(t, []ofp.PortNo{1}, entry.OutputPorts())

	e.ModifyEffects(entry, Effects{Actions: ofp.Actions{&ofp.ActionOutput{Port: 5}}}, time.Now())
	assert.Equal(t, []ofp.PortNo{5}, entry.OutputPorts())
}

func TestEngineClearCounters(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	entry, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)

	e.SetCounters(entry, 10, 2000, time.Now())
	packets, bytes := e.ClearCounters(entry)
	assert.Equal(t, uint64(10), packets)
	assert.Equal(t, uint64(2000), bytes)

	gotPackets, gotBytes := entry.Counters()
	assert.Zero(t, gotPackets)
	assert.Zero(t, gotBytes)
}

func TestEngineRecordForwardingAddError(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	e.RecordForwardingAddError()
	assert.Equal(t, uint64(1), e.Status().ForwardingAddErrors)
}

// TestEngineAddLookupMatchesSnapshot checks that the entry returned by
// Add and the one returned by a subsequent Lookup agree field-for-field
// on everything observable, using cmp.Diff for the structural
// comparison instead of hand-rolled per-field assertions.
func TestEngineAddLookupMatchesSnapshot(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	msg := addMsg(7, 150)
	msg.Cookie = 0xdead
	msg.Table = 2
	entry, err := e.Add(1, msg, time.Now())
	require.NoError(t, err)

	got, ok := e.Lookup(1)
	require.True(t, ok)

	want := entrySnapshot{
		ID:          1,
		State:       StateNew,
		Match:       matchFor(7),
		Priority:    150,
		Cookie:      0xdead,
		Table:       2,
		OutputPorts: []ofp.PortNo{1},
	}
	if diff := cmp.Diff(want, snapshot(got)); diff != "" {
		t.Fatalf("entry snapshot mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(snapshot(entry), snapshot(got)); diff != "" {
		t.Fatalf("Add and Lookup disagree on entry state (-add +lookup):\n%s", diff)
	}
}

func TestEngineAddReusesFreedSlotIndex(t *testing.T) {
	e := Create(Config{MaxEntries: 1})

	entry1, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)
	slot1 := entry1.slot

	require.NoError(t, e.Delete(entry1))

	entry2, err := e.Add(2, addMsg(2, 100), time.Now())
	require.NoError(t, err)
	assert.Equal(t, slot1, entry2.slot)
}
