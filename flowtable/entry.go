package flowtable

import (
	"time"

	"github.com/rlane/indigo/ofp"
)

// State is an entry's position in its FREE -> NEW -> DELETE_MARKED ->
// FREE lifecycle.
type State int

const (
	// StateFree marks an unused slot in the entry pool.
	StateFree State = iota

	// StateNew marks a live, matchable entry.
	StateNew

	// StateDeleteMarked marks an entry that has been logically
	// deleted (invisible to queries and match/first-match) but whose
	// slot has not yet been reclaimed.
	StateDeleteMarked
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "FREE"
	case StateNew:
		return "NEW"
	case StateDeleteMarked:
		return "DELETE_MARKED"
	default:
		return "UNKNOWN"
	}
}

// invalidID marks an entry slot not currently bound to a caller-chosen
// flow id.
const invalidID = ^uint64(0)

// Entry is one flow-table row. The engine owns a fixed pool of these;
// callers only ever see *Entry values obtained from engine operations,
// never construct one directly.
type Entry struct {
	id    uint64
	state State

	match    ofp.Match
	priority uint16
	cookie   uint64
	table    ofp.Table
	flags    ofp.FlowModFlag

	idleTimeout uint16
	hardTimeout uint16

	effects     Effects
	outputPorts []ofp.PortNo

	packets uint64
	bytes   uint64

	insertTime        time.Time
	lastCounterChange time.Time

	removedReason ofp.FlowRemovedReason
	pendingDelete bool

	addMsg *AddMessage

	// slot is this entry's fixed index into the engine's entry pool,
	// stamped once at pool allocation time. Substitutes for the
	// pointer arithmetic ft.c uses (entry - table->entries) to recover
	// an entry's slot, since Go has no portable pointer subtraction.
	slot int

	// prev/next link this slot into the engine's all-entries list, in
	// pool-slot-index terms; -1 is the list sentinel. Unused while
	// state == StateFree.
	prev, next int
}

// ID returns the flow id the caller supplied when adding this entry.
func (e *Entry) ID() uint64 { return e.id }

// State returns the entry's current lifecycle state.
func (e *Entry) State() State { return e.state }

// Match returns the entry's match criteria.
func (e *Entry) Match() ofp.Match { return e.match }

// Priority returns the entry's priority.
func (e *Entry) Priority() uint16 { return e.priority }

// Cookie returns the entry's opaque controller cookie.
func (e *Entry) Cookie() uint64 { return e.cookie }

// Table returns the table this entry belongs to.
func (e *Entry) Table() ofp.Table { return e.table }

// Flags returns the flow-mod flags recorded with this entry.
func (e *Entry) Flags() ofp.FlowModFlag { return e.flags }

// Effects returns the entry's current action/instruction program.
func (e *Entry) Effects() Effects { return e.effects }

// OutputPorts returns the egress ports the entry's effects reference.
func (e *Entry) OutputPorts() []ofp.PortNo { return e.outputPorts }

// Counters returns the entry's packet and byte counters as last set by
// the forwarding layer via SetCounters.
func (e *Entry) Counters() (packets, bytes uint64) { return e.packets, e.bytes }

// InsertTime returns when the entry was added.
func (e *Entry) InsertTime() time.Time { return e.insertTime }

// LastCounterChange returns when SetCounters last observed a change.
func (e *Entry) LastCounterChange() time.Time { return e.lastCounterChange }

// RemovedReason returns the reason recorded by MarkDeleted.
func (e *Entry) RemovedReason() ofp.FlowRemovedReason { return e.removedReason }

// setup populates a freshly allocated StateNew entry from an add
// message, mirroring ft_entry_setup: it deep-dups the message, pulls
// match/cookie/priority/table/flags/timeouts out of it, computes
// effects and output ports, and stamps the insert time.
func (e *Entry) setup(id uint64, msg *AddMessage, now time.Time) {
	owned := msg.dup()

	e.id = id
	e.state = StateNew
	e.match = owned.Match
	e.priority = owned.Priority
	e.cookie = owned.Cookie
	e.table = owned.Table
	e.flags = owned.Flags
	e.idleTimeout = owned.IdleTimeout
	e.hardTimeout = owned.HardTimeout
	e.effects = owned.effects()
	e.outputPorts = e.effects.OutputPorts()
	e.packets = 0
	e.bytes = 0
	e.insertTime = now
	e.lastCounterChange = now
	e.removedReason = 0
	e.pendingDelete = false
	e.addMsg = owned
}

// setEffects replaces the entry's action program and recomputes its
// output port list, mirroring ft_flow_set_effects.
func (e *Entry) setEffects(effects Effects) {
	e.effects = effects
	e.outputPorts = effects.OutputPorts()
}

// modifyCookie applies a masked cookie update: only the bits selected
// by mask are replaced by the corresponding bits of cookie, mirroring
// ft_flow_modify_cookie.
func (e *Entry) modifyCookie(cookie, mask uint64) {
	e.cookie = (e.cookie &^ mask) | (cookie & mask)
}

// setCounters overwrites the entry's packet/byte counters, bumping
// lastCounterChange only when the values actually moved.
func (e *Entry) setCounters(packets, bytes uint64, now time.Time) {
	if packets != e.packets || bytes != e.bytes {
		e.lastCounterChange = now
	}
	e.packets = packets
	e.bytes = bytes
}

// markDeleted idempotently transitions the entry to DELETE_MARKED,
// mirroring ft_flow_mark_deleted: calling it twice on the same entry
// is a no-op on the second call.
func (e *Entry) markDeleted(reason ofp.FlowRemovedReason) bool {
	if e.state == StateDeleteMarked {
		return false
	}
	e.state = StateDeleteMarked
	e.removedReason = reason
	e.pendingDelete = true
	return true
}

// clear resets the entry to StateFree, dropping its owned payloads,
// mirroring ft_entry_clear. It reports whether the entry had been
// DELETE_MARKED (i.e. whether a pending-delete counter should be
// decremented by the caller).
func (e *Entry) clear() (wasPendingDelete bool) {
	wasPendingDelete = e.pendingDelete
	*e = Entry{id: invalidID, state: StateFree, slot: e.slot, prev: e.prev, next: e.next}
	return wasPendingDelete
}
