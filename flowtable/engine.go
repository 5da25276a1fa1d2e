// Package flowtable is an in-memory match/action flow-table engine: a
// fixed-capacity pool of flow entries indexed by id, priority and
// match for O(1) average lookup, add and delete.
//
// Grounded function-for-function on ft.c/ft.h: the pool is a fixed
// array of entries allocated once at Create, entries are linked into
// one doubly-linked "all entries" list plus three hindex.Index
// secondary indexes, and every operation below names the ft_* function
// it mirrors.
package flowtable

import (
	"bytes"
	"time"

	"github.com/rlane/indigo/hindex"
	"github.com/rlane/indigo/internal/logging"
	"github.com/rlane/indigo/internal/metrics"
	"github.com/rlane/indigo/ofp"
	"go.uber.org/zap"
)

// Config configures a new Engine.
type Config struct {
	// MaxEntries bounds the number of flows the engine can hold at
	// once. Mirrors ft_config_t.max_entries.
	MaxEntries int

	// LoadFactor is forwarded to the engine's secondary indexes.
	// Zero selects hindex's default.
	LoadFactor float64

	// Logger receives diagnostic events (unknown query mode,
	// table-full). A nil Logger is replaced with a no-op one.
	Logger *zap.Logger

	// Metrics, if non-nil, is updated as operations complete.
	Metrics *metrics.FlowTableMetrics
}

// Status mirrors ft_status_t: running counters an operator or test can
// snapshot without walking the table.
type Status struct {
	CurrentCount        int
	PendingDeletes       int
	Adds                 uint64
	Deletes              uint64
	HardExpires          uint64
	IdleExpires          uint64
	Updates              uint64
	TableFullErrors      uint64
	ForwardingAddErrors  uint64
}

// Engine is the flow-table itself.
type Engine struct {
	entries []Entry
	free    []int

	allHead, allTail int

	ids        *hindex.Index
	priorities *hindex.Index
	matches    *hindex.Index

	status Status

	logger  *zap.Logger
	metrics *metrics.FlowTableMetrics
}

const listEnd = -1

func entryIDKey(object interface{}) interface{} { return object.(*Entry).id }
func idEqual(a, b interface{}) bool              { return a.(uint64) == b.(uint64) }
func idHash(key interface{}) uint32              { return hindex.HashUint64(key.(uint64)) }

func entryPriorityKey(object interface{}) interface{} { return uint32(object.(*Entry).priority) }
func priorityEqual(a, b interface{}) bool              { return a.(uint32) == b.(uint32) }
func priorityHash(key interface{}) uint32              { return hindex.HashUint32(key.(uint32)) }

func entryMatchKey(object interface{}) interface{} { return matchHash(object.(*Entry).match) }
func matchKeyEqual(a, b interface{}) bool          { return a.(uint32) == b.(uint32) }
func matchKeyHash(key interface{}) uint32          { return key.(uint32) }

// matchHash computes a deterministic hash of a match's field list,
// used as the match index's key. Grounded on ft.c's use of
// match_hash(&entry->match) (murmur_hash over the fixed-layout C
// match struct); ofp.Match has no fixed layout, so each XM's
// class/type/value/mask is hashed in field order instead.
func matchHash(m ofp.Match) uint32 {
	var buf bytes.Buffer
	buf.WriteByte(byte(m.Type))
	for _, xm := range m.Fields {
		buf.WriteByte(byte(xm.Class))
		buf.WriteByte(byte(xm.Class >> 8))
		buf.WriteByte(byte(xm.Type))
		buf.Write(xm.Value)
		buf.Write(xm.Mask)
	}
	return hindex.HashBytes(buf.Bytes())
}

// Create allocates a new engine with a fixed-size entry pool, mirroring
// ft_create (indigo_core_init of the original's pool allocation plus
// ft_hash_create's three index tables).
func Create(cfg Config) *Engine {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1024
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	e := &Engine{
		entries: make([]Entry, cfg.MaxEntries),
		free:    make([]int, 0, cfg.MaxEntries),
		allHead: listEnd,
		allTail: listEnd,
		logger:  logger,
		metrics: cfg.Metrics,
	}

	if cfg.LoadFactor > 0 {
		e.ids = hindex.NewWithLoadFactor(entryIDKey, idHash, idEqual, cfg.LoadFactor)
		e.priorities = hindex.NewWithLoadFactor(entryPriorityKey, priorityHash, priorityEqual, cfg.LoadFactor)
		e.matches = hindex.NewWithLoadFactor(entryMatchKey, matchKeyHash, matchKeyEqual, cfg.LoadFactor)
	} else {
		e.ids = hindex.New(entryIDKey, idHash, idEqual)
		e.priorities = hindex.New(entryPriorityKey, priorityHash, priorityEqual)
		e.matches = hindex.New(entryMatchKey, matchKeyHash, matchKeyEqual)
	}

	for i := cfg.MaxEntries - 1; i >= 0; i-- {
		e.entries[i] = Entry{id: invalidID, state: StateFree, slot: i, prev: listEnd, next: listEnd}
		e.free = append(e.free, i)
	}

	return e
}

// Destroy releases an engine. With Go's garbage collector there is
// nothing to free explicitly; it exists to mirror ft_destroy's place
// in the operation set and to make caller intent explicit.
func (e *Engine) Destroy() {
	*e = Engine{}
}

// Status returns a snapshot of the engine's running counters.
func (e *Engine) Status() Status {
	return e.status
}

func (e *Engine) linkAll(i int) {
	e.entries[i].prev = e.allTail
	e.entries[i].next = listEnd
	if e.allTail != listEnd {
		e.entries[e.allTail].next = i
	} else {
		e.allHead = i
	}
	e.allTail = i
}

func (e *Engine) unlinkAll(i int) {
	en := &e.entries[i]
	if en.prev != listEnd {
		e.entries[en.prev].next = en.next
	} else {
		e.allHead = en.next
	}
	if en.next != listEnd {
		e.entries[en.next].prev = en.prev
	} else {
		e.allTail = en.prev
	}
	en.prev, en.next = listEnd, listEnd
}

// link inserts entry i into the three secondary indexes plus the
// all-entries list, mirroring ft_entry_link.
func (e *Engine) link(i int) {
	en := &e.entries[i]
	e.linkAll(i)
	e.ids.Insert(en)
	e.priorities.Insert(en)
	e.matches.Insert(en)
}

// unlink removes entry i from the three secondary indexes plus the
// all-entries list, mirroring ft_entry_unlink.
func (e *Engine) unlink(i int) {
	en := &e.entries[i]
	e.unlinkAll(i)
	e.ids.Remove(en)
	e.priorities.Remove(en)
	e.matches.Remove(en)
}

// Add inserts a new flow entry under id, failing with KindExists if id
// is already present and KindResource if the pool is full. Mirrors
// ft_add.
func (e *Engine) Add(id uint64, msg *AddMessage, now time.Time) (*Entry, error) {
	if _, ok := e.Lookup(id); ok {
		return nil, newError("Add", KindExists, nil)
	}

	if len(e.free) == 0 {
		e.status.TableFullErrors++
		if e.metrics != nil {
			e.metrics.IncTableFullErrors()
		}
		e.logger.Warn("flow table full", zap.Int("max_entries", len(e.entries)))
		return nil, newError("Add", KindResource, nil)
	}

	i := e.free[len(e.free)-1]
	e.free = e.free[:len(e.free)-1]

	e.entries[i].setup(id, msg, now)
	e.link(i)

	e.status.CurrentCount++
	e.status.Adds++
	if e.metrics != nil {
		e.metrics.IncAdds()
		e.metrics.SetOccupancy(e.status.CurrentCount, e.status.PendingDeletes)
	}

	return &e.entries[i], nil
}

func (e *Engine) slotOf(entry *Entry) int {
	return entry.slot
}

// Delete immediately frees entry's slot, regardless of its current
// state. Mirrors ft_delete.
func (e *Engine) Delete(entry *Entry) error {
	if entry.id == invalidID {
		e.logger.Error("delete of already-freed entry", zap.Int("slot", entry.slot))
		return newError("Delete", KindUnknown, errDoubleDelete)
	}

	i := e.slotOf(entry)
	e.unlink(i)

	wasPending := e.entries[i].clear()
	e.free = append(e.free, i)

	e.status.CurrentCount--
	if wasPending {
		e.status.PendingDeletes--
	}
	e.status.Deletes++
	if e.metrics != nil {
		e.metrics.IncDeletes()
		e.metrics.SetOccupancy(e.status.CurrentCount, e.status.PendingDeletes)
	}

	return nil
}

// DeleteID looks up id and deletes it, failing with KindNotFound if no
// such entry exists. Mirrors ft_delete_id.
func (e *Engine) DeleteID(id uint64) error {
	entry, ok := e.Lookup(id)
	if !ok {
		return newError("DeleteID", KindNotFound, nil)
	}
	return e.Delete(entry)
}

// Lookup returns the entry stored under id, if any.
//
// This does not filter DELETE_MARKED entries: a caller that looked up
// an id and is racing a concurrent delete sees the entry until its
// slot is actually reclaimed, matching ft_id_lookup, which performs no
// liveness filtering either.
func (e *Engine) Lookup(id uint64) (*Entry, bool) {
	obj, ok := e.ids.Lookup(id, nil)
	if !ok {
		return nil, false
	}
	return obj.(*Entry), true
}

// ModifyEffects replaces entry's action program in place, mirroring
// ft_flow_set_effects, and counts it as an update.
func (e *Engine) ModifyEffects(entry *Entry, effects Effects, now time.Time) {
	entry.setEffects(effects)
	e.status.Updates++
	if e.metrics != nil {
		e.metrics.IncUpdates()
	}
}

// ModifyCookie applies a masked cookie update to entry, mirroring
// ft_flow_modify_cookie, and counts it as an update.
func (e *Engine) ModifyCookie(entry *Entry, cookie, mask uint64) {
	entry.modifyCookie(cookie, mask)
	e.status.Updates++
	if e.metrics != nil {
		e.metrics.IncUpdates()
	}
}

// SetCounters overwrites entry's packet/byte counters, mirroring the
// forwarding layer's periodic counter sync.
func (e *Engine) SetCounters(entry *Entry, packets, bytes uint64, now time.Time) {
	entry.setCounters(packets, bytes, now)
}

// ClearCounters zeroes entry's packet/byte counters and returns their
// prior values, mirroring ft_flow_clear_counters.
func (e *Engine) ClearCounters(entry *Entry) (packets, bytes uint64) {
	packets, bytes = entry.packets, entry.bytes
	entry.packets, entry.bytes = 0, 0
	return packets, bytes
}

// MarkDeleted transitions entry to DELETE_MARKED, mirroring
// ft_flow_mark_deleted. It is a no-op (returns false) if entry was
// already marked, and bumps the hard/idle expire counters when reason
// indicates a timeout.
func (e *Engine) MarkDeleted(entry *Entry, reason ofp.FlowRemovedReason) bool {
	if !entry.markDeleted(reason) {
		return false
	}

	e.status.PendingDeletes++
	switch reason {
	case ofp.FlowReasonHardTimeout:
		e.status.HardExpires++
		if e.metrics != nil {
			e.metrics.IncHardExpires()
		}
	case ofp.FlowReasonIdleTimeout:
		e.status.IdleExpires++
		if e.metrics != nil {
			e.metrics.IncIdleExpires()
		}
	}
	if e.metrics != nil {
		e.metrics.SetOccupancy(e.status.CurrentCount, e.status.PendingDeletes)
	}
	return true
}

// RecordForwardingAddError bumps the forwarding-add-error counter.
// ft.c increments this when the southbound forwarding layer rejects an
// otherwise-valid Add; that layer is outside this module's scope (see
// spec §1's collaborator boundary), so callers integrating one call
// this directly instead of the counter being driven internally.
func (e *Engine) RecordForwardingAddError() {
	e.status.ForwardingAddErrors++
	if e.metrics != nil {
		e.metrics.IncForwardingAddErrors()
	}
}

// FirstMatch returns the first entry satisfying query, or
// KindNotFound if none does. Mirrors ft_flow_first_match: a strict
// query probes the match index directly, a priority-scoped query
// probes the priority index, and any other query falls back to a
// linear scan of the all-entries list.
func (e *Engine) FirstMatch(q *Query) (*Entry, error) {
	if !q.isKnownMode() {
		e.logger.Error("unknown query mode", zap.Int("mode", int(q.Mode)))
		return nil, newError("FirstMatch", KindNotFound, nil)
	}

	switch {
	case q.Mode == ModeStrict:
		hash := matchHash(q.Match)
		state := 0
		for {
			obj, ok := e.matches.Lookup(hash, &state)
			if !ok {
				break
			}
			entry := obj.(*Entry)
			if q.matches(entry) {
				return entry, nil
			}
		}
	case q.CheckPriority:
		state := 0
		for {
			obj, ok := e.priorities.Lookup(uint32(q.Priority), &state)
			if !ok {
				break
			}
			entry := obj.(*Entry)
			if q.matches(entry) {
				return entry, nil
			}
		}
	default:
		for i := e.allHead; i != listEnd; i = e.entries[i].next {
			entry := &e.entries[i]
			if q.matches(entry) {
				return entry, nil
			}
		}
	}

	return nil, newError("FirstMatch", KindNotFound, nil)
}

// Query returns every entry satisfying q. Mirrors ft_flow_query: the
// same index selection as FirstMatch (match index for a strict query,
// priority index when check_priority is set, otherwise the
// all-entries list), but collecting every hit instead of stopping at
// the first.
func (e *Engine) Query(q *Query) []*Entry {
	if !q.isKnownMode() {
		e.logger.Error("unknown query mode", zap.Int("mode", int(q.Mode)))
		return nil
	}

	var out []*Entry
	switch {
	case q.Mode == ModeStrict:
		hash := matchHash(q.Match)
		state := 0
		for {
			obj, ok := e.matches.Lookup(hash, &state)
			if !ok {
				break
			}
			entry := obj.(*Entry)
			if q.matches(entry) {
				out = append(out, entry)
			}
		}
	case q.CheckPriority:
		state := 0
		for {
			obj, ok := e.priorities.Lookup(uint32(q.Priority), &state)
			if !ok {
				break
			}
			entry := obj.(*Entry)
			if q.matches(entry) {
				out = append(out, entry)
			}
		}
	default:
		for i := e.allHead; i != listEnd; i = e.entries[i].next {
			entry := &e.entries[i]
			if q.matches(entry) {
				out = append(out, entry)
			}
		}
	}
	return out
}
