package flowtable

import (
	"github.com/rlane/indigo/ofp"
	"github.com/rlane/indigo/ofputil"
)

// Mode selects how Query/FirstMatch compares a query against an
// entry's match, mirroring ft.h's query mode enum.
type Mode int

const (
	// ModeNonStrict matches entries whose match is at least as specific
	// as the query's (every field the query constrains, the entry
	// constrains at least as narrowly).
	ModeNonStrict Mode = iota

	// ModeStrict matches only entries whose match is exactly equal to
	// the query's.
	ModeStrict

	// ModeCookieOnly ignores the match entirely and selects by
	// cookie/mask and table alone.
	ModeCookieOnly

	// ModeOverlap matches entries whose match overlaps the query's,
	// used to implement OFPFF_CHECK_OVERLAP on Add.
	ModeOverlap
)

// Query describes a flow selection used by FirstMatch, Engine.Query,
// and iterator tasks. It mirrors ft.c's ft_flow_meta_match predicate
// inputs.
type Query struct {
	Match      ofp.Match
	Cookie     uint64
	CookieMask uint64
	Table      ofp.Table
	Priority   uint16

	// CheckPriority restricts the match to entries at exactly
	// Priority; when false, priority is ignored.
	CheckPriority bool

	Mode Mode

	// OutPort, when neither zero nor OFPP_ANY, additionally restricts
	// the match to entries whose output ports include OutPort.
	OutPort ofp.PortNo
}

// outPortAny is OFPP_ANY: the sentinel meaning "do not filter by
// output port".
const outPortAny ofp.PortNo = 0xffffffff

// isKnownMode reports whether q.Mode is one of the four modes the
// predicate understands. Callers log once per query when this is
// false rather than on every entry matches() would otherwise silently
// reject.
func (q *Query) isKnownMode() bool {
	switch q.Mode {
	case ModeStrict, ModeNonStrict, ModeCookieOnly, ModeOverlap:
		return true
	default:
		return false
	}
}

// matches applies the five-step predicate ft_flow_meta_match uses:
// liveness, cookie, table, priority, then mode-specific match
// comparison, plus the optional out-port check query callers also use.
func (q *Query) matches(e *Entry) bool {
	if e.state == StateDeleteMarked {
		return false
	}

	if (e.cookie & q.CookieMask) != (q.Cookie & q.CookieMask) {
		return false
	}

	if q.Table != ofp.TableAll && e.table != q.Table {
		return false
	}

	if q.CheckPriority && e.priority != q.Priority {
		return false
	}

	// Out-port is only consulted by STRICT/NON_STRICT, matching
	// ft_flow_meta_match: OVERLAP ignores it entirely and COOKIE_ONLY
	// has no match clause to attach it to.
	checkOutPort := func() bool {
		if q.OutPort == outPortAny || q.OutPort == 0 {
			return true
		}
		return ofputil.ContainsPort(e.outputPorts, q.OutPort)
	}

	switch q.Mode {
	case ModeStrict:
		return ofputil.Equal(q.Match, e.match) && checkOutPort()
	case ModeNonStrict:
		return ofputil.MoreSpecific(q.Match, e.match) && checkOutPort()
	case ModeOverlap:
		return ofputil.Overlap(q.Match, e.match)
	case ModeCookieOnly:
		return true
	default:
		// Unknown mode: the predicate fails.
		return false
	}
}
