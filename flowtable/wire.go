package flowtable

import (
	"time"

	"github.com/rlane/indigo/ofp"
)

// AddMessageFromFlowMod builds an AddMessage from a wire FlowMod
// carrying an OFPFC_ADD command, the caller-facing side of ft_add in
// the original: the forwarding layer there calls ft_add after it has
// already decoded of_flow_add_t off the wire, which is exactly what
// FlowMod.ReadFrom does for the Go wire type.
func AddMessageFromFlowMod(fm *ofp.FlowMod) *AddMessage {
	return &AddMessage{
		Match:        fm.Match,
		Cookie:       fm.Cookie,
		Table:        fm.Table,
		Priority:     fm.Priority,
		Flags:        fm.Flags,
		IdleTimeout:  fm.IdleTimeout,
		HardTimeout:  fm.HardTimeout,
		Instructions: fm.Instructions,
	}
}

// queryModeForCommand maps a FlowMod's modify/delete command to the
// meta-match mode ft_flow_modify/ft_flow_delete pass through to
// ft_flow_query: the *Strict commands probe the match index with
// byte-equal matching, the non-strict commands treat the FlowMod's
// match as a wildcard superset.
func queryModeForCommand(cmd ofp.FlowModCommand) Mode {
	switch cmd {
	case ofp.FlowModifyStrict, ofp.FlowDeleteStrict:
		return ModeStrict
	default:
		return ModeNonStrict
	}
}

// QueryFromFlowMod builds a Query selecting the entries a FlowMod with
// a modify or delete command should act on, using the command to pick
// STRICT vs NON_STRICT matching.
func QueryFromFlowMod(fm *ofp.FlowMod) *Query {
	return &Query{
		Match:      fm.Match,
		Cookie:     fm.Cookie,
		CookieMask: fm.CookieMask,
		Table:      fm.Table,
		Priority:   fm.Priority,
		Mode:       queryModeForCommand(fm.Command),
		OutPort:    fm.OutPort,
	}
}

// QueryFromFlowStatsRequest builds a Query from a flow statistics
// multipart request. Flow stats requests always use non-strict
// matching (a request's match is a wildcard superset the same way a
// non-strict FlowModify's is), since a stats request has no command
// field to signal STRICT with.
func QueryFromFlowStatsRequest(req *ofp.FlowStatsRequest) *Query {
	return &Query{
		Match:      req.Match,
		Cookie:     req.Cookie,
		CookieMask: req.CookieMask,
		Table:      req.Table,
		Mode:       ModeNonStrict,
		OutPort:    req.OutPort,
	}
}

// FlowRemovedFromEntry builds a wire FlowRemoved notification from an
// entry that has just been marked deleted, mirroring the forwarding
// layer's ft_flow_mark_deleted → of_flow_removed_new path.
func FlowRemovedFromEntry(e *Entry, now time.Time) *ofp.FlowRemoved {
	duration := now.Sub(e.InsertTime())
	packets, bytes := e.Counters()

	return &ofp.FlowRemoved{
		Cookie:       e.Cookie(),
		Priority:     e.Priority(),
		Reason:       e.RemovedReason(),
		Table:        e.Table(),
		DurationSec:  uint32(duration / time.Second),
		DurationNSec: uint32(duration % time.Second),
		IdleTimeout:  e.idleTimeout,
		HardTimeout:  e.hardTimeout,
		PacketCount:  packets,
		ByteCount:    bytes,
		Match:        e.Match(),
	}
}

// FlowStatsFromEntry builds a wire FlowStats reply body from an entry,
// for assembling a flow stats multipart reply.
func FlowStatsFromEntry(e *Entry, now time.Time) *ofp.FlowStats {
	duration := now.Sub(e.InsertTime())
	packets, bytes := e.Counters()
	effects := e.Effects()

	return &ofp.FlowStats{
		Table:        e.Table(),
		DurationSec:  uint32(duration / time.Second),
		DurationNSec: uint32(duration % time.Second),
		Priority:     e.Priority(),
		IdleTimeout:  e.idleTimeout,
		HardTimeout:  e.hardTimeout,
		Flags:        e.Flags(),
		Cookie:       e.Cookie(),
		PacketCount:  packets,
		ByteCount:    bytes,
		Match:        e.Match(),
		Instructions: effects.Instructions,
	}
}
