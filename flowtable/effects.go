package flowtable

import (
	"github.com/rlane/indigo/ofp"
	"github.com/rlane/indigo/ofputil"
)

// Effects is the action program a flow entry carries. Exactly one of
// Actions or Instructions is set, mirroring the dual storage the
// original engine uses depending on the OpenFlow version negotiated
// with the switch: a bare action list for 1.0-style flow mods, or an
// instruction list (which may itself wrap actions inside Apply/Write)
// for 1.1 and later.
type Effects struct {
	Actions      ofp.Actions
	Instructions ofp.Instructions
}

// OutputPorts derives the egress ports this effects program
// references, by walking whichever of Actions/Instructions is set.
func (e Effects) OutputPorts() []ofp.PortNo {
	if e.Actions != nil {
		return ofputil.OutputPortsFromActions(e.Actions)
	}
	return ofputil.OutputPortsFromInstructions(e.Instructions)
}

// AddMessage carries the attributes of a flow-add (or flow-modify,
// when reused by ModifyEffects) request. The engine takes ownership
// of a duplicate of this value on Add; callers may reuse or discard
// their copy once the call returns.
type AddMessage struct {
	Match        ofp.Match
	Cookie       uint64
	Table        ofp.Table
	Priority     uint16
	Flags        ofp.FlowModFlag
	IdleTimeout  uint16
	HardTimeout  uint16
	Actions      ofp.Actions
	Instructions ofp.Instructions
}

func (m *AddMessage) effects() Effects {
	return Effects{Actions: m.Actions, Instructions: m.Instructions}
}

// dup returns a deep-enough copy of m for the entry to own: the
// message itself is copied by value, and its slice-typed fields are
// re-sliced into fresh backing arrays so a caller mutating their
// original message cannot reach into the stored entry.
func (m *AddMessage) dup() *AddMessage {
	cp := *m

	cp.Match.Fields = append([]ofp.XM(nil), m.Match.Fields...)
	if m.Actions != nil {
		cp.Actions = append(ofp.Actions(nil), m.Actions...)
	}
	if m.Instructions != nil {
		cp.Instructions = append(ofp.Instructions(nil), m.Instructions...)
	}

	return &cp
}
