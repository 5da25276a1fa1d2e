package ofputil

import (
	"github.com/rlane/indigo/ofp"
)

// OutputPortsFromActions extracts the set of egress ports referenced by
// ActionOutput entries in an OpenFlow 1.0-style action list.
//
// Grounded on ft.c's out_port_list_populate_from_actions: a flow's
// output ports are a derived, recomputable view over its effects, used
// only to filter queries by out-port.
func OutputPortsFromActions(actions ofp.Actions) []ofp.PortNo {
	var ports []ofp.PortNo
	for _, a := range actions {
		if out, ok := a.(*ofp.ActionOutput); ok {
			ports = append(ports, out.Port)
		}
	}
	return ports
}

// OutputPortsFromInstructions extracts the set of egress ports
// referenced by ActionOutput entries nested in ApplyActions/
// WriteActions instructions of an OpenFlow 1.1+ instruction list.
//
// Grounded on ft.c's out_port_list_populate_from_instructions, which
// walks only the Apply-Actions and Write-Actions instructions (Goto-
// Table, Write-Metadata, Clear-Actions and Meter carry no output port).
func OutputPortsFromInstructions(instructions ofp.Instructions) []ofp.PortNo {
	var ports []ofp.PortNo
	for _, instr := range instructions {
		switch ins := instr.(type) {
		case *ofp.InstructionApplyActions:
			ports = append(ports, OutputPortsFromActions(ins.Actions)...)
		case *ofp.InstructionWriteActions:
			ports = append(ports, OutputPortsFromActions(ins.Actions)...)
		}
	}
	return ports
}

// ContainsPort reports whether port appears in ports, or whether port
// is the wildcard ofp.PortAny (which is never itself present in a
// concrete effects list but matches any lookup key per convention).
func ContainsPort(ports []ofp.PortNo, port ofp.PortNo) bool {
	if port == ofp.PortAny {
		return true
	}
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}
