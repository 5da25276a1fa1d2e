package ofputil

import (
	"reflect"
	"testing"

	"github.com/rlane/indigo/ofp"
)

func TestOutputPortsFromActions(t *testing.T) {
	actions := ofp.Actions{
		&ofp.ActionOutput{Port: ofp.PortNo(1)},
		&ofp.ActionSetQueue{QueueID: 3},
		&ofp.ActionOutput{Port: ofp.PortNo(2)},
	}

	ports := OutputPortsFromActions(actions)
	want := []ofp.PortNo{1, 2}
	if !reflect.DeepEqual(ports, want) {
		t.Fatalf("OutputPortsFromActions() = %v, want %v", ports, want)
	}
}

func TestOutputPortsFromInstructions(t *testing.T) {
	instructions := ofp.Instructions{
		&ofp.InstructionApplyActions{Actions: ofp.Actions{
			&ofp.ActionOutput{Port: ofp.PortNo(1)},
		}},
		&ofp.InstructionWriteActions{Actions: ofp.Actions{
			&ofp.ActionOutput{Port: ofp.PortNo(5)},
		}},
		&ofp.InstructionClearActions{},
	}

	ports := OutputPortsFromInstructions(instructions)
	want := []ofp.PortNo{1, 5}
	if !reflect.DeepEqual(ports, want) {
		t.Fatalf("OutputPortsFromInstructions() = %v, want %v", ports, want)
	}
}

func TestContainsPort(t *testing.T) {
	ports := []ofp.PortNo{1, 2, 3}

	if !ContainsPort(ports, 2) {
		t.Fatalf("expected ContainsPort to find 2 in %v", ports)
	}
	if ContainsPort(ports, 9) {
		t.Fatalf("expected ContainsPort to not find 9 in %v", ports)
	}
}
