package ofputil

import (
	"bytes"
	"fmt"

	"github.com/rlane/indigo/internal/encoding"
	"github.com/rlane/indigo/ofp"
)

func bytesOf(v interface{}) []byte {
	var buf bytes.Buffer

	_, err := encoding.WriteTo(&buf, v)
	if err != nil {
		text := "ofputil: unable to marshal %v"
		panic(fmt.Errorf(text, err))
	}

	return buf.Bytes()
}

func ExtendedMatch(xms ...ofp.XM) ofp.Match {
	return ofp.Match{ofp.MatchTypeXM, xms}
}

// basic creates an Openflow basic extensible match of the given type.
func basic(t ofp.XMType, val ofp.XMValue, mask ofp.XMValue) ofp.XM {
	return ofp.XM{
		Class: ofp.XMClassOpenflowBasic,
		Type:  t, Value: val, Mask: mask,
	}
}

// MatchEthType creates an Openflow basic extensible match of Ethernet
// payload type.
func MatchEthType(eth uint16) ofp.XM {
	return basic(ofp.XMTypeEthType, bytesOf(eth), nil)
}

// MatchInPort creates an Openflow basic extensible match of in port.
func MatchInPort(port ofp.PortNo) ofp.XM {
	return basic(ofp.XMTypeInPort, bytesOf(port), nil)
}

// MatchIPProto creates an Openflow basic extensible match of IP protocol
// payload type.
func MatchIPProto(ipp uint8) ofp.XM {
	return basic(ofp.XMTypeIPProto, bytesOf(ipp), nil)
}

// MatchICMPv6Type creates an Openflow basic extensible match of ICMPv6
// message type.
func MatchICMPv6Type(icmpt uint8) ofp.XM {
	return basic(ofp.XMTypeICMPv6Type, bytesOf(icmpt), nil)
}

// MatchIPv6ExtHeader creates an Openflow basic extensible match of IPv6
// extension header.
func MatchIPv6ExtHeader(header uint16) ofp.XM {
	return basic(ofp.XMTypeIPv6ExtHeader, bytesOf(header), nil)
}

// xmKey identifies an extensible match field irrespective of its value,
// used to pair up fields of the same type/class across two matches.
type xmKey struct {
	class ofp.XMClass
	typ   ofp.XMType
}

func xmIndex(m ofp.Match) map[xmKey]ofp.XM {
	idx := make(map[xmKey]ofp.XM, len(m.Fields))
	for _, xm := range m.Fields {
		idx[xmKey{xm.Class, xm.Type}] = xm
	}
	return idx
}

// xmValueEqual reports whether two extensible match fields constrain
// their packet field identically: same mask (or both unmasked) and same
// masked value.
func xmValueEqual(a, b ofp.XM) bool {
	if len(a.Mask) != len(b.Mask) {
		return false
	}
	if !bytes.Equal(a.Mask, b.Mask) {
		return false
	}
	return bytes.Equal(maskedValue(a), maskedValue(b))
}

func maskedValue(xm ofp.XM) []byte {
	if len(xm.Mask) == 0 {
		return xm.Value
	}
	out := make([]byte, len(xm.Value))
	for i := range out {
		out[i] = xm.Value[i] & xm.Mask[i]
	}
	return out
}

// xmOverlaps reports whether two (possibly masked) extensible match
// fields admit at least one common value.
func xmOverlaps(a, b ofp.XM) bool {
	n := len(a.Value)
	if len(b.Value) != n {
		return false
	}
	for i := 0; i < n; i++ {
		am := byte(0xff)
		if len(a.Mask) > 0 {
			am = a.Mask[i]
		}
		bm := byte(0xff)
		if len(b.Mask) > 0 {
			bm = b.Mask[i]
		}
		// The fields conflict on bit positions both constrain
		// (am & bm) if their values differ there.
		if (a.Value[i]^b.Value[i])&am&bm != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether two matches constrain packets identically: the
// same set of fields, each with the same mask and masked value.
//
// Equal is the match_equal predicate the flow-table engine's STRICT
// query mode relies on.
func Equal(a, b ofp.Match) bool {
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	bidx := xmIndex(b)
	for _, fa := range a.Fields {
		fb, ok := bidx[xmKey{fa.Class, fa.Type}]
		if !ok || !xmValueEqual(fa, fb) {
			return false
		}
	}
	return true
}

// MoreSpecific reports whether specific is at least as constrained as
// general on every field general constrains: every field present in
// general is also present in specific with an equal-or-narrower mask
// and a compatible value. specific may additionally constrain fields
// general leaves wildcarded.
//
// MoreSpecific is the match_more_specific predicate the flow-table
// engine's NON_STRICT query mode relies on.
func MoreSpecific(general, specific ofp.Match) bool {
	sidx := xmIndex(specific)
	for _, fg := range general.Fields {
		fs, ok := sidx[xmKey{fg.Class, fg.Type}]
		if !ok {
			return false
		}
		if !xmOverlaps(fg, fs) {
			return false
		}
		// general's mask bits must all be set in specific's mask
		// (specific cannot be less constrained than general).
		if len(fg.Mask) > 0 {
			if len(fs.Mask) == 0 {
				return false
			}
			for i, gm := range fg.Mask {
				if gm&^fs.Mask[i] != 0 {
					return false
				}
			}
		} else if len(fs.Mask) > 0 {
			// general is exact on this field, so specific must be too.
			for _, sm := range fs.Mask {
				if sm != 0xff {
					return false
				}
			}
		}
	}
	return true
}

// Overlap reports whether a and b admit at least one packet that
// matches both: for every field either side constrains, the two
// fields' masked value ranges intersect. Fields only one side
// constrains are ignored (the unconstrained side already matches any
// value there).
//
// Overlap is the match_overlap predicate the flow-table engine's
// OVERLAP query mode relies on.
func Overlap(a, b ofp.Match) bool {
	bidx := xmIndex(b)
	for _, fa := range a.Fields {
		fb, ok := bidx[xmKey{fa.Class, fa.Type}]
		if !ok {
			continue
		}
		if !xmOverlaps(fa, fb) {
			return false
		}
	}
	return true
}
