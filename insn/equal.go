package insn

import (
	"reflect"
	"slices"
)

// payloads returns both payloads as T. ok is false when either node carries
// a missing or different payload.
func payloads[T any](a, b *Node) (x, y T, ok bool) {
	x, okA := a.Imm.(T)
	y, okB := b.Imm.(T)
	return x, y, okA && okB
}

// Equal reports whether two nodes are structurally equal. With lenient set only
// opcodes are compared. Labels, jumps, frames, line markers and operand-free
// instructions are equal whenever their opcodes match.
func Equal(a, b *Node, lenient bool) bool {
	if a.Opcode != b.Opcode {
		return false
	}
	if lenient {
		return true
	}
	switch KindOf(a.Opcode) {
	case KindInsn, KindJump, KindLabel, KindFrame, KindLine:
		return true
	case KindInt:
		x, y, ok := payloads[IntImm](a, b)
		return ok && x.Value == y.Value
	case KindVar:
		x, y, ok := payloads[VarImm](a, b)
		return ok && x.Index == y.Index
	case KindType:
		x, y, ok := payloads[TypeImm](a, b)
		return ok && x.Desc == y.Desc
	case KindField:
		x, y, ok := payloads[FieldImm](a, b)
		return ok && x.Owner == y.Owner && x.Name == y.Name && x.Desc == y.Desc
	case KindMethod:
		x, y, ok := payloads[MethodImm](a, b)
		return ok && x.Owner == y.Owner && x.Name == y.Name && x.Desc == y.Desc
	case KindLdc:
		x, y, ok := payloads[LdcImm](a, b)
		return ok && reflect.DeepEqual(x.Value, y.Value)
	case KindIinc:
		x, y, ok := payloads[IincImm](a, b)
		return ok && x.Index == y.Index && x.Incr == y.Incr
	case KindTableSwitch:
		x, y, ok := payloads[TableSwitchImm](a, b)
		return ok && x.Min == y.Min && x.Max == y.Max
	case KindLookupSwitch:
		x, y, ok := payloads[LookupSwitchImm](a, b)
		return ok && slices.Equal(x.Keys, y.Keys)
	case KindMultiANewArray:
		x, y, ok := payloads[MultiANewArrayImm](a, b)
		return ok && x.Dims == y.Dims && x.Desc == y.Desc
	case KindInvokeDynamic:
		x, y, ok := payloads[InvokeDynamicImm](a, b)
		return ok && x.Name == y.Name && x.Desc == y.Desc &&
			x.Bootstrap == y.Bootstrap && reflect.DeepEqual(x.Args, y.Args)
	default:
		return false
	}
}
