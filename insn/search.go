package insn

import (
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/typedesc"
)

// Direction selects which neighbour Walk follows.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// FindFirst returns the first node whose opcode satisfies pred, or nil.
func FindFirst(l *List, pred func(op int) bool) *Node {
	for n := l.First(); n != nil; n = n.Next() {
		if pred(n.Opcode) {
			return n
		}
	}
	return nil
}

// FindLast returns the last node whose opcode satisfies pred, or nil.
func FindLast(l *List, pred func(op int) bool) *Node {
	for n := l.Last(); n != nil; n = n.Prev() {
		if pred(n.Opcode) {
			return n
		}
	}
	return nil
}

// FindFirstOp returns the first node with the given opcode, or nil.
func FindFirstOp(l *List, op int) *Node {
	return FindFirst(l, func(o int) bool { return o == op })
}

// FindLastOp returns the last node with the given opcode, or nil.
func FindLastOp(l *List, op int) *Node {
	return FindLast(l, func(o int) bool { return o == op })
}

// Walk moves steps nodes from n in the given direction.
func Walk(n *Node, steps int, dir Direction) (*Node, error) {
	if steps < 0 {
		return nil, errors.InvalidArgument(errors.PhaseInsn, "negative step count")
	}
	cur := n
	for i := 0; i < steps; i++ {
		if dir == Backward {
			cur = cur.Prev()
		} else {
			cur = cur.Next()
		}
		if cur == nil {
			return nil, errors.OutOfRange(errors.PhaseInsn, steps, i)
		}
	}
	return cur, nil
}

// ReturnOpcode returns the return instruction matching a method's return type.
func ReturnOpcode(ret typedesc.Type) int {
	switch ret.Sort() {
	case typedesc.Void:
		return RETURN
	case typedesc.Boolean, typedesc.Char, typedesc.Byte, typedesc.Short, typedesc.Int:
		return IRETURN
	case typedesc.Float:
		return FRETURN
	case typedesc.Long:
		return LRETURN
	case typedesc.Double:
		return DRETURN
	default:
		return ARETURN
	}
}
