package insn

import (
	"slices"

	"github.com/wippyai/classmeta/errors"
)

// LabelMap maps original labels to their clones.
type LabelMap map[*Node]*Node

// NewLabelMap assigns a fresh label to every label of l.
func NewLabelMap(l *List) LabelMap {
	m := make(LabelMap)
	for n := l.First(); n != nil; n = n.Next() {
		if n.Opcode == OpLabel {
			m[n] = NewLabel()
		}
	}
	return m
}

func (m LabelMap) get(label *Node) *Node {
	if label == nil {
		return nil
	}
	if c, ok := m[label]; ok {
		return c
	}
	return label
}

// CloneRange returns a new list holding copies of every node from from to to, inclusive.
// Label references are rewritten through one map built over all of l, so a jump
// whose target lies inside the range targets the cloned label.
func CloneRange(l *List, from, to *Node) (*List, error) {
	if from == nil || to == nil || from.List() != l || to.List() != l {
		return nil, errors.InvalidArgument(errors.PhaseInsn, "range bounds must belong to the list")
	}

	labels := NewLabelMap(l)
	out := &List{}
	for cur := from; ; cur = cur.Next() {
		if cur == nil {
			return nil, errors.InvalidArgument(errors.PhaseInsn, "range end precedes range start")
		}
		out.Add(cloneWith(cur, labels))
		if cur == to {
			break
		}
	}
	return out, nil
}

// Clone copies the whole list.
func Clone(l *List) (*List, error) {
	if l.Len() == 0 {
		return &List{}, nil
	}
	return CloneRange(l, l.First(), l.Last())
}

// CloneFrom copies from the given node to the end of the list.
func CloneFrom(l *List, from *Node) (*List, error) {
	return CloneRange(l, from, l.Last())
}

// CloneNode copies a single node. Labels it references are mapped against
// the list it belongs to; the result is detached.
func CloneNode(n *Node) *Node {
	labels := LabelMap{}
	if n.List() != nil {
		labels = NewLabelMap(n.List())
	}
	return cloneWith(n, labels)
}

func cloneWith(n *Node, labels LabelMap) *Node {
	if n.Opcode == OpLabel {
		if c, ok := labels[n]; ok {
			return c
		}
		return NewLabel()
	}

	var imm any
	switch v := n.Imm.(type) {
	case JumpImm:
		imm = JumpImm{Label: labels.get(v.Label)}
	case TableSwitchImm:
		ls := make([]*Node, len(v.Labels))
		for i, lb := range v.Labels {
			ls[i] = labels.get(lb)
		}
		imm = TableSwitchImm{Min: v.Min, Max: v.Max, Default: labels.get(v.Default), Labels: ls}
	case LookupSwitchImm:
		ls := make([]*Node, len(v.Labels))
		for i, lb := range v.Labels {
			ls[i] = labels.get(lb)
		}
		imm = LookupSwitchImm{Default: labels.get(v.Default), Keys: slices.Clone(v.Keys), Labels: ls}
	case LineImm:
		imm = LineImm{Line: v.Line, Start: labels.get(v.Start)}
	case InvokeDynamicImm:
		v.Args = slices.Clone(v.Args)
		imm = v
	default:
		imm = n.Imm
	}
	return &Node{Opcode: n.Opcode, Imm: imm}
}
