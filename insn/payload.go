package insn

// IntImm holds the operand of bipush, sipush and newarray.
type IntImm struct {
	Value int32
}

// VarImm holds the local slot of load, store and ret instructions.
// Short forms such as iload_0 decode to the long form with an explicit slot.
type VarImm struct {
	Index uint16
}

// TypeImm holds the internal name or array descriptor for new, anewarray,
// checkcast and instanceof.
type TypeImm struct {
	Desc string
}

// FieldImm holds the field reference of get/put instructions.
type FieldImm struct {
	Owner string
	Name  string
	Desc  string
}

// MethodImm holds the method reference of invoke instructions.
type MethodImm struct {
	Owner     string
	Name      string
	Desc      string
	Interface bool
}

// Handle is a method handle constant.
type Handle struct {
	Owner     string
	Name      string
	Desc      string
	Tag       uint8
	Interface bool
}

// ConstantDynamic is a dynamically computed constant.
type ConstantDynamic struct {
	Name      string
	Desc      string
	Bootstrap Handle
	Args      []any
}

// InvokeDynamicImm holds the call site of invokedynamic.
type InvokeDynamicImm struct {
	Name      string
	Desc      string
	Bootstrap Handle
	Args      []any
}

// JumpImm holds the target label of a conditional or unconditional jump.
type JumpImm struct {
	Label *Node
}

// LdcImm holds a loadable constant: int32, float32, int64, float64, string,
// typedesc.Type, Handle or ConstantDynamic.
type LdcImm struct {
	Value any
}

// IincImm holds the slot and increment of iinc.
type IincImm struct {
	Index uint16
	Incr  int16
}

// TableSwitchImm holds the range and targets of tableswitch.
type TableSwitchImm struct {
	Default *Node
	Labels  []*Node
	Min     int32
	Max     int32
}

// LookupSwitchImm holds the keys and targets of lookupswitch.
type LookupSwitchImm struct {
	Default *Node
	Keys    []int32
	Labels  []*Node
}

// MultiANewArrayImm holds the descriptor and dimension count of multianewarray.
type MultiANewArrayImm struct {
	Desc string
	Dims uint8
}

// LineImm marks the source line that starts at a label.
type LineImm struct {
	Start *Node
	Line  uint16
}

// Frame types as they appear in StackMapTable.
const (
	FrameSame uint8 = iota
	FrameSameLocals1
	FrameChop
	FrameAppend
	FrameFull
)

// FrameImm marks a stack map frame. Only the frame shape is kept.
type FrameImm struct {
	Type uint8
}
