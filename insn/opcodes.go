package insn

// JVM opcodes.
const (
	NOP             = 0x00
	ACONST_NULL     = 0x01
	ICONST_M1       = 0x02
	ICONST_0        = 0x03
	ICONST_1        = 0x04
	ICONST_2        = 0x05
	ICONST_3        = 0x06
	ICONST_4        = 0x07
	ICONST_5        = 0x08
	LCONST_0        = 0x09
	LCONST_1        = 0x0a
	FCONST_0        = 0x0b
	FCONST_1        = 0x0c
	FCONST_2        = 0x0d
	DCONST_0        = 0x0e
	DCONST_1        = 0x0f
	BIPUSH          = 0x10
	SIPUSH          = 0x11
	LDC             = 0x12
	LDC_W           = 0x13
	LDC2_W          = 0x14
	ILOAD           = 0x15
	LLOAD           = 0x16
	FLOAD           = 0x17
	DLOAD           = 0x18
	ALOAD           = 0x19
	ILOAD_0         = 0x1a
	ALOAD_3         = 0x2d
	IALOAD          = 0x2e
	LALOAD          = 0x2f
	FALOAD          = 0x30
	DALOAD          = 0x31
	AALOAD          = 0x32
	BALOAD          = 0x33
	CALOAD          = 0x34
	SALOAD          = 0x35
	ISTORE          = 0x36
	LSTORE          = 0x37
	FSTORE          = 0x38
	DSTORE          = 0x39
	ASTORE          = 0x3a
	ISTORE_0        = 0x3b
	ASTORE_3        = 0x4e
	IASTORE         = 0x4f
	LASTORE         = 0x50
	FASTORE         = 0x51
	DASTORE         = 0x52
	AASTORE         = 0x53
	BASTORE         = 0x54
	CASTORE         = 0x55
	SASTORE         = 0x56
	POP             = 0x57
	POP2            = 0x58
	DUP             = 0x59
	DUP_X1          = 0x5a
	DUP_X2          = 0x5b
	DUP2            = 0x5c
	DUP2_X1         = 0x5d
	DUP2_X2         = 0x5e
	SWAP            = 0x5f
	IADD            = 0x60
	LADD            = 0x61
	FADD            = 0x62
	DADD            = 0x63
	ISUB            = 0x64
	IMUL            = 0x68
	IDIV            = 0x6c
	IREM            = 0x70
	INEG            = 0x74
	ISHL            = 0x78
	IAND            = 0x7e
	IOR             = 0x80
	IXOR            = 0x82
	LXOR            = 0x83
	IINC            = 0x84
	I2L             = 0x85
	I2S             = 0x93
	LCMP            = 0x94
	DCMPG           = 0x98
	IFEQ            = 0x99
	IFNE            = 0x9a
	IFLT            = 0x9b
	IFGE            = 0x9c
	IFGT            = 0x9d
	IFLE            = 0x9e
	IF_ICMPEQ       = 0x9f
	IF_ICMPNE       = 0xa0
	IF_ICMPLT       = 0xa1
	IF_ICMPGE       = 0xa2
	IF_ICMPGT       = 0xa3
	IF_ICMPLE       = 0xa4
	IF_ACMPEQ       = 0xa5
	IF_ACMPNE       = 0xa6
	GOTO            = 0xa7
	JSR             = 0xa8
	RET             = 0xa9
	TABLESWITCH     = 0xaa
	LOOKUPSWITCH    = 0xab
	IRETURN         = 0xac
	LRETURN         = 0xad
	FRETURN         = 0xae
	DRETURN         = 0xaf
	ARETURN         = 0xb0
	RETURN          = 0xb1
	GETSTATIC       = 0xb2
	PUTSTATIC       = 0xb3
	GETFIELD        = 0xb4
	PUTFIELD        = 0xb5
	INVOKEVIRTUAL   = 0xb6
	INVOKESPECIAL   = 0xb7
	INVOKESTATIC    = 0xb8
	INVOKEINTERFACE = 0xb9
	INVOKEDYNAMIC   = 0xba
	NEW             = 0xbb
	NEWARRAY        = 0xbc
	ANEWARRAY       = 0xbd
	ARRAYLENGTH     = 0xbe
	ATHROW          = 0xbf
	CHECKCAST       = 0xc0
	INSTANCEOF      = 0xc1
	MONITORENTER    = 0xc2
	MONITOREXIT     = 0xc3
	WIDE            = 0xc4
	MULTIANEWARRAY  = 0xc5
	IFNULL          = 0xc6
	IFNONNULL       = 0xc7
	GOTO_W          = 0xc8
	JSR_W           = 0xc9
)

// Pseudo opcodes for list entries that are not instructions.
const (
	OpLabel = -1
	OpLine  = -2
	OpFrame = -3
)

// Kind groups opcodes by the shape of their payload.
type Kind uint8

const (
	KindInsn Kind = iota
	KindInt
	KindVar
	KindType
	KindField
	KindMethod
	KindInvokeDynamic
	KindJump
	KindLabel
	KindLdc
	KindIinc
	KindTableSwitch
	KindLookupSwitch
	KindMultiANewArray
	KindFrame
	KindLine
)

// KindOf returns the payload kind for an opcode.
func KindOf(op int) Kind {
	switch {
	case op == OpLabel:
		return KindLabel
	case op == OpLine:
		return KindLine
	case op == OpFrame:
		return KindFrame
	case op == BIPUSH || op == SIPUSH || op == NEWARRAY:
		return KindInt
	case op == LDC:
		return KindLdc
	case op >= ILOAD && op <= ALOAD, op >= ISTORE && op <= ASTORE, op == RET:
		return KindVar
	case op == IINC:
		return KindIinc
	case op >= IFEQ && op <= JSR, op == IFNULL, op == IFNONNULL:
		return KindJump
	case op == TABLESWITCH:
		return KindTableSwitch
	case op == LOOKUPSWITCH:
		return KindLookupSwitch
	case op >= GETSTATIC && op <= PUTFIELD:
		return KindField
	case op >= INVOKEVIRTUAL && op <= INVOKEINTERFACE:
		return KindMethod
	case op == INVOKEDYNAMIC:
		return KindInvokeDynamic
	case op == NEW || op == ANEWARRAY || op == CHECKCAST || op == INSTANCEOF:
		return KindType
	case op == MULTIANEWARRAY:
		return KindMultiANewArray
	default:
		return KindInsn
	}
}

// IsReturn reports whether op leaves the method normally.
func IsReturn(op int) bool {
	return op >= IRETURN && op <= RETURN
}

var opNames = map[int]string{
	NOP: "nop", ACONST_NULL: "aconst_null", BIPUSH: "bipush", SIPUSH: "sipush", LDC: "ldc",
	ILOAD: "iload", LLOAD: "lload", FLOAD: "fload", DLOAD: "dload", ALOAD: "aload",
	ISTORE: "istore", LSTORE: "lstore", FSTORE: "fstore", DSTORE: "dstore", ASTORE: "astore",
	POP: "pop", DUP: "dup", SWAP: "swap", IADD: "iadd", IINC: "iinc",
	IFEQ: "ifeq", IFNE: "ifne", IFLT: "iflt", IFGE: "ifge", IFGT: "ifgt", IFLE: "ifle",
	IF_ICMPEQ: "if_icmpeq", IF_ICMPNE: "if_icmpne", IF_ICMPLT: "if_icmplt", IF_ICMPGE: "if_icmpge",
	IF_ICMPGT: "if_icmpgt", IF_ICMPLE: "if_icmple", IF_ACMPEQ: "if_acmpeq", IF_ACMPNE: "if_acmpne",
	GOTO: "goto", JSR: "jsr", RET: "ret", TABLESWITCH: "tableswitch", LOOKUPSWITCH: "lookupswitch",
	IRETURN: "ireturn", LRETURN: "lreturn", FRETURN: "freturn", DRETURN: "dreturn", ARETURN: "areturn", RETURN: "return",
	GETSTATIC: "getstatic", PUTSTATIC: "putstatic", GETFIELD: "getfield", PUTFIELD: "putfield",
	INVOKEVIRTUAL: "invokevirtual", INVOKESPECIAL: "invokespecial", INVOKESTATIC: "invokestatic",
	INVOKEINTERFACE: "invokeinterface", INVOKEDYNAMIC: "invokedynamic",
	NEW: "new", NEWARRAY: "newarray", ANEWARRAY: "anewarray", ARRAYLENGTH: "arraylength", ATHROW: "athrow",
	CHECKCAST: "checkcast", INSTANCEOF: "instanceof", MONITORENTER: "monitorenter", MONITOREXIT: "monitorexit",
	MULTIANEWARRAY: "multianewarray", IFNULL: "ifnull", IFNONNULL: "ifnonnull",
	OpLabel: "label", OpLine: "line", OpFrame: "frame",
}

// OpName returns a mnemonic for op, or its hex value when unnamed.
func OpName(op int) string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "op_" + hex2(op)
}

func hex2(op int) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[(op>>4)&0xF], digits[op&0xF]})
}
