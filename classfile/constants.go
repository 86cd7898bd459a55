package classfile

// Magic is the class file magic number.
const Magic uint32 = 0xCAFEBABE

// Default class file version written by Encode (Java 8).
const (
	DefaultMajor uint16 = 52
	DefaultMinor uint16 = 0
)

// Access flags. Several share a bit and are distinguished by where they appear.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020 // class
	AccSynchronized uint16 = 0x0020 // method
	AccVolatile     uint16 = 0x0040 // field
	AccBridge       uint16 = 0x0040 // method
	AccTransient    uint16 = 0x0080 // field
	AccVarargs      uint16 = 0x0080 // method
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
	AccAnnotation   uint16 = 0x2000
	AccEnum         uint16 = 0x4000
	AccModule       uint16 = 0x8000
)

// Constant pool tags.
const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
	TagModule             uint8 = 19
	TagPackage            uint8 = 20
)

// Attribute names the reader decodes.
const (
	AttrCode                        = "Code"
	AttrLineNumberTable             = "LineNumberTable"
	AttrStackMapTable               = "StackMapTable"
	AttrRuntimeVisibleAnnotations   = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations = "RuntimeInvisibleAnnotations"
	AttrAnnotationDefault           = "AnnotationDefault"
	AttrSignature                   = "Signature"
	AttrSourceFile                  = "SourceFile"
	AttrConstantValue               = "ConstantValue"
	AttrExceptions                  = "Exceptions"
	AttrBootstrapMethods            = "BootstrapMethods"
)

// Well-known names.
const (
	ConstructorName = "<init>"
	InitializerName = "<clinit>"
	ObjectName      = "java/lang/Object"
	EnumName        = "java/lang/Enum"
)
