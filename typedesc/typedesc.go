// Package typedesc models field and method descriptors of the class file format.
//
// A Type is a small comparable value: two Types are equal exactly when they
// denote the same descriptor, so they can be compared with == and used as map keys.
package typedesc

import (
	"strings"

	"github.com/wippyai/classmeta/errors"
)

// Sort is the category of a Type.
type Sort uint8

const (
	Void Sort = iota
	Boolean
	Char
	Byte
	Short
	Int
	Float
	Long
	Double
	Array
	Object
	Method
)

var sortNames = [...]string{"void", "boolean", "char", "byte", "short", "int", "float", "long", "double", "array", "object", "method"}

func (s Sort) String() string {
	if int(s) < len(sortNames) {
		return sortNames[s]
	}
	return "invalid"
}

// Type is a parsed descriptor.
type Type struct {
	desc string
	sort Sort
}

// Primitive and void types.
var (
	VoidType    = Type{sort: Void, desc: "V"}
	BooleanType = Type{sort: Boolean, desc: "Z"}
	CharType    = Type{sort: Char, desc: "C"}
	ByteType    = Type{sort: Byte, desc: "B"}
	ShortType   = Type{sort: Short, desc: "S"}
	IntType     = Type{sort: Int, desc: "I"}
	FloatType   = Type{sort: Float, desc: "F"}
	LongType    = Type{sort: Long, desc: "J"}
	DoubleType  = Type{sort: Double, desc: "D"}
)

var primitivesByName = map[string]Type{
	"void":    VoidType,
	"boolean": BooleanType,
	"char":    CharType,
	"byte":    ByteType,
	"short":   ShortType,
	"int":     IntType,
	"float":   FloatType,
	"long":    LongType,
	"double":  DoubleType,
}

// Primitive returns the primitive or void type for a source-level keyword such as "int".
func Primitive(name string) (Type, bool) {
	t, ok := primitivesByName[name]
	return t, ok
}

// Parse parses a single field descriptor or a method descriptor.
func Parse(desc string) (Type, error) {
	if desc == "" {
		return Type{}, errors.InvalidArgument(errors.PhaseType, "empty descriptor")
	}
	if desc[0] == '(' {
		if err := validateMethod(desc); err != nil {
			return Type{}, err
		}
		return Type{sort: Method, desc: desc}, nil
	}
	t, n, err := parseField(desc, 0)
	if err != nil {
		return Type{}, err
	}
	if n != len(desc) {
		return Type{}, invalidDesc(desc)
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for constants in tests and tables.
func MustParse(desc string) Type {
	t, err := Parse(desc)
	if err != nil {
		panic(err)
	}
	return t
}

// ObjectType returns the type for an internal name. Names starting with '['
// are array descriptors.
func ObjectType(internalName string) Type {
	if strings.HasPrefix(internalName, "[") {
		return Type{sort: Array, desc: internalName}
	}
	return Type{sort: Object, desc: "L" + internalName + ";"}
}

// MethodType builds a method type from its return and argument types.
func MethodType(ret Type, args ...Type) Type {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range args {
		b.WriteString(a.desc)
	}
	b.WriteByte(')')
	b.WriteString(ret.desc)
	return Type{sort: Method, desc: b.String()}
}

// AsArray returns an array type with the given number of added dimensions.
// Arrays of arrays are flattened: AsArray([I, 1) is [[I.
func AsArray(elem Type, dims int) (Type, error) {
	if elem.sort == Method {
		return Type{}, errors.InvalidArgument(errors.PhaseType, "type must not be a method type")
	}
	if elem.sort == Void {
		return Type{}, errors.InvalidArgument(errors.PhaseType, "arrays of void do not exist")
	}
	if dims < 1 {
		return Type{}, errors.InvalidArgument(errors.PhaseType, "array dimensions must be positive")
	}
	if elem.sort == Array {
		dims += elem.Dimensions()
		elem = elem.ElementType()
	}
	return Type{sort: Array, desc: strings.Repeat("[", dims) + elem.desc}, nil
}

// Sort returns the category of t.
func (t Type) Sort() Sort { return t.sort }

// Descriptor returns the descriptor string.
func (t Type) Descriptor() string { return t.desc }

// IsPrimitive reports whether t is a primitive or void.
func (t Type) IsPrimitive() bool {
	return t.sort <= Double
}

// IsZero reports whether t is the zero Type.
func (t Type) IsZero() bool { return t.desc == "" }

// InternalName returns the slashed name for objects and the descriptor for arrays.
func (t Type) InternalName() string {
	switch t.sort {
	case Object:
		return t.desc[1 : len(t.desc)-1]
	default:
		return t.desc
	}
}

// ClassName returns the source-level name, e.g. "int", "java.lang.String", "int[][]".
func (t Type) ClassName() string {
	switch t.sort {
	case Array:
		return t.ElementType().ClassName() + strings.Repeat("[]", t.Dimensions())
	case Object:
		return strings.ReplaceAll(t.InternalName(), "/", ".")
	case Method:
		return t.desc
	default:
		return t.sort.String()
	}
}

// Dimensions returns the number of array dimensions, 0 for non-arrays.
func (t Type) Dimensions() int {
	if t.sort != Array {
		return 0
	}
	n := 0
	for n < len(t.desc) && t.desc[n] == '[' {
		n++
	}
	return n
}

// ElementType returns the innermost element type of an array, or t itself.
func (t Type) ElementType() Type {
	if t.sort != Array {
		return t
	}
	et, _, _ := parseField(t.desc, t.Dimensions())
	return et
}

// ComponentType returns the array type with one dimension removed.
func (t Type) ComponentType() (Type, error) {
	if t.sort != Array {
		return Type{}, errors.IllegalState(errors.PhaseType, "not an array: "+t.desc)
	}
	ct, _, err := parseField(t.desc, 1)
	return ct, err
}

// ArgumentTypes returns the parameter types of a method type.
func (t Type) ArgumentTypes() []Type {
	if t.sort != Method {
		return nil
	}
	var args []Type
	for i := 1; t.desc[i] != ')'; {
		a, n, _ := parseField(t.desc, i)
		args = append(args, a)
		i = n
	}
	return args
}

// ReturnType returns the return type of a method type.
func (t Type) ReturnType() Type {
	if t.sort != Method {
		return Type{}
	}
	i := strings.IndexByte(t.desc, ')')
	rt, _, _ := parseField(t.desc, i+1)
	return rt
}

// Size is the number of local variable slots a value of t occupies.
func (t Type) Size() int {
	switch t.sort {
	case Void:
		return 0
	case Long, Double:
		return 2
	default:
		return 1
	}
}

func (t Type) String() string { return t.desc }

// parseField parses one field type starting at off and returns the offset after it.
func parseField(desc string, off int) (Type, int, error) {
	if off >= len(desc) {
		return Type{}, off, invalidDesc(desc)
	}
	switch desc[off] {
	case 'V':
		return VoidType, off + 1, nil
	case 'Z':
		return BooleanType, off + 1, nil
	case 'C':
		return CharType, off + 1, nil
	case 'B':
		return ByteType, off + 1, nil
	case 'S':
		return ShortType, off + 1, nil
	case 'I':
		return IntType, off + 1, nil
	case 'F':
		return FloatType, off + 1, nil
	case 'J':
		return LongType, off + 1, nil
	case 'D':
		return DoubleType, off + 1, nil
	case 'L':
		end := strings.IndexByte(desc[off:], ';')
		if end <= 1 {
			return Type{}, off, invalidDesc(desc)
		}
		end += off
		return Type{sort: Object, desc: desc[off : end+1]}, end + 1, nil
	case '[':
		i := off
		for i < len(desc) && desc[i] == '[' {
			i++
		}
		elem, n, err := parseField(desc, i)
		if err != nil {
			return Type{}, off, err
		}
		if elem.sort == Void {
			return Type{}, off, invalidDesc(desc)
		}
		return Type{sort: Array, desc: desc[off:n]}, n, nil
	default:
		return Type{}, off, invalidDesc(desc)
	}
}

func validateMethod(desc string) error {
	i := 1
	for {
		if i >= len(desc) {
			return invalidDesc(desc)
		}
		if desc[i] == ')' {
			break
		}
		a, n, err := parseField(desc, i)
		if err != nil {
			return err
		}
		if a.sort == Void {
			return invalidDesc(desc)
		}
		i = n
	}
	_, n, err := parseField(desc, i+1)
	if err != nil {
		return err
	}
	if n != len(desc) {
		return invalidDesc(desc)
	}
	return nil
}

func invalidDesc(desc string) error {
	return errors.New(errors.PhaseType, errors.KindInvalidArgument).
		Value(desc).
		Detail("invalid descriptor %q", desc).
		Build()
}
