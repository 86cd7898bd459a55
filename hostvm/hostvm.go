// Package hostvm is a simulated host runtime. It loads classes from a byte
// source, links their supertypes eagerly and answers reflective queries the
// way a JVM class handle does. It implements classmeta.Host.
package hostvm

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/classmeta"
	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/names"
	"github.com/wippyai/classmeta/typedesc"
)

// Source provides stored class files by internal name.
type Source interface {
	Bytes(internalName string) ([]byte, error)
}

// Config configures a VM.
type Config struct {
	// Names renames classes at definition time. A class stored as a/b is
	// defined under Remap("a/b", Apply). Nil disables renaming.
	Names *names.Registry
}

// VM holds the loaded classes of one simulated loader.
type VM struct {
	source   Source
	names    *names.Registry
	loaded   map[string]*Class
	defining map[string]bool
	loads    []string
	mu       sync.Mutex
}

var _ classmeta.Host = (*VM)(nil)

// Array and primitive class modifiers.
const syntheticModifiers = classfile.AccPublic | classfile.AccFinal | classfile.AccAbstract

var arrayInterfaces = []string{"java/lang/Cloneable", "java/io/Serializable"}

// New creates a VM reading from source. source may be nil, in which case
// only explicitly defined classes exist.
func New(source Source, cfg *Config) *VM {
	vm := &VM{
		source:   source,
		loaded:   make(map[string]*Class),
		defining: make(map[string]bool),
	}
	if cfg != nil {
		vm.names = cfg.Names
	}
	return vm
}

// FindLoaded implements classmeta.Host.
func (vm *VM) FindLoaded(dotted string) (classmeta.RuntimeClass, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c, ok := vm.loaded[names.ToSlashed(dotted)]
	if !ok {
		return nil, false
	}
	return c, true
}

// ForName implements classmeta.Host. Arrays, primitives and object classes
// are accepted; loading links the superclass and interfaces.
func (vm *VM) ForName(dotted string) (classmeta.RuntimeClass, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c, err := vm.load(names.ToSlashed(dotted))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ClassBytes implements classmeta.Host.
func (vm *VM) ClassBytes(dotted string) ([]byte, error) {
	if vm.source == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "class file", dotted)
	}
	return vm.source.Bytes(names.ToSlashed(dotted))
}

// Load is ForName with the concrete handle type.
func (vm *VM) Load(name string) (*Class, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.load(names.ToSlashed(name))
}

// Define parses and links a class file. Defining a name twice is an error.
func (vm *VM) Define(data []byte) (*Class, error) {
	rec, err := classfile.ParseThin(data)
	if err != nil {
		return nil, err
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.define(rec)
}

// Loaded returns the names of loaded object classes in load order.
func (vm *VM) Loaded() []string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]string(nil), vm.loads...)
}

// IsLoaded reports whether name has been loaded.
func (vm *VM) IsLoaded(name string) bool {
	_, ok := vm.FindLoaded(name)
	return ok
}

func (vm *VM) load(name string) (*Class, error) {
	if c, ok := vm.loaded[name]; ok {
		return c, nil
	}
	if t, ok := typedesc.Primitive(name); ok {
		return vm.primitive(t), nil
	}
	if strings.HasPrefix(name, "[") {
		return vm.array(name)
	}
	if vm.source == nil {
		return nil, errors.ClassNotFound(name, nil)
	}
	stored := name
	if vm.names != nil {
		stored = vm.names.Remap(name, names.Reverse)
	}
	data, err := vm.source.Bytes(stored)
	if err != nil {
		return nil, errors.ClassNotFound(name, err)
	}
	rec, err := classfile.ParseThin(data)
	if err != nil {
		return nil, err
	}
	return vm.define(rec)
}

func (vm *VM) define(rec *classfile.Class) (*Class, error) {
	name := rec.Name
	if vm.names != nil {
		name = vm.names.Remap(name, names.Apply)
	}
	if _, ok := vm.loaded[name]; ok {
		return nil, errors.New(errors.PhaseLoad, errors.KindIllegalState).
			Class(name).
			Detail("duplicate class definition").
			Build()
	}
	if vm.defining[name] {
		return nil, errors.New(errors.PhaseLoad, errors.KindIllegalState).
			Class(name).
			Detail("class circularity").
			Build()
	}
	vm.defining[name] = true
	defer delete(vm.defining, name)

	ctors, err := constructorTypes(rec)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindMalformedInput).
			Class(name).
			Cause(err).
			Detail("invalid constructor descriptor").
			Build()
	}
	c := &Class{vm: vm, name: name, rec: rec, ctors: ctors, modifiers: rec.Access}
	if rec.SuperName != "" {
		super, err := vm.load(vm.runtimeName(rec.SuperName))
		if err != nil {
			return nil, errors.New(errors.PhaseLoad, errors.KindClassNotFound).
				Class(name).
				Cause(err).
				Detail("superclass %s", rec.SuperName).
				Build()
		}
		if !rec.IsInterface() {
			c.super = super
		}
	}
	for _, iname := range rec.Interfaces {
		iface, err := vm.load(vm.runtimeName(iname))
		if err != nil {
			return nil, errors.New(errors.PhaseLoad, errors.KindClassNotFound).
				Class(name).
				Cause(err).
				Detail("interface %s", iname).
				Build()
		}
		c.interfaces = append(c.interfaces, iface)
	}
	vm.loaded[name] = c
	vm.loads = append(vm.loads, name)
	Logger().Debug("class loaded", zap.String("class", name))
	return c, nil
}

func (vm *VM) runtimeName(stored string) string {
	if vm.names == nil {
		return stored
	}
	return vm.names.Remap(stored, names.Apply)
}

func (vm *VM) primitive(t typedesc.Type) *Class {
	name := t.ClassName()
	if c, ok := vm.loaded[name]; ok {
		return c
	}
	c := &Class{vm: vm, name: name, prim: t, modifiers: syntheticModifiers}
	vm.loaded[name] = c
	return c
}

func (vm *VM) array(desc string) (*Class, error) {
	t, err := typedesc.Parse(desc)
	if err != nil || t.Sort() != typedesc.Array {
		return nil, errors.ClassNotFound(desc, err)
	}
	elemDesc, _ := t.ComponentType()
	var component *Class
	switch {
	case elemDesc.IsPrimitive():
		component = vm.primitive(elemDesc)
	case elemDesc.Sort() == typedesc.Array:
		component, err = vm.array(elemDesc.Descriptor())
	default:
		component, err = vm.load(elemDesc.InternalName())
	}
	if err != nil {
		return nil, err
	}
	object, err := vm.load(classfile.ObjectName)
	if err != nil {
		return nil, err
	}
	c := &Class{vm: vm, name: desc, component: component, super: object,
		modifiers: syntheticModifiers&^classfile.AccPublic | component.modifiers&classfile.AccPublic}
	for _, n := range arrayInterfaces {
		iface, err := vm.load(n)
		if err != nil {
			return nil, err
		}
		c.interfaces = append(c.interfaces, iface)
	}
	vm.loaded[desc] = c
	return c, nil
}

// Class is a loaded class handle.
type Class struct {
	vm         *VM
	rec        *classfile.Class
	super      *Class
	component  *Class
	prim       typedesc.Type
	name       string
	interfaces []*Class
	ctors      [][]typedesc.Type
	modifiers  uint16
}

var _ classmeta.RuntimeClass = (*Class)(nil)

func (c *Class) Name() string { return c.name }

func (c *Class) Super() (classmeta.RuntimeClass, bool) {
	if c.super == nil {
		return nil, false
	}
	return c.super, true
}

func (c *Class) Interfaces() []classmeta.RuntimeClass {
	out := make([]classmeta.RuntimeClass, len(c.interfaces))
	for i, iface := range c.interfaces {
		out[i] = iface
	}
	return out
}

func (c *Class) Modifiers() uint16 { return c.modifiers }

func (c *Class) IsArray() bool { return c.component != nil }

// IsPrimitive reports whether c is a primitive or void class.
func (c *Class) IsPrimitive() bool { return !c.prim.IsZero() }

// IsInterface reports whether c is an interface.
func (c *Class) IsInterface() bool { return c.modifiers&classfile.AccInterface != 0 }

func (c *Class) ComponentType() (classmeta.RuntimeClass, bool) {
	if c.component == nil {
		return nil, false
	}
	return c.component, true
}

func (c *Class) Constructors() [][]typedesc.Type {
	out := make([][]typedesc.Type, len(c.ctors))
	for i, params := range c.ctors {
		out[i] = append([]typedesc.Type(nil), params...)
	}
	return out
}

func constructorTypes(rec *classfile.Class) ([][]typedesc.Type, error) {
	var out [][]typedesc.Type
	for _, m := range rec.Constructors() {
		t, err := typedesc.Parse(m.Desc)
		if err != nil {
			return nil, err
		}
		if t.Sort() != typedesc.Method {
			return nil, errors.InvalidArgument(errors.PhaseLoad, "constructor descriptor "+m.Desc+" is not a method type")
		}
		out = append(out, t.ArgumentTypes())
	}
	return out, nil
}

// IsAssignableFrom implements the runtime's subtype check. Handles from a
// different VM are never assignable.
func (c *Class) IsAssignableFrom(other classmeta.RuntimeClass) bool {
	o, ok := other.(*Class)
	if !ok || o.vm != c.vm {
		return false
	}
	if c == o {
		return true
	}
	if c.IsPrimitive() || o.IsPrimitive() {
		return false
	}
	if o.IsArray() {
		if c.IsArray() {
			if c.component.IsPrimitive() || o.component.IsPrimitive() {
				return c.component == o.component
			}
			return c.component.IsAssignableFrom(o.component)
		}
		// arrays extend Object and implement Cloneable and Serializable only
		if c.name == classfile.ObjectName {
			return true
		}
		for _, iface := range o.interfaces {
			if iface == c {
				return true
			}
		}
		return false
	}
	return o.inherits(c)
}

func (c *Class) inherits(target *Class) bool {
	if c == target {
		return true
	}
	if c.super != nil && c.super.inherits(target) {
		return true
	}
	for _, iface := range c.interfaces {
		if iface.inherits(target) {
			return true
		}
	}
	// interfaces have no runtime superclass but are still objects
	return c.IsInterface() && target.name == classfile.ObjectName
}

func (c *Class) String() string { return c.name }
