// Package classmeta answers structural questions about compiled JVM classes
// (superclass, interfaces, modifiers, array shape, constructors, transitive
// supertypes, assignability) without necessarily loading them in the host.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	classmeta/           Root package with the host collaborator interfaces
//	├── classinfo/       Class metadata resolver and resolution registry
//	├── annotation/      Annotation lookup with retention, target and inheritance rules
//	├── classfile/       Class file decoder and encoder
//	├── insn/            Instruction lists: search, structural equality, cloning
//	├── typedesc/        Field and method descriptors
//	├── names/           Dotted/slashed names and class-name remapping
//	├── classpath/       Directory and jar class sources
//	├── hostvm/          Simulated host runtime backed by a class path
//	├── errors/          Structured error types
//	└── cmd/classinfo/   Inspection tool
//
// # Quick Start
//
// Resolve a class and test assignability:
//
//	cp, _ := classpath.New("build/classes", "lib/dep.jar")
//	defer cp.Close()
//	vm := hostvm.New(cp, nil)
//	reg := classinfo.NewRegistry(vm, classinfo.Options{})
//
//	list, _ := reg.Of("java/util/List")
//	arrayList, _ := reg.Of("java.util.ArrayList")
//	ok, _ := list.IsAssignableFrom(arrayList)
//
// # Backends
//
// A ClassInfo is either Loaded, wrapping a RuntimeClass the host already
// holds, or Parsed, wrapping a record decoded from class bytes. Arrays always
// resolve through the host because constructing an array type never
// initializes its element class.
package classmeta
