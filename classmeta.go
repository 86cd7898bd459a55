package classmeta

import "github.com/wippyai/classmeta/typedesc"

// RuntimeClass is a class handle owned by the host runtime.
//
// Name returns the internal name for classes and interfaces, the descriptor
// for arrays ("[I", "[Ljava/lang/String;") and the keyword for primitives.
type RuntimeClass interface {
	Name() string
	// Super returns the superclass. Interfaces, primitives and the root
	// class have none.
	Super() (RuntimeClass, bool)
	Interfaces() []RuntimeClass
	Modifiers() uint16
	IsArray() bool
	ComponentType() (RuntimeClass, bool)
	// Constructors returns the parameter types of each declared constructor.
	Constructors() [][]typedesc.Type
	// IsAssignableFrom reports whether a value of other can be used where
	// this class is expected. Both handles must come from the same host.
	IsAssignableFrom(other RuntimeClass) bool
}

// Host is the runtime a resolver consults. All names are dotted binary
// names; arrays use descriptor spelling with dots ("[Ljava.lang.String;").
type Host interface {
	// FindLoaded returns a class the host has already loaded. It never
	// triggers loading.
	FindLoaded(dotted string) (RuntimeClass, bool)
	// ForName loads the class through the host, linking it if needed.
	ForName(dotted string) (RuntimeClass, error)
	// ClassBytes returns the stored class file for a name.
	ClassBytes(dotted string) ([]byte, error)
}
