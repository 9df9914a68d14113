package chi

import (
	"fmt"
	"strings"

	"github.com/chigraph/chi/backend"
)

// DataType is a handle to a type owned by exactly one Module: a backend
// representation plus the bookkeeping needed to print and compare it. Two
// DataTypes are equal iff they share both an owning module full-name and an
// unqualified name — value identity, not pointer identity, since the same
// logical type can be reached through more than one Context lookup.
type DataType struct {
	module         string // owning module's full name
	unqualifiedName string
	backendType    backend.Type
	debugName      string // human-readable name for diagnostics/IR dumps
}

// NewDataType constructs a DataType. Callers within package chi only; code
// outside the module obtains DataTypes via Context.TypeFromModule or a
// Module's TypeFromName.
func NewDataType(module, name string, bt backend.Type) DataType {
	return DataType{module: module, unqualifiedName: name, backendType: bt, debugName: name}
}

// Module returns the full name of the module that owns this type.
func (d DataType) Module() string { return d.module }

// UnqualifiedName returns the type's name without its owning module prefix.
func (d DataType) UnqualifiedName() string { return d.unqualifiedName }

// QualifiedName returns "module:name", the on-disk and diagnostic form.
func (d DataType) QualifiedName() string {
	return d.module + ":" + d.unqualifiedName
}

// Backend returns the backend.Type this DataType lowers to.
func (d DataType) Backend() backend.Type { return d.backendType }

// Valid reports whether this DataType was actually constructed, as opposed
// to being a zero value left behind by a failed lookup.
func (d DataType) Valid() bool { return d.backendType != nil }

// Equal reports value equality: same owning module, same unqualified name.
// It does not compare backend.Type identity, since two Contexts compiling
// the same module produce distinct backend.Type handles for what is
// logically the same DataType.
func (d DataType) Equal(o DataType) bool {
	return d.module == o.module && d.unqualifiedName == o.unqualifiedName
}

func (d DataType) String() string { return d.QualifiedName() }

// NamedDataType pairs a DataType with a label, the element of every
// data-input/data-output list in the spec (function signatures, node types,
// struct fields).
type NamedDataType struct {
	Label string
	Type  DataType
}

func (n NamedDataType) String() string {
	return fmt.Sprintf("%s: %s", n.Label, n.Type)
}

// ParseQualifiedName splits "module:type" on the FIRST colon, since module
// full names are path-like (e.g. "github.com/foo/bar") and never contain a
// colon themselves, while the type name trivially can't either — mirroring
// parseColonPair in the original C++ Graph.cpp. An input with no colon at
// all is an error.
func ParseQualifiedName(qualified string) (module, name string, err error) {
	idx := strings.Index(qualified, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("chi: %q is not a qualified name (module:type)", qualified)
	}
	return qualified[:idx], qualified[idx+1:], nil
}
