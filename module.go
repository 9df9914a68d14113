package chi

import "github.com/chigraph/chi/backend"

// Module is the abstract capability contract every kind of module (LangModule,
// GraphModule, and any future built-in) implements: a name, a set of types
// it exports, a set of node types it exports (including one call-node type
// per GraphFunction it defines), its dependencies, and the ability to emit
// itself into a backend.Module.
type Module interface {
	// FullName returns the module's path-like, colon-free full name.
	FullName() string

	// NodeTypeFromName resolves one of this module's exported node types by
	// its unqualified name.
	NodeTypeFromName(name string) (NodeType, bool)
	// TypeFromName resolves one of this module's exported data types by its
	// unqualified name.
	TypeFromName(name string) (DataType, bool)

	// NodeTypeNames lists every node type this module exports.
	NodeTypeNames() []string
	// TypeNames lists every data type this module exports.
	TypeNames() []string

	// Dependencies lists the full names of every module this one requires
	// to be loaded before it can be compiled.
	Dependencies() []string
	// AddDependency registers an additional required module.
	AddDependency(fullName string)

	// GenerateModule lowers this module into a backend.Module using ctx for
	// type/value handles. Pure declaration-only modules (LangModule) may
	// return an empty module; GraphModules lower every GraphFunction.
	GenerateModule(ctx *Context) (*ModuleIR, *Result)
}

// ModuleIR is the result of lowering a Module: the backend.Module plus
// enough bookkeeping for the Context to cache and link it.
type ModuleIR struct {
	FullName string
	Backend  *backend.Module
}
