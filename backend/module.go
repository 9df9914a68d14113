package backend

import "fmt"

// Module is a named collection of functions and global string constants,
// the backend counterpart of an llvm.Module. A Module is only valid while
// its owning Context is alive.
type Module struct {
	Name    string
	ctx     *Context
	fns     map[string]*Function
	order   []string
	strings map[string]*globalString
	linked  bool
}

// NewModule creates an empty module owned by c.
func (c *Context) NewModule(name string) *Module {
	return &Module{
		Name:    name,
		ctx:     c,
		fns:     make(map[string]*Function),
		strings: make(map[string]*globalString),
	}
}

// DeclareFunction creates a new function in the module. paramTypes/paramNames
// must be the same length. It errors if the module has already been linked
// into another (and thereby invalidated) or a function with this name
// already exists.
func (m *Module) DeclareFunction(name string, paramTypes []Type, paramNames []string, retType Type) (*Function, error) {
	if m.linked {
		return nil, fmt.Errorf("backend: module %q has been linked and is invalidated", m.Name)
	}
	if _, exists := m.fns[name]; exists {
		return nil, fmt.Errorf("backend: function %q already declared in module %q", name, m.Name)
	}
	fn := &Function{Name: name, RetType: retType, mod: m}
	for i, pt := range paramTypes {
		pname := ""
		if i < len(paramNames) {
			pname = paramNames[i]
		}
		fn.Params = append(fn.Params, &param{ty: pt, index: i, name: pname})
	}
	m.fns[name] = fn
	m.order = append(m.order, name)
	return fn, nil
}

// DeclareExternal registers a callable declaration with no body: the
// backend counterpart of an LLVM extern declaration, used when a
// dependency's definitions are left out of the importing module
// (Context.CompileModule's LinkDependencies setting is false). Calling it
// again for an already-declared name returns the existing declaration
// rather than erroring, since the same dependency function may be
// referenced by call sites across several of the importing module's
// GraphFunctions.
func (m *Module) DeclareExternal(name string, paramTypes []Type, retType Type) (*Function, error) {
	if m.linked {
		return nil, fmt.Errorf("backend: module %q has been linked and is invalidated", m.Name)
	}
	if existing, exists := m.fns[name]; exists {
		return existing, nil
	}
	fn := &Function{Name: name, RetType: retType, mod: m, External: true}
	for i, pt := range paramTypes {
		fn.Params = append(fn.Params, &param{ty: pt, index: i})
	}
	m.fns[name] = fn
	m.order = append(m.order, name)
	return fn, nil
}

// Function looks up a previously declared function by name.
func (m *Module) Function(name string) (*Function, bool) {
	fn, ok := m.fns[name]
	return fn, ok
}

// Functions returns every declared function in declaration order.
func (m *Module) Functions() []*Function {
	out := make([]*Function, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.fns[name])
	}
	return out
}

// GlobalString interns a string literal as a module-level global constant,
// returning an i8* value pointing at its first byte (the builder counterpart
// of LLVM's CreateGlobalStringPtr).
func (m *Module) GlobalString(s string) Value {
	if gs, ok := m.strings[s]; ok {
		return gs
	}
	gs := &globalString{ty: m.ctx.i8ptr, val: s}
	m.strings[s] = gs
	return gs
}

// Link copies other's functions and globals into m, then invalidates other —
// mirroring the rule that "modules transferred into a linker invalidate the
// source module handle" (spec.md §9).
func (m *Module) Link(other *Module) error {
	if other.linked {
		return fmt.Errorf("backend: module %q already linked/invalidated", other.Name)
	}
	for _, name := range other.order {
		if _, exists := m.fns[name]; exists {
			return fmt.Errorf("backend: link conflict, function %q exists in both modules", name)
		}
	}
	for _, name := range other.order {
		fn := other.fns[name]
		fn.mod = m
		m.fns[name] = fn
		m.order = append(m.order, name)
	}
	for lit, gs := range other.strings {
		m.strings[lit] = gs
	}
	other.linked = true
	other.fns = nil
	other.strings = nil
	return nil
}

// Invalidated reports whether this module was consumed by a Link call.
func (m *Module) Invalidated() bool { return m.linked }
