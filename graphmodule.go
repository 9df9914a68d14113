package chi

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/chigraph/chi/backend"
)

// GraphModule is a module defined by user graphs: an ordered list of
// GraphFunctions and GraphStructs, loaded from (or serialized to) the
// on-disk JSON shape described in spec.md §6.
type GraphModule struct {
	fullName  string
	functions []*GraphFunction
	structs   []*GraphStruct
	deps      []string

	// raw holds the module's original on-disk JSON, when it was loaded via
	// Context.LoadModule, for content-hash-keyed compile caching (spec.md
	// §9: "cache invalidation compares a content hash against the cached
	// entry"). Empty for a GraphModule built programmatically via
	// NewGraphModule and Context.AddModule, which has no cacheable source.
	raw []byte

	ctx *Context
}

// NewGraphModule creates an empty GraphModule.
func NewGraphModule(ctx *Context, fullName string) *GraphModule {
	return &GraphModule{fullName: fullName, ctx: ctx}
}

func (m *GraphModule) FullName() string { return m.fullName }

func (m *GraphModule) Dependencies() []string        { return append([]string{}, m.deps...) }
func (m *GraphModule) AddDependency(fullName string) { m.deps = append(m.deps, fullName) }

// Functions returns every GraphFunction this module defines, in
// declaration order.
func (m *GraphModule) Functions() []*GraphFunction { return append([]*GraphFunction{}, m.functions...) }

// Structs returns every GraphStruct this module defines, in declaration
// order.
func (m *GraphModule) Structs() []*GraphStruct { return append([]*GraphStruct{}, m.structs...) }

// AddFunction registers a GraphFunction with this module.
func (m *GraphModule) AddFunction(gf *GraphFunction) { m.functions = append(m.functions, gf) }

// AddStruct registers a GraphStruct with this module.
func (m *GraphModule) AddStruct(gs *GraphStruct) { m.structs = append(m.structs, gs) }

func (m *GraphModule) FunctionByName(name string) (*GraphFunction, bool) {
	for _, gf := range m.functions {
		if gf.Name == name {
			return gf, true
		}
	}
	return nil, false
}

func (m *GraphModule) structByName(name string) (*GraphStruct, bool) {
	for _, gs := range m.structs {
		if gs.Name == name {
			return gs, true
		}
	}
	return nil, false
}

// TypeFromName resolves a GraphStruct's DataType by name. GraphModules only
// export struct types; primitive types live in lang.
func (m *GraphModule) TypeFromName(name string) (DataType, bool) {
	gs, ok := m.structByName(name)
	if !ok {
		return DataType{}, false
	}
	dt, err := gs.DataType(m.ctx.Backend())
	if err != nil {
		return DataType{}, false
	}
	return dt, true
}

func (m *GraphModule) TypeNames() []string {
	names := make([]string, len(m.structs))
	for i, gs := range m.structs {
		names[i] = gs.Name
	}
	return names
}

// NodeTypeFromName resolves a node type exported by this module: either a
// GraphFunction (exposed as a callable NodeType) or a struct's synthesized
// make-/break- node type.
func (m *GraphModule) NodeTypeFromName(name string) (NodeType, bool) {
	if gf, ok := m.FunctionByName(name); ok {
		return newCallNodeType(gf), true
	}
	for _, gs := range m.structs {
		dt, err := gs.DataType(m.ctx.Backend())
		if err != nil {
			continue
		}
		switch name {
		case "make-" + gs.Name:
			return newMakeNodeType(gs, dt), true
		case "break-" + gs.Name:
			return newBreakNodeType(gs, dt), true
		}
	}
	return nil, false
}

func (m *GraphModule) NodeTypeNames() []string {
	var names []string
	for _, gf := range m.functions {
		names = append(names, gf.Name)
	}
	for _, gs := range m.structs {
		names = append(names, "make-"+gs.Name, "break-"+gs.Name)
	}
	return names
}

// GenerateModule compiles every GraphFunction in this module via a
// FunctionCompiler, producing one backend.Function per GraphFunction in a
// single backend.Module named for this module.
func (m *GraphModule) GenerateModule(ctx *Context) (*ModuleIR, *Result) {
	r := NewResult()
	bmod := ctx.Backend()
	mod := bmod.NewModule(m.fullName)
	for _, gf := range m.functions {
		fc := NewFunctionCompiler(ctx, mod, gf)
		if compileRes := fc.Compile(); compileRes != nil {
			r.Merge(compileRes)
		}
	}
	return &ModuleIR{FullName: m.fullName, Backend: mod}, r
}

// callNodeType wraps a GraphFunction as a NodeType so other graphs can call
// it — the cross-module call node named in spec.md's testable scenarios.
type callNodeType struct {
	nodeTypeBase
	gf *GraphFunction
}

func newCallNodeType(gf *GraphFunction) *callNodeType {
	return &callNodeType{nodeTypeBase{
		module:      gf.owner.FullName(),
		name:        gf.Name,
		description: gf.Description,
		dataIns:     gf.DataInputs(),
		dataOuts:    gf.DataOutputs(),
		execIns:     gf.ExecInputs(),
		execOuts:    gf.ExecOutputs(),
	}, gf}
}

func (n *callNodeType) Clone() NodeType { c := *n; c.nodeTypeBase = n.nodeTypeBase.clone(); return &c }
func (n *callNodeType) ToJSON() (map[string]any, error) { return nil, nil }

// Codegen emits a call to the already-compiled backend.Function for the
// target GraphFunction. Stage E (exec-driven codegen) is expected to have
// already compiled every dependency function into the same backend.Module
// before reaching a call site; see FunctionCompiler.
func (n *callNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	target, ok := p.Module.Function(n.gf.Name)
	if !ok {
		r.AddErrorf(CodeBackendError, "call to %s: target function not yet compiled into this module", n.gf.Name)
		return r
	}
	args := append([]backend.Value{p.BackendCtx.ConstInt(p.BackendCtx.I32(), int64(p.ExecInputID))}, p.IO[:len(n.dataIns)]...)
	args = append(args, p.IO[len(n.dataIns):]...)
	ret := p.Builder.CreateCall(target, args, "")
	if len(n.execOuts) > 0 {
		if ret == nil {
			r.AddErrorf(CodeBackendError, "call to %s: expected an exec-id return value", n.gf.Name)
			return r
		}
		cases := make([]*backend.BasicBlock, len(n.execOuts))
		copy(cases, p.OutputBlocks)
		p.Builder.CreateSwitch(ret, p.OutputBlocks[0], cases)
	} else if len(p.OutputBlocks) > 0 {
		p.Builder.CreateBr(p.OutputBlocks[0])
	}
	return r
}

// --- JSON loading ---

type jsonModule struct {
	Dependencies []string                     `json:"dependencies"`
	Types        map[string][]jsonStructField `json:"types"`
	Graphs       []jsonGraph                  `json:"graphs"`
}

// jsonStructField is one field of a "types" struct declaration: a
// single-key object mapping the field's label to its qualified type name
// (spec.md §6: { "field": "module:type" }), the same shape
// entryNodeTypeFromJSON/exitNodeTypeFromJSON use for their "data" entries.
type jsonStructField map[string]string

// labelAndType extracts the single (label, qualifiedType) pair a
// jsonStructField holds. A field object with zero or more than one key is
// malformed.
func (f jsonStructField) labelAndType() (label, qualifiedType string, ok bool) {
	if len(f) != 1 {
		return "", "", false
	}
	for k, v := range f {
		return k, v, true
	}
	return "", "", false
}

// PeekDependencies reads just the "dependencies" array out of a module's
// raw JSON, letting Context.LoadModule load every dependency before
// attempting the full parse (which needs dependent modules' types already
// registered to resolve qualified type names).
func PeekDependencies(raw []byte) ([]string, *Result) {
	r := NewResult()
	var partial struct {
		Dependencies []string `json:"dependencies"`
	}
	if err := json.Unmarshal(raw, &partial); err != nil {
		r.AddEntry(CodeParse, fmt.Sprintf("failed to parse module JSON: %v", err), nil)
		return nil, r
	}
	return partial.Dependencies, r
}

// ParseGraphModuleJSON parses one module's on-disk JSON (spec.md §6) into a
// GraphModule plus the list of dependency full names the caller must load
// before the module can be compiled. The returned GraphModule's own
// Dependencies() list is populated by the caller once each dependency is
// resolved, mirroring LoadModule's recursive loading order.
func ParseGraphModuleJSON(fullName string, raw []byte) (*GraphModule, []string, *Result) {
	return parseGraphModuleJSON(nil, fullName, raw)
}

// ParseGraphModuleJSONWithContext is the form the Context uses, so type
// references into already-loaded modules (including lang) resolve
// immediately instead of only after AddModule.
func ParseGraphModuleJSONWithContext(ctx *Context, fullName string, raw []byte) (*GraphModule, []string, *Result) {
	return parseGraphModuleJSON(ctx, fullName, raw)
}

func parseGraphModuleJSON(ctx *Context, fullName string, raw []byte) (*GraphModule, []string, *Result) {
	r := NewResult()
	var jm jsonModule
	if err := json.Unmarshal(raw, &jm); err != nil {
		r.AddEntry(CodeParse, fmt.Sprintf("failed to parse module JSON: %v", err), map[string]any{"Module": fullName})
		return nil, nil, r
	}

	gm := &GraphModule{fullName: fullName, ctx: ctx}

	structNames := make([]string, 0, len(jm.Types))
	for name := range jm.Types {
		structNames = append(structNames, name)
	}
	sort.Strings(structNames)

	for _, name := range structNames {
		var fields []NamedDataType
		for _, f := range jm.Types[name] {
			label, qt, ok := f.labelAndType()
			if !ok {
				r.AddEntry(CodeParse, fmt.Sprintf("struct %q has a malformed field entry", name), map[string]any{"Module": fullName})
				continue
			}
			mod, tname, err := ParseQualifiedName(qt)
			if err != nil {
				r.AddEntry(CodeParse, err.Error(), map[string]any{"Module": fullName})
				continue
			}
			var ty DataType
			if ctx != nil {
				var ok bool
				ty, ok = ctx.TypeFromModule(mod, tname)
				if !ok {
					r.AddEntry(CodeUnknownType, fmt.Sprintf("unknown type %s:%s", mod, tname), nil)
					continue
				}
			}
			fields = append(fields, NamedDataType{Label: label, Type: ty})
		}
		gm.AddStruct(NewGraphStruct(gm, name, fields))
	}

	for _, jg := range jm.Graphs {
		gf := NewGraphFunction(gm, jg.Name)
		gf.Description = jg.Description
		gf.EntryID = jg.EntryID
		gf.ExitID = jg.ExitID

		dataIn, res := resolvePorts(ctx, fullName, jg.DataInputs)
		r.Merge(res)
		dataOut, res := resolvePorts(ctx, fullName, jg.DataOutputs)
		r.Merge(res)
		gf.SetSignature(dataIn, dataOut, append([]string{}, jg.ExecInputs...), append([]string{}, jg.ExecOutputs...))

		for id, jn := range jg.Nodes {
			mod, tname, err := ParseQualifiedName(jn.Type)
			if err != nil {
				r.AddEntry(CodeParse, fmt.Sprintf("node %q has a malformed qualified type: %v", id, err), map[string]any{"Node ID": id})
				continue
			}
			if ctx == nil {
				r.AddEntry(CodeUnknownModule, "cannot resolve node types without a Context", map[string]any{"Node ID": id})
				continue
			}
			nt, ntRes := ctx.NodeTypeFromModule(mod, tname, jn.Data)
			r.Merge(ntRes)
			if nt == nil {
				continue
			}
			if _, insertRes := gf.Graph.InsertNode(id, nt, jn.Location[0], jn.Location[1]); !insertRes.Success {
				r.Merge(insertRes)
			}
		}

		for _, jc := range jg.Connections {
			srcNode, srcPort, err := portPair(jc.Input)
			if err != nil {
				r.AddEntry(CodeParse, err.Error(), nil)
				continue
			}
			dstNode, dstPort, err := portPair(jc.Output)
			if err != nil {
				r.AddEntry(CodeParse, err.Error(), nil)
				continue
			}
			var connRes *Result
			if jc.Type == "exec" {
				connRes = gf.Graph.ConnectExec(srcNode, srcPort, dstNode, dstPort)
			} else {
				connRes = gf.Graph.ConnectData(srcNode, srcPort, dstNode, dstPort)
			}
			r.Merge(connRes)
		}

		gm.AddFunction(gf)
	}

	return gm, append([]string{}, jm.Dependencies...), r
}

func resolvePorts(ctx *Context, moduleForErrors string, ports []jsonPort) ([]NamedDataType, *Result) {
	r := NewResult()
	out := make([]NamedDataType, 0, len(ports))
	for _, p := range ports {
		mod, tname, err := ParseQualifiedName(p.Type)
		if err != nil {
			r.AddEntry(CodeParse, err.Error(), map[string]any{"Module": moduleForErrors})
			continue
		}
		var ty DataType
		if ctx != nil {
			var ok bool
			ty, ok = ctx.TypeFromModule(mod, tname)
			if !ok {
				r.AddEntry(CodeUnknownType, fmt.Sprintf("unknown type %s:%s", mod, tname), nil)
				continue
			}
		}
		out = append(out, NamedDataType{Label: p.Label, Type: ty})
	}
	return out, r
}

// ToJSON serializes this module back to the on-disk shape. Connections are
// emitted from the graph's edge table (Graph.Edges), source as "input" and
// sink as "output", so that convention round-trips exactly.
func (m *GraphModule) ToJSON() ([]byte, error) {
	jm := jsonModule{Dependencies: m.deps}
	if len(m.structs) > 0 {
		jm.Types = make(map[string][]jsonStructField, len(m.structs))
	}
	for _, gs := range m.structs {
		fields := make([]jsonStructField, 0, len(gs.Fields))
		for _, f := range gs.Fields {
			fields = append(fields, jsonStructField{f.Label: f.Type.QualifiedName()})
		}
		jm.Types[gs.Name] = fields
	}
	for _, gf := range m.functions {
		jg := jsonGraph{
			Name: gf.Name, Description: gf.Description,
			ExecInputs: gf.execInputs, ExecOutputs: gf.execOutputs,
			EntryID: gf.EntryID, ExitID: gf.ExitID,
			Nodes: make(map[string]jsonNode),
		}
		for _, d := range gf.dataInputs {
			jg.DataInputs = append(jg.DataInputs, jsonPort{Label: d.Label, Type: d.Type.QualifiedName()})
		}
		for _, d := range gf.dataOutputs {
			jg.DataOutputs = append(jg.DataOutputs, jsonPort{Label: d.Label, Type: d.Type.QualifiedName()})
		}
		for _, n := range gf.Graph.Nodes() {
			data, _ := n.Type.ToJSON()
			jg.Nodes[n.ID] = jsonNode{
				Type:     n.Type.Module() + ":" + n.Type.Name(),
				Data:     data,
				Location: [2]float64{n.X, n.Y},
			}
		}
		for _, e := range gf.Graph.Edges() {
			jg.Connections = append(jg.Connections, jsonConnection{
				Type:   e.Kind.String(),
				Input:  [2]any{e.SrcNode, e.SrcPort},
				Output: [2]any{e.DstNode, e.DstPort},
			})
		}
		jm.Graphs = append(jm.Graphs, jg)
	}
	return json.MarshalIndent(jm, "", "  ")
}
